package store

import (
	"context"
	"encoding/json"
	"fmt"

	"atto/internal/rbac"
)

const accountColumns = `id, created, username, password, permissions, settings, tokens,
	follower_count, following_count, notification_count, request_count, post_count, totp, recovery_codes`

func scanAccount(r rowScanner) (Account, error) {
	var (
		a           Account
		permissions int64
		settings    string
		tokens      string
		recovery    string
	)
	err := r.Scan(&a.ID, &a.Created, &a.Username, &a.Password, &permissions, &settings, &tokens,
		&a.FollowerCount, &a.FollowingCount, &a.NotificationCount, &a.RequestCount, &a.PostCount, &a.TOTP, &recovery)
	if err != nil {
		return Account{}, err
	}
	a.Permissions = rbac.PlatformFrom(permissions)
	a.Settings = DefaultAccountSettings()
	if err := json.Unmarshal([]byte(settings), &a.Settings); err != nil {
		return Account{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := json.Unmarshal([]byte(tokens), &a.Tokens); err != nil {
		return Account{}, fmt.Errorf("decode tokens: %w", err)
	}
	if err := json.Unmarshal([]byte(recovery), &a.RecoveryCodes); err != nil {
		return Account{}, fmt.Errorf("decode recovery codes: %w", err)
	}
	return a, nil
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (q *Queries) GetAccount(ctx context.Context, id uint64) (Account, error) {
	a, err := one(ctx, q, scanAccount, `SELECT `+accountColumns+` FROM users WHERE id = ?`, id64(id))
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (q *Queries) GetAccountByUsername(ctx context.Context, username string) (Account, error) {
	a, err := one(ctx, q, scanAccount, `SELECT `+accountColumns+` FROM users WHERE username = ?`, username)
	if err != nil {
		return Account{}, fmt.Errorf("get account by username: %w", err)
	}
	return a, nil
}

// GetAccountByTokenHash finds the account holding a session token. Hashes
// are hex so the LIKE pattern needs no escaping.
func (q *Queries) GetAccountByTokenHash(ctx context.Context, hash string) (Account, error) {
	a, err := one(ctx, q, scanAccount, `SELECT `+accountColumns+` FROM users WHERE tokens LIKE ?`, `%"hash":"`+hash+`"%`)
	if err != nil {
		return Account{}, fmt.Errorf("get account by token: %w", err)
	}
	return a, nil
}

func (q *Queries) InsertAccount(ctx context.Context, a Account) error {
	settings, err := encode(a.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tokens, err := encode(nonNil(a.Tokens))
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	recovery, err := encode(nonNil(a.RecoveryCodes))
	if err != nil {
		return fmt.Errorf("encode recovery codes: %w", err)
	}
	_, err = q.exec(ctx, `
		INSERT INTO users (id, created, username, password, permissions, settings, tokens,
			follower_count, following_count, notification_count, request_count, post_count, totp, recovery_codes)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, 0, ?, ?)
	`, id64(a.ID), a.Created, a.Username, a.Password, int64(a.Permissions), settings, tokens, a.TOTP, recovery)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (q *Queries) CountAccountsByUsername(ctx context.Context, username string) (int64, error) {
	n, err := q.count(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (q *Queries) UpdateAccountUsername(ctx context.Context, id uint64, username string) error {
	if err := q.execOne(ctx, `UPDATE users SET username = ? WHERE id = ?`, username, id64(id)); err != nil {
		return fmt.Errorf("update username: %w", err)
	}
	return nil
}

func (q *Queries) UpdateAccountPassword(ctx context.Context, id uint64, hash string) error {
	if err := q.execOne(ctx, `UPDATE users SET password = ? WHERE id = ?`, hash, id64(id)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (q *Queries) UpdateAccountPermissions(ctx context.Context, id uint64, permissions rbac.Platform) error {
	if err := q.execOne(ctx, `UPDATE users SET permissions = ? WHERE id = ?`, int64(permissions), id64(id)); err != nil {
		return fmt.Errorf("update permissions: %w", err)
	}
	return nil
}

func (q *Queries) UpdateAccountSettings(ctx context.Context, id uint64, settings AccountSettings) error {
	raw, err := encode(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := q.execOne(ctx, `UPDATE users SET settings = ? WHERE id = ?`, raw, id64(id)); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

func (q *Queries) UpdateAccountTokens(ctx context.Context, id uint64, tokens []Token) error {
	raw, err := encode(nonNil(tokens))
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := q.execOne(ctx, `UPDATE users SET tokens = ? WHERE id = ?`, raw, id64(id)); err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	return nil
}

func (q *Queries) UpdateAccountTOTP(ctx context.Context, id uint64, secret string, recovery []string) error {
	raw, err := encode(nonNil(recovery))
	if err != nil {
		return fmt.Errorf("encode recovery codes: %w", err)
	}
	if err := q.execOne(ctx, `UPDATE users SET totp = ?, recovery_codes = ? WHERE id = ?`, secret, raw, id64(id)); err != nil {
		return fmt.Errorf("update totp: %w", err)
	}
	return nil
}

func (q *Queries) DeleteAccount(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM users WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
