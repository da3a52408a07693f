package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"atto/internal/auth"
	"atto/internal/media"
	"atto/internal/rbac"
	"atto/internal/store"
	"atto/internal/util"
)

const totpIssuer = "atto"

func normalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Service) validUsername(name string) error {
	if err := checkLength("username", name, 2, 32); err != nil {
		return err
	}
	if slices.Contains(s.cfg.BannedUsernames, name) {
		return invalid("this username cannot be used", nil)
	}
	return nil
}

// CreateAccount registers a new account with default permissions.
func (s *Service) CreateAccount(ctx context.Context, username, password string) (store.Account, error) {
	if !s.cfg.RegistrationEnabled {
		return store.Account{}, disabled("registration is disabled")
	}
	username = normalizeUsername(username)
	if err := s.validUsername(username); err != nil {
		return store.Account{}, err
	}
	if len(password) < 6 {
		return store.Account{}, invalid("password is too short", map[string]any{"field": "password", "min": 6})
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return store.Account{}, fmt.Errorf("hash password: %w", err)
	}

	account := store.Account{
		ID:          s.ids.Next(),
		Created:     util.Now(),
		Username:    username,
		Password:    hash,
		Permissions: rbac.PlatformDefault,
		Settings:    store.DefaultAccountSettings(),
	}
	err = s.atomically(ctx, func(ctx context.Context, w *work) error {
		n, err := w.q.CountAccountsByUsername(ctx, username)
		if err != nil {
			return storeError(entityUser, err)
		}
		if n > 0 {
			return invalid("username in use", nil)
		}
		if err := w.q.InsertAccount(ctx, account); err != nil {
			if store.IsUniqueViolation(err) {
				return invalid("username in use", nil)
			}
			return storeError(entityUser, err)
		}
		accounts.stale(w, account)
		return nil
	})
	if err != nil {
		return store.Account{}, err
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, id uint64) (store.Account, error) {
	return accounts.get(ctx, s, id)
}

func (s *Service) GetAccountByUsername(ctx context.Context, username string) (store.Account, error) {
	username = normalizeUsername(username)
	return fetchCached(ctx, s, s.keys.Key(entityUser, username), entityUser, func(ctx context.Context, q *store.Queries) (store.Account, error) {
		return q.GetAccountByUsername(ctx, username)
	})
}

// AccountOrDeleted resolves an owner for display; missing accounts read
// as the deleted placeholder.
func (s *Service) AccountOrDeleted(ctx context.Context, id uint64) (store.Account, error) {
	account, err := s.GetAccount(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return store.DeletedAccount(), nil
	}
	return account, err
}

// AccountByToken resolves a raw session token. This is the only way to
// obtain an actor; it always reads the store.
func (s *Service) AccountByToken(ctx context.Context, raw string) (store.Account, error) {
	if raw == "" {
		return store.Account{}, notFound(entityUser)
	}
	hash := auth.HashToken(raw)
	account, err := read(ctx, s, entityUser, func(ctx context.Context, q *store.Queries) (store.Account, error) {
		return q.GetAccountByTokenHash(ctx, hash)
	})
	if err != nil {
		return store.Account{}, err
	}
	if account.Permissions.IsBanned() {
		return store.Account{}, denied("account is banned")
	}
	return account, nil
}

// Login checks the password and, when enabled, the second factor, then
// issues a session token bound to ip. The raw token is returned once.
func (s *Service) Login(ctx context.Context, username, password, code, ip string) (string, store.Account, error) {
	username = normalizeUsername(username)
	var raw string
	var account store.Account
	err := s.atomically(ctx, func(ctx context.Context, w *work) error {
		var err error
		account, err = w.q.GetAccountByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return denied(auth.ErrInvalidCredentials.Error())
		}
		if err != nil {
			return storeError(entityUser, err)
		}
		if err := auth.CheckPassword(account.Password, password); err != nil {
			return denied(err.Error())
		}
		if account.Permissions.IsBanned() {
			return denied("account is banned")
		}

		if account.TOTP != "" {
			if !auth.ValidateTOTP(account.TOTP, code) {
				rest, ok := auth.UseRecoveryCode(account.RecoveryCodes, code)
				if !ok {
					return denied("invalid second factor code")
				}
				account.RecoveryCodes = rest
				if err := w.q.UpdateAccountTOTP(ctx, account.ID, account.TOTP, rest); err != nil {
					return storeError(entityUser, err)
				}
			}
		}

		var hash string
		raw, hash = auth.NewSessionToken()
		account.Tokens = append(account.Tokens, store.Token{IP: ip, Hash: hash, Created: util.Now()})
		if err := w.q.UpdateAccountTokens(ctx, account.ID, account.Tokens); err != nil {
			return storeError(entityUser, err)
		}
		accounts.stale(w, account)
		return nil
	})
	if err != nil {
		return "", store.Account{}, err
	}
	return raw, account, nil
}

// Logout revokes one session token of the actor.
func (s *Service) Logout(ctx context.Context, actor *store.Account, raw string) error {
	hash := auth.HashToken(raw)
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		kept := slices.DeleteFunc(slices.Clone(me.Tokens), func(t store.Token) bool { return t.Hash == hash })
		if len(kept) == len(me.Tokens) {
			return notFound("session")
		}
		if err := w.q.UpdateAccountTokens(ctx, me.ID, kept); err != nil {
			return storeError(entityUser, err)
		}
		accounts.stale(w, me)
		return nil
	})
}

func (s *Service) UpdateAccountSettings(ctx context.Context, actor *store.Account, id uint64, settings store.AccountSettings) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		target, err := accounts.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeCommunity(ctx, me, grant{
			owner:    target.ID,
			platform: rbac.ManageUsers,
			action:   fmt.Sprintf("update settings of user %d", target.ID),
		}); err != nil {
			return err
		}
		if err := checkLength("display name", settings.DisplayName, 0, 32); err != nil {
			return err
		}
		if err := checkLength("biography", settings.Biography, 0, 4096); err != nil {
			return err
		}
		if err := w.q.UpdateAccountSettings(ctx, target.ID, settings); err != nil {
			return storeError(entityUser, err)
		}
		accounts.stale(w, target)
		return nil
	})
}

// ChangePassword replaces the actor's own password. Managers reset other
// accounts without knowing the current one.
func (s *Service) ChangePassword(ctx context.Context, actor *store.Account, id uint64, current, next string) error {
	if len(next) < 6 {
		return invalid("password is too short", map[string]any{"field": "password", "min": 6})
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		target, err := accounts.in(ctx, w, id)
		if err != nil {
			return err
		}
		if me.ID == target.ID {
			if err := auth.CheckPassword(target.Password, current); err != nil {
				return denied("password does not match")
			}
		} else if err := w.require(ctx, me, rbac.ManageUsers, fmt.Sprintf("reset password of user %d", target.ID)); err != nil {
			return err
		}
		if err := w.q.UpdateAccountPassword(ctx, target.ID, hash); err != nil {
			return storeError(entityUser, err)
		}
		accounts.stale(w, target)
		return nil
	})
}

// ChangeUsername renames an account. The old and the new username keys
// are both invalidated.
func (s *Service) ChangeUsername(ctx context.Context, actor *store.Account, id uint64, username string) error {
	username = normalizeUsername(username)
	if err := s.validUsername(username); err != nil {
		return err
	}
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		target, err := accounts.in(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.authorizeCommunity(ctx, me, grant{
			owner:    target.ID,
			platform: rbac.ManageUsers,
			action:   fmt.Sprintf("rename user %d", target.ID),
		}); err != nil {
			return err
		}
		if target.Username == username {
			return nil
		}
		n, err := w.q.CountAccountsByUsername(ctx, username)
		if err != nil {
			return storeError(entityUser, err)
		}
		if n > 0 {
			return invalid("username in use", nil)
		}
		if err := w.q.UpdateAccountUsername(ctx, target.ID, username); err != nil {
			return storeError(entityUser, err)
		}
		accounts.stale(w, target)
		w.stale(w.keys.Key(entityUser, username))
		return nil
	})
}

// UpdateAccountRole sets the platform permissions of another account.
// Only administrators touch managers, and nobody grants bits they lack.
func (s *Service) UpdateAccountRole(ctx context.Context, actor *store.Account, id uint64, role rbac.Platform) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		if !me.Permissions.Check(rbac.ManageUsers) {
			return denied("not allowed to manage users")
		}
		target, err := accounts.in(ctx, w, id)
		if err != nil {
			return err
		}
		if target.ID == me.ID {
			return denied("cannot change your own role")
		}
		if target.Permissions.IsManager() && !me.Permissions.IsAdmin() {
			return denied("cannot manage the role of other managers")
		}
		if !me.Permissions.Check(role &^ rbac.PlatformBanned) {
			return denied("cannot grant permissions you do not hold")
		}
		if role.IsBanned() && !me.Permissions.Check(rbac.ManageBans) {
			return denied("not allowed to ban users")
		}
		if err := w.q.UpdateAccountPermissions(ctx, target.ID, role); err != nil {
			return storeError(entityUser, err)
		}
		accounts.stale(w, target)
		return w.audit(ctx, me.ID, fmt.Sprintf("update role of user %d to %d (%s)", target.ID, uint32(role), role))
	})
}

// GrantAdministrator makes an existing account a platform administrator.
// It is the operator path used before any administrator exists, so no
// actor is checked; the grant is recorded in the audit log as moderator 0.
func (s *Service) GrantAdministrator(ctx context.Context, id uint64) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		target, err := accounts.in(ctx, w, id)
		if err != nil {
			return err
		}
		role := target.Permissions | rbac.PlatformDefault | rbac.PlatformAdministrator
		if err := w.q.UpdateAccountPermissions(ctx, target.ID, role); err != nil {
			return storeError(entityUser, err)
		}
		accounts.stale(w, target)
		return w.audit(ctx, 0, fmt.Sprintf("grant administrator to user %d (%s)", target.ID, target.Username))
	})
}

// EnableTOTP turns on the second factor and returns the secret, its
// provisioning url and fresh recovery codes.
func (s *Service) EnableTOTP(ctx context.Context, actor *store.Account) (secret, url string, codes []string, err error) {
	err = s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		if me.TOTP != "" {
			return invalid("second factor is already enabled", nil)
		}
		secret, url, err = auth.NewTOTP(totpIssuer, me.Username)
		if err != nil {
			return fmt.Errorf("generate totp: %w", err)
		}
		codes = auth.NewRecoveryCodes()
		if err := w.q.UpdateAccountTOTP(ctx, me.ID, secret, codes); err != nil {
			return storeError(entityUser, err)
		}
		accounts.stale(w, me)
		return nil
	})
	if err != nil {
		return "", "", nil, err
	}
	return secret, url, codes, nil
}

// DisableTOTP removes the second factor after a valid code.
func (s *Service) DisableTOTP(ctx context.Context, actor *store.Account, code string) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		if me.TOTP == "" {
			return invalid("second factor is not enabled", nil)
		}
		if !auth.ValidateTOTP(me.TOTP, code) {
			if _, ok := auth.UseRecoveryCode(me.RecoveryCodes, code); !ok {
				return denied("invalid second factor code")
			}
		}
		if err := w.q.UpdateAccountTOTP(ctx, me.ID, "", nil); err != nil {
			return storeError(entityUser, err)
		}
		accounts.stale(w, me)
		return nil
	})
}

// DeleteAccount removes an account and everything it owns. The owner
// confirms with the password; managers delete without it.
func (s *Service) DeleteAccount(ctx context.Context, actor *store.Account, id uint64, password string) error {
	return s.atomically(ctx, func(ctx context.Context, w *work) error {
		me, err := w.actor(ctx, actor)
		if err != nil {
			return err
		}
		target, err := accounts.in(ctx, w, id)
		if err != nil {
			return err
		}
		if me.ID == target.ID {
			if err := auth.CheckPassword(target.Password, password); err != nil {
				return denied("password does not match")
			}
		} else {
			if !me.Permissions.IsManager() {
				return denied("not allowed to delete users")
			}
			if target.Permissions.IsManager() && !me.Permissions.IsAdmin() {
				return denied("cannot delete other managers")
			}
			if err := w.audit(ctx, me.ID, fmt.Sprintf("delete user %d (%s)", target.ID, target.Username)); err != nil {
				return err
			}
		}
		return w.purgeAccount(ctx, target)
	})
}

// purgeAccount cascades an account delete, keeping every counter on the
// surviving rows consistent.
func (w *work) purgeAccount(ctx context.Context, target store.Account) error {
	owned, err := w.q.ListCommunitiesByOwner(ctx, target.ID)
	if err != nil {
		return storeError(entityCommunity, err)
	}
	for _, community := range owned {
		if err := w.purgeCommunity(ctx, community); err != nil {
			return err
		}
	}

	joined, err := w.q.ListMembershipsByOwner(ctx, target.ID)
	if err != nil {
		return storeError(entityMembership, err)
	}
	for _, m := range joined {
		if err := w.removeMembership(ctx, m); err != nil {
			return err
		}
	}

	given, err := w.q.ListReactionsByOwner(ctx, target.ID)
	if err != nil {
		return storeError(entityReaction, err)
	}
	for _, r := range given {
		if err := w.removeReaction(ctx, r); err != nil {
			return err
		}
	}

	written, err := w.q.ListPostsByOwner(ctx, target.ID)
	if err != nil {
		return storeError(entityPost, err)
	}
	for _, p := range written {
		if err := w.removePost(ctx, p); err != nil {
			return err
		}
	}

	asked, err := w.q.ListQuestionsByOwner(ctx, target.ID)
	if err != nil {
		return storeError(entityQuestion, err)
	}
	received, err := w.q.ListQuestionsByReceiver(ctx, target.ID)
	if err != nil {
		return storeError(entityQuestion, err)
	}
	for _, q := range append(asked, received...) {
		if err := w.removeQuestion(ctx, q); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	pending, err := w.q.ListRequestsByOwner(ctx, target.ID)
	if err != nil {
		return storeError(entityRequest, err)
	}
	for _, r := range pending {
		if err := w.removeRequest(ctx, r); err != nil {
			return err
		}
	}

	follows, err := w.q.ListEdgesTouching(ctx, store.Follows, target.ID)
	if err != nil {
		return storeError(entityFollow, err)
	}
	for _, e := range follows {
		if err := w.removeFollow(ctx, e); err != nil {
			return err
		}
	}
	blocks, err := w.q.ListEdgesTouching(ctx, store.Blocks, target.ID)
	if err != nil {
		return storeError(entityBlock, err)
	}
	for _, e := range blocks {
		if err := w.q.DeleteEdge(ctx, store.Blocks, e.ID); err != nil {
			return storeError(entityBlock, err)
		}
	}
	if err := w.q.DeleteIPBlocksByInitiator(ctx, target.ID); err != nil {
		return storeError(entityIPBlock, err)
	}

	owns, err := w.q.ListJournalsByOwner(ctx, target.ID)
	if err != nil {
		return storeError(entityJournal, err)
	}
	for _, j := range owns {
		if err := w.removeJournal(ctx, j); err != nil {
			return err
		}
	}
	roles, err := w.q.ListJournalMembershipsByOwner(ctx, target.ID)
	if err != nil {
		return storeError(entityJournalRole, err)
	}
	for _, m := range roles {
		journalRoles.stale(w, m)
	}
	if err := w.q.DeleteJournalMembershipsByOwner(ctx, target.ID); err != nil {
		return storeError(entityJournalRole, err)
	}

	if err := w.q.DeleteNotificationsByOwner(ctx, target.ID); err != nil {
		return storeError(entityNotification, err)
	}
	if err := w.q.DeleteWarningsByReceiver(ctx, target.ID); err != nil {
		return storeError(entityWarning, err)
	}
	if err := w.q.DeleteAccount(ctx, target.ID); err != nil {
		return storeError(entityUser, err)
	}
	accounts.stale(w, target)

	w.then(func(ctx context.Context) {
		keys := []string{media.Key(media.AccountAvatar, target.ID), media.Key(media.AccountBanner, target.ID)}
		if err := w.s.media.Remove(ctx, keys...); err != nil {
			w.s.log.Error("remove account media", "user", target.ID, "err", err)
		}
	})
	return nil
}
