package store

import (
	"context"
	"encoding/json"
	"fmt"

	"atto/internal/rbac"
)

const communityColumns = `id, created, title, context, owner, read_access, write_access, join_access, likes, dislikes, member_count`

func scanCommunity(r rowScanner) (Community, error) {
	var (
		c   Community
		ctx string
	)
	err := r.Scan(&c.ID, &c.Created, &c.Title, &ctx, &c.Owner, &c.ReadAccess, &c.WriteAccess, &c.JoinAccess,
		&c.Likes, &c.Dislikes, &c.MemberCount)
	if err != nil {
		return Community{}, err
	}
	if err := json.Unmarshal([]byte(ctx), &c.Context); err != nil {
		return Community{}, fmt.Errorf("decode community context: %w", err)
	}
	return c, nil
}

func (q *Queries) GetCommunity(ctx context.Context, id uint64) (Community, error) {
	c, err := one(ctx, q, scanCommunity, `SELECT `+communityColumns+` FROM communities WHERE id = ?`, id64(id))
	if err != nil {
		return Community{}, fmt.Errorf("get community: %w", err)
	}
	return c, nil
}

func (q *Queries) GetCommunityByTitle(ctx context.Context, title string) (Community, error) {
	c, err := one(ctx, q, scanCommunity, `SELECT `+communityColumns+` FROM communities WHERE title = ?`, title)
	if err != nil {
		return Community{}, fmt.Errorf("get community by title: %w", err)
	}
	return c, nil
}

func (q *Queries) ListCommunitiesByOwner(ctx context.Context, owner uint64) ([]Community, error) {
	items, err := list(ctx, q, scanCommunity, `SELECT `+communityColumns+` FROM communities WHERE owner = ? ORDER BY created DESC`, id64(owner))
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	return items, nil
}

func (q *Queries) CountCommunitiesByTitle(ctx context.Context, title string) (int64, error) {
	n, err := q.count(ctx, `SELECT COUNT(*) FROM communities WHERE title = ?`, title)
	if err != nil {
		return 0, fmt.Errorf("count communities: %w", err)
	}
	return n, nil
}

func (q *Queries) InsertCommunity(ctx context.Context, c Community) error {
	raw, err := encode(c.Context)
	if err != nil {
		return fmt.Errorf("encode community context: %w", err)
	}
	_, err = q.exec(ctx, `
		INSERT INTO communities (id, created, title, context, owner, read_access, write_access, join_access, likes, dislikes, member_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0)
	`, id64(c.ID), c.Created, c.Title, raw, id64(c.Owner), string(c.ReadAccess), string(c.WriteAccess), string(c.JoinAccess))
	if err != nil {
		return fmt.Errorf("insert community: %w", err)
	}
	return nil
}

func (q *Queries) UpdateCommunityTitle(ctx context.Context, id uint64, title string) error {
	if err := q.execOne(ctx, `UPDATE communities SET title = ? WHERE id = ?`, title, id64(id)); err != nil {
		return fmt.Errorf("update community title: %w", err)
	}
	return nil
}

func (q *Queries) UpdateCommunityContext(ctx context.Context, id uint64, value CommunityContext) error {
	raw, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode community context: %w", err)
	}
	if err := q.execOne(ctx, `UPDATE communities SET context = ? WHERE id = ?`, raw, id64(id)); err != nil {
		return fmt.Errorf("update community context: %w", err)
	}
	return nil
}

func (q *Queries) UpdateCommunityAccess(ctx context.Context, id uint64, read ReadAccess, write WriteAccess, join JoinAccess) error {
	err := q.execOne(ctx, `UPDATE communities SET read_access = ?, write_access = ?, join_access = ? WHERE id = ?`,
		string(read), string(write), string(join), id64(id))
	if err != nil {
		return fmt.Errorf("update community access: %w", err)
	}
	return nil
}

func (q *Queries) UpdateCommunityOwner(ctx context.Context, id, owner uint64) error {
	if err := q.execOne(ctx, `UPDATE communities SET owner = ? WHERE id = ?`, id64(owner), id64(id)); err != nil {
		return fmt.Errorf("update community owner: %w", err)
	}
	return nil
}

func (q *Queries) DeleteCommunity(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM communities WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete community: %w", err)
	}
	return nil
}

const membershipColumns = `id, created, owner, community, role`

func scanMembership(r rowScanner) (Membership, error) {
	var (
		m    Membership
		role int64
	)
	if err := r.Scan(&m.ID, &m.Created, &m.Owner, &m.Community, &role); err != nil {
		return Membership{}, err
	}
	m.Role = rbac.CommunityFrom(role)
	return m, nil
}

func (q *Queries) GetMembership(ctx context.Context, id uint64) (Membership, error) {
	m, err := one(ctx, q, scanMembership, `SELECT `+membershipColumns+` FROM memberships WHERE id = ?`, id64(id))
	if err != nil {
		return Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (q *Queries) GetMembershipByOwnerCommunity(ctx context.Context, owner, community uint64) (Membership, error) {
	m, err := one(ctx, q, scanMembership, `SELECT `+membershipColumns+` FROM memberships WHERE owner = ? AND community = ?`,
		id64(owner), id64(community))
	if err != nil {
		return Membership{}, fmt.Errorf("get membership by owner: %w", err)
	}
	return m, nil
}

func (q *Queries) ListMembershipsByOwner(ctx context.Context, owner uint64) ([]Membership, error) {
	items, err := list(ctx, q, scanMembership, `SELECT `+membershipColumns+` FROM memberships WHERE owner = ? ORDER BY created DESC`, id64(owner))
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return items, nil
}

func (q *Queries) ListMembershipsByCommunity(ctx context.Context, community uint64, batch, number int) ([]Membership, error) {
	limit, offset := page(batch, number)
	items, err := list(ctx, q, scanMembership,
		`SELECT `+membershipColumns+` FROM memberships WHERE community = ? ORDER BY created DESC LIMIT ? OFFSET ?`,
		id64(community), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list community memberships: %w", err)
	}
	return items, nil
}

func (q *Queries) ListAllMembershipsByCommunity(ctx context.Context, community uint64) ([]Membership, error) {
	items, err := list(ctx, q, scanMembership, `SELECT `+membershipColumns+` FROM memberships WHERE community = ?`, id64(community))
	if err != nil {
		return nil, fmt.Errorf("list community memberships: %w", err)
	}
	return items, nil
}

func (q *Queries) CountAdministeredCommunities(ctx context.Context, owner uint64) (int64, error) {
	n, err := q.count(ctx, `SELECT COUNT(*) FROM communities WHERE owner = ?`, id64(owner))
	if err != nil {
		return 0, fmt.Errorf("count owned communities: %w", err)
	}
	return n, nil
}

func (q *Queries) InsertMembership(ctx context.Context, m Membership) error {
	_, err := q.exec(ctx, `INSERT INTO memberships (id, created, owner, community, role) VALUES (?, ?, ?, ?, ?)`,
		id64(m.ID), m.Created, id64(m.Owner), id64(m.Community), int64(m.Role))
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (q *Queries) UpdateMembershipRole(ctx context.Context, id uint64, role rbac.Community) error {
	if err := q.execOne(ctx, `UPDATE memberships SET role = ? WHERE id = ?`, int64(role), id64(id)); err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	return nil
}

func (q *Queries) DeleteMembership(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM memberships WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}
