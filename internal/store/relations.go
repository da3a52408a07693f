package store

import (
	"context"
	"fmt"
)

const reactionColumns = `id, created, owner, asset, asset_type, is_like`

func scanReaction(r rowScanner) (Reaction, error) {
	var item Reaction
	err := r.Scan(&item.ID, &item.Created, &item.Owner, &item.Asset, &item.AssetType, &item.IsLike)
	return item, err
}

func (q *Queries) GetReaction(ctx context.Context, id uint64) (Reaction, error) {
	item, err := one(ctx, q, scanReaction, `SELECT `+reactionColumns+` FROM reactions WHERE id = ?`, id64(id))
	if err != nil {
		return Reaction{}, fmt.Errorf("get reaction: %w", err)
	}
	return item, nil
}

func (q *Queries) GetReactionByOwnerAsset(ctx context.Context, owner, asset uint64) (Reaction, error) {
	item, err := one(ctx, q, scanReaction, `SELECT `+reactionColumns+` FROM reactions WHERE owner = ? AND asset = ?`,
		id64(owner), id64(asset))
	if err != nil {
		return Reaction{}, fmt.Errorf("get reaction by owner: %w", err)
	}
	return item, nil
}

func (q *Queries) ListReactionsByOwner(ctx context.Context, owner uint64) ([]Reaction, error) {
	items, err := list(ctx, q, scanReaction, `SELECT `+reactionColumns+` FROM reactions WHERE owner = ?`, id64(owner))
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	return items, nil
}

func (q *Queries) ListReactionsByAsset(ctx context.Context, asset uint64) ([]Reaction, error) {
	items, err := list(ctx, q, scanReaction, `SELECT `+reactionColumns+` FROM reactions WHERE asset = ?`, id64(asset))
	if err != nil {
		return nil, fmt.Errorf("list asset reactions: %w", err)
	}
	return items, nil
}

func (q *Queries) InsertReaction(ctx context.Context, item Reaction) error {
	_, err := q.exec(ctx, `INSERT INTO reactions (id, created, owner, asset, asset_type, is_like) VALUES (?, ?, ?, ?, ?, ?)`,
		id64(item.ID), item.Created, id64(item.Owner), id64(item.Asset), string(item.AssetType), boolInt(item.IsLike))
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

func (q *Queries) DeleteReaction(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM reactions WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	return nil
}

// EdgeTable selects one of the account-to-account relation tables.
type EdgeTable string

const (
	Follows EdgeTable = "userfollows"
	Blocks  EdgeTable = "userblocks"
)

const edgeColumns = `id, created, initiator, receiver`

func scanEdge(r rowScanner) (Edge, error) {
	var item Edge
	err := r.Scan(&item.ID, &item.Created, &item.Initiator, &item.Receiver)
	return item, err
}

func (t EdgeTable) valid() error {
	if t != Follows && t != Blocks {
		return fmt.Errorf("unknown edge table %q", string(t))
	}
	return nil
}

func (q *Queries) GetEdge(ctx context.Context, table EdgeTable, id uint64) (Edge, error) {
	if err := table.valid(); err != nil {
		return Edge{}, err
	}
	item, err := one(ctx, q, scanEdge, `SELECT `+edgeColumns+` FROM `+string(table)+` WHERE id = ?`, id64(id))
	if err != nil {
		return Edge{}, fmt.Errorf("get %s: %w", table, err)
	}
	return item, nil
}

func (q *Queries) GetEdgeByPair(ctx context.Context, table EdgeTable, initiator, receiver uint64) (Edge, error) {
	if err := table.valid(); err != nil {
		return Edge{}, err
	}
	item, err := one(ctx, q, scanEdge, `SELECT `+edgeColumns+` FROM `+string(table)+` WHERE initiator = ? AND receiver = ?`,
		id64(initiator), id64(receiver))
	if err != nil {
		return Edge{}, fmt.Errorf("get %s by pair: %w", table, err)
	}
	return item, nil
}

// ListEdgesTouching returns every edge in table that starts or ends at
// account.
func (q *Queries) ListEdgesTouching(ctx context.Context, table EdgeTable, account uint64) ([]Edge, error) {
	if err := table.valid(); err != nil {
		return nil, err
	}
	items, err := list(ctx, q, scanEdge, `SELECT `+edgeColumns+` FROM `+string(table)+` WHERE initiator = ? OR receiver = ?`,
		id64(account), id64(account))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return items, nil
}

func (q *Queries) ListEdgesByReceiver(ctx context.Context, table EdgeTable, receiver uint64, batch, number int) ([]Edge, error) {
	if err := table.valid(); err != nil {
		return nil, err
	}
	limit, offset := page(batch, number)
	items, err := list(ctx, q, scanEdge,
		`SELECT `+edgeColumns+` FROM `+string(table)+` WHERE receiver = ? ORDER BY created DESC LIMIT ? OFFSET ?`,
		id64(receiver), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s by receiver: %w", table, err)
	}
	return items, nil
}

func (q *Queries) InsertEdge(ctx context.Context, table EdgeTable, item Edge) error {
	if err := table.valid(); err != nil {
		return err
	}
	_, err := q.exec(ctx, `INSERT INTO `+string(table)+` (id, created, initiator, receiver) VALUES (?, ?, ?, ?)`,
		id64(item.ID), item.Created, id64(item.Initiator), id64(item.Receiver))
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (q *Queries) DeleteEdge(ctx context.Context, table EdgeTable, id uint64) error {
	if err := table.valid(); err != nil {
		return err
	}
	if err := q.execOne(ctx, `DELETE FROM `+string(table)+` WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

const ipBlockColumns = `id, created, initiator, receiver`

func scanIPBlock(r rowScanner) (IPBlock, error) {
	var item IPBlock
	err := r.Scan(&item.ID, &item.Created, &item.Initiator, &item.Receiver)
	return item, err
}

func (q *Queries) GetIPBlock(ctx context.Context, id uint64) (IPBlock, error) {
	item, err := one(ctx, q, scanIPBlock, `SELECT `+ipBlockColumns+` FROM ipblocks WHERE id = ?`, id64(id))
	if err != nil {
		return IPBlock{}, fmt.Errorf("get ip block: %w", err)
	}
	return item, nil
}

func (q *Queries) GetIPBlockByPair(ctx context.Context, initiator uint64, ip string) (IPBlock, error) {
	item, err := one(ctx, q, scanIPBlock, `SELECT `+ipBlockColumns+` FROM ipblocks WHERE initiator = ? AND receiver = ?`,
		id64(initiator), ip)
	if err != nil {
		return IPBlock{}, fmt.Errorf("get ip block by pair: %w", err)
	}
	return item, nil
}

func (q *Queries) InsertIPBlock(ctx context.Context, item IPBlock) error {
	_, err := q.exec(ctx, `INSERT INTO ipblocks (id, created, initiator, receiver) VALUES (?, ?, ?, ?)`,
		id64(item.ID), item.Created, id64(item.Initiator), item.Receiver)
	if err != nil {
		return fmt.Errorf("insert ip block: %w", err)
	}
	return nil
}

func (q *Queries) DeleteIPBlock(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM ipblocks WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete ip block: %w", err)
	}
	return nil
}

func (q *Queries) DeleteIPBlocksByInitiator(ctx context.Context, initiator uint64) error {
	if _, err := q.exec(ctx, `DELETE FROM ipblocks WHERE initiator = ?`, id64(initiator)); err != nil {
		return fmt.Errorf("delete ip blocks: %w", err)
	}
	return nil
}

func scanIPBan(r rowScanner) (IPBan, error) {
	var item IPBan
	err := r.Scan(&item.IP, &item.Created, &item.Reason, &item.Moderator)
	return item, err
}

func (q *Queries) GetIPBan(ctx context.Context, ip string) (IPBan, error) {
	item, err := one(ctx, q, scanIPBan, `SELECT ip, created, reason, moderator FROM ipbans WHERE ip = ?`, ip)
	if err != nil {
		return IPBan{}, fmt.Errorf("get ip ban: %w", err)
	}
	return item, nil
}

func (q *Queries) InsertIPBan(ctx context.Context, item IPBan) error {
	_, err := q.exec(ctx, `INSERT INTO ipbans (ip, created, reason, moderator) VALUES (?, ?, ?, ?)`,
		item.IP, item.Created, item.Reason, id64(item.Moderator))
	if err != nil {
		return fmt.Errorf("insert ip ban: %w", err)
	}
	return nil
}

func (q *Queries) DeleteIPBan(ctx context.Context, ip string) error {
	if err := q.execOne(ctx, `DELETE FROM ipbans WHERE ip = ?`, ip); err != nil {
		return fmt.Errorf("delete ip ban: %w", err)
	}
	return nil
}
