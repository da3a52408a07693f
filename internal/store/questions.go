package store

import (
	"context"
	"fmt"
)

const questionColumns = `id, created, owner, receiver, content, is_global, community, likes, dislikes, answer_count, ip`

func scanQuestion(r rowScanner) (Question, error) {
	var q Question
	err := r.Scan(&q.ID, &q.Created, &q.Owner, &q.Receiver, &q.Content, &q.IsGlobal, &q.Community,
		&q.Likes, &q.Dislikes, &q.AnswerCount, &q.IP)
	return q, err
}

func (q *Queries) GetQuestion(ctx context.Context, id uint64) (Question, error) {
	item, err := one(ctx, q, scanQuestion, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id64(id))
	if err != nil {
		return Question{}, fmt.Errorf("get question: %w", err)
	}
	return item, nil
}

func (q *Queries) InsertQuestion(ctx context.Context, item Question) error {
	_, err := q.exec(ctx, `
		INSERT INTO questions (id, created, owner, receiver, content, is_global, community, likes, dislikes, answer_count, ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?)
	`, id64(item.ID), item.Created, id64(item.Owner), id64(item.Receiver), item.Content, boolInt(item.IsGlobal),
		id64(item.Community), item.IP)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (q *Queries) DeleteQuestion(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM questions WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

func (q *Queries) ListQuestionsByReceiver(ctx context.Context, receiver uint64) ([]Question, error) {
	items, err := list(ctx, q, scanQuestion, `SELECT `+questionColumns+` FROM questions WHERE receiver = ? ORDER BY created DESC`, id64(receiver))
	if err != nil {
		return nil, fmt.Errorf("list received questions: %w", err)
	}
	return items, nil
}

func (q *Queries) ListQuestionsByOwner(ctx context.Context, owner uint64) ([]Question, error) {
	items, err := list(ctx, q, scanQuestion, `SELECT `+questionColumns+` FROM questions WHERE owner = ? ORDER BY created DESC`, id64(owner))
	if err != nil {
		return nil, fmt.Errorf("list asked questions: %w", err)
	}
	return items, nil
}

func (q *Queries) ListGlobalQuestions(ctx context.Context, community uint64, batch, number int) ([]Question, error) {
	limit, offset := page(batch, number)
	items, err := list(ctx, q, scanQuestion,
		`SELECT `+questionColumns+` FROM questions WHERE is_global = 1 AND community = ? ORDER BY created DESC LIMIT ? OFFSET ?`,
		id64(community), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list global questions: %w", err)
	}
	return items, nil
}

const requestColumns = `id, created, owner, action_type, linked_asset`

func scanRequest(r rowScanner) (ActionRequest, error) {
	var item ActionRequest
	err := r.Scan(&item.ID, &item.Created, &item.Owner, &item.ActionType, &item.LinkedAsset)
	return item, err
}

func (q *Queries) GetRequest(ctx context.Context, id uint64) (ActionRequest, error) {
	item, err := one(ctx, q, scanRequest, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id64(id))
	if err != nil {
		return ActionRequest{}, fmt.Errorf("get request: %w", err)
	}
	return item, nil
}

func (q *Queries) GetRequestByLinkedAsset(ctx context.Context, action ActionType, asset uint64) (ActionRequest, error) {
	item, err := one(ctx, q, scanRequest, `SELECT `+requestColumns+` FROM requests WHERE action_type = ? AND linked_asset = ?`,
		string(action), id64(asset))
	if err != nil {
		return ActionRequest{}, fmt.Errorf("get request by asset: %w", err)
	}
	return item, nil
}

func (q *Queries) GetRequestByOwnerLinkedAsset(ctx context.Context, owner uint64, action ActionType, asset uint64) (ActionRequest, error) {
	item, err := one(ctx, q, scanRequest,
		`SELECT `+requestColumns+` FROM requests WHERE owner = ? AND action_type = ? AND linked_asset = ?`,
		id64(owner), string(action), id64(asset))
	if err != nil {
		return ActionRequest{}, fmt.Errorf("get request by owner: %w", err)
	}
	return item, nil
}

func (q *Queries) ListRequestsByOwner(ctx context.Context, owner uint64) ([]ActionRequest, error) {
	items, err := list(ctx, q, scanRequest, `SELECT `+requestColumns+` FROM requests WHERE owner = ? ORDER BY created DESC`, id64(owner))
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return items, nil
}

func (q *Queries) InsertRequest(ctx context.Context, item ActionRequest) error {
	_, err := q.exec(ctx, `INSERT INTO requests (id, created, owner, action_type, linked_asset) VALUES (?, ?, ?, ?, ?)`,
		id64(item.ID), item.Created, id64(item.Owner), string(item.ActionType), id64(item.LinkedAsset))
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (q *Queries) DeleteRequest(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM requests WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}
