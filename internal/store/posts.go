package store

import (
	"context"
	"encoding/json"
	"fmt"
)

const postColumns = `id, created, content, owner, community, replying_to, context, likes, dislikes, comment_count`

func scanPost(r rowScanner) (Post, error) {
	var (
		p   Post
		raw string
	)
	err := r.Scan(&p.ID, &p.Created, &p.Content, &p.Owner, &p.Community, &p.ReplyingTo, &raw,
		&p.Likes, &p.Dislikes, &p.CommentCount)
	if err != nil {
		return Post{}, err
	}
	p.Context = DefaultPostContext()
	if err := json.Unmarshal([]byte(raw), &p.Context); err != nil {
		return Post{}, fmt.Errorf("decode post context: %w", err)
	}
	return p, nil
}

func (q *Queries) GetPost(ctx context.Context, id uint64) (Post, error) {
	p, err := one(ctx, q, scanPost, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id64(id))
	if err != nil {
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// InsertPost stores p. The answering column mirrors Context.Answering so
// answers can be found without reading every context blob.
func (q *Queries) InsertPost(ctx context.Context, p Post) error {
	raw, err := encode(p.Context)
	if err != nil {
		return fmt.Errorf("encode post context: %w", err)
	}
	_, err = q.exec(ctx, `
		INSERT INTO posts (id, created, content, owner, community, replying_to, answering, context, likes, dislikes, comment_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0)
	`, id64(p.ID), p.Created, p.Content, id64(p.Owner), id64(p.Community), id64(p.ReplyingTo),
		id64(p.Context.Answering), raw)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (q *Queries) UpdatePostContent(ctx context.Context, id uint64, content string, postCtx PostContext) error {
	raw, err := encode(postCtx)
	if err != nil {
		return fmt.Errorf("encode post context: %w", err)
	}
	if err := q.execOne(ctx, `UPDATE posts SET content = ?, context = ? WHERE id = ?`, content, raw, id64(id)); err != nil {
		return fmt.Errorf("update post content: %w", err)
	}
	return nil
}

func (q *Queries) UpdatePostContext(ctx context.Context, id uint64, postCtx PostContext) error {
	raw, err := encode(postCtx)
	if err != nil {
		return fmt.Errorf("encode post context: %w", err)
	}
	if err := q.execOne(ctx, `UPDATE posts SET context = ? WHERE id = ?`, raw, id64(id)); err != nil {
		return fmt.Errorf("update post context: %w", err)
	}
	return nil
}

func (q *Queries) DeletePost(ctx context.Context, id uint64) error {
	if err := q.execOne(ctx, `DELETE FROM posts WHERE id = ?`, id64(id)); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (q *Queries) ListPostsByCommunity(ctx context.Context, community uint64, batch, number int) ([]Post, error) {
	limit, offset := page(batch, number)
	items, err := list(ctx, q, scanPost,
		`SELECT `+postColumns+` FROM posts WHERE community = ? AND replying_to = 0 ORDER BY created DESC LIMIT ? OFFSET ?`,
		id64(community), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list community posts: %w", err)
	}
	return items, nil
}

// ListPosts pages through every post, oldest first, for reindexing.
func (q *Queries) ListPosts(ctx context.Context, batch, number int) ([]Post, error) {
	limit, offset := page(batch, number)
	items, err := list(ctx, q, scanPost, `SELECT `+postColumns+` FROM posts ORDER BY created ASC, id ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return items, nil
}

func (q *Queries) ListPostsByOwner(ctx context.Context, owner uint64) ([]Post, error) {
	items, err := list(ctx, q, scanPost, `SELECT `+postColumns+` FROM posts WHERE owner = ? ORDER BY created DESC`, id64(owner))
	if err != nil {
		return nil, fmt.Errorf("list owner posts: %w", err)
	}
	return items, nil
}

func (q *Queries) ListReplies(ctx context.Context, parent uint64, batch, number int) ([]Post, error) {
	limit, offset := page(batch, number)
	items, err := list(ctx, q, scanPost,
		`SELECT `+postColumns+` FROM posts WHERE replying_to = ? ORDER BY created ASC LIMIT ? OFFSET ?`,
		id64(parent), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return items, nil
}

func (q *Queries) ListAnswers(ctx context.Context, question uint64) ([]Post, error) {
	items, err := list(ctx, q, scanPost, `SELECT `+postColumns+` FROM posts WHERE answering = ? ORDER BY created ASC`, id64(question))
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return items, nil
}

// SearchPosts is the plain LIKE fallback used when no search engine is
// configured. community 0 searches everywhere. It returns one page and the
// number of matches across all pages.
func (q *Queries) SearchPosts(ctx context.Context, text string, community uint64, limit, offset int) ([]Post, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	where := `LOWER(content) LIKE ?`
	args := []any{"%" + likePattern(text) + "%"}
	if community != 0 {
		where += ` AND community = ?`
		args = append(args, id64(community))
	}
	total, err := q.count(ctx, `SELECT COUNT(*) FROM posts WHERE `+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count search posts: %w", err)
	}
	items, err := list(ctx, q, scanPost,
		`SELECT `+postColumns+` FROM posts WHERE `+where+` ORDER BY created DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search posts: %w", err)
	}
	return items, int(total), nil
}
