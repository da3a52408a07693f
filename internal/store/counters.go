package store

import (
	"context"
	"fmt"
)

// Counter names one denormalized count column. Only the values declared
// here exist, so no SQL identifier ever comes from input.
type Counter struct {
	table  string
	column string
}

func (c Counter) String() string {
	return c.table + "." + c.column
}

// Table reports which entity the counter lives on.
func (c Counter) Table() string {
	return c.table
}

var (
	AccountFollowers     = Counter{"users", "follower_count"}
	AccountFollowing     = Counter{"users", "following_count"}
	AccountNotifications = Counter{"users", "notification_count"}
	AccountRequests      = Counter{"users", "request_count"}
	AccountPosts         = Counter{"users", "post_count"}

	CommunityLikes    = Counter{"communities", "likes"}
	CommunityDislikes = Counter{"communities", "dislikes"}
	CommunityMembers  = Counter{"communities", "member_count"}

	PostLikes    = Counter{"posts", "likes"}
	PostDislikes = Counter{"posts", "dislikes"}
	PostComments = Counter{"posts", "comment_count"}

	QuestionLikes    = Counter{"questions", "likes"}
	QuestionDislikes = Counter{"questions", "dislikes"}
	QuestionAnswers  = Counter{"questions", "answer_count"}
)

// Adjust adds delta to the counter of row id, clamping at zero. A missing
// row is not an error: the parent of a reply may already be gone.
func (q *Queries) Adjust(ctx context.Context, c Counter, id uint64, delta int64) error {
	if delta == 0 || id == 0 {
		return nil
	}
	stmt := fmt.Sprintf(
		`UPDATE %s SET %s = CASE WHEN %s + ? < 0 THEN 0 ELSE %s + ? END WHERE id = ?`,
		c.table, c.column, c.column, c.column,
	)
	if _, err := q.exec(ctx, stmt, delta, delta, id64(id)); err != nil {
		return fmt.Errorf("adjust %s: %w", c, err)
	}
	return nil
}

// Reset sets the counter of row id to value.
func (q *Queries) Reset(ctx context.Context, c Counter, id uint64, value int64) error {
	stmt := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, c.table, c.column)
	if _, err := q.exec(ctx, stmt, value, id64(id)); err != nil {
		return fmt.Errorf("reset %s: %w", c, err)
	}
	return nil
}

// Read returns the current value of the counter of row id.
func (q *Queries) Read(ctx context.Context, c Counter, id uint64) (int64, error) {
	stmt := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, c.column, c.table)
	n, err := one(ctx, q, func(r rowScanner) (int64, error) {
		var v int64
		err := r.Scan(&v)
		return v, err
	}, stmt, id64(id))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", c, err)
	}
	return n, nil
}
