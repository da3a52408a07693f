package app

import (
	"context"
	"strings"

	"atto/internal/search"
	"atto/internal/store"
)

// SearchPosts runs a full text query. Engine failures degrade to the
// store's plain text search and never surface as errors.
func (s *Service) SearchPosts(ctx context.Context, q search.Query) (search.Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	if err := checkLength("query", q.Text, 1, 256); err != nil {
		return search.Response{}, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.search.Search(ctx, q), nil
}

// Reindex pushes every stored post to the search engine and reports how
// many were sent.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	const batch = 500
	total := 0
	for number := 0; ; number++ {
		items, err := read(ctx, s, entityPost, func(ctx context.Context, q *store.Queries) ([]store.Post, error) {
			return q.ListPosts(ctx, batch, number)
		})
		if err != nil {
			return total, err
		}
		records := make([]search.PostRecord, 0, len(items))
		for _, p := range items {
			records = append(records, search.RecordFromPost(p))
		}
		s.search.Reindex(records)
		total += len(records)
		if len(items) < batch {
			return total, nil
		}
	}
}
