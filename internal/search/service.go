package search

import (
	"context"
	"log/slog"
	"strconv"
)

// Service is the facade that tries Meilisearch first and falls back to the
// store's LIKE search.
type Service struct {
	meili    *Meili
	fallback Fallback
	log      *slog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback Fallback, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{meili: meili, fallback: fallback, log: log}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn("search: meilisearch error, falling back to store", "err", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	posts, total, err := s.fallback.SearchPosts(ctx, q.Text, q.Community, limit, q.Offset)
	if err != nil {
		s.log.Error("search: store fallback error", "err", err)
		return Response{Results: []Result{}, Query: q.Text}
	}

	results := make([]Result, 0, len(posts))
	for _, p := range posts {
		results = append(results, Result{ID: p.ID, Owner: p.Owner, Community: p.Community, Snippet: snippet(p.Content)})
	}
	return Response{Results: results, Total: total, Query: q.Text}
}

// IndexPost indexes a post (fire-and-forget to Meilisearch).
func (s *Service) IndexPost(p PostRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPost(p); err != nil {
			s.log.Error("search: index post", "id", p.ID, "err", err)
		}
	}()
}

// DeletePost removes a post from the search index (fire-and-forget).
func (s *Service) DeletePost(id uint64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePost(formatID(id)); err != nil {
			s.log.Error("search: delete post", "id", id, "err", err)
		}
	}()
}

// Reindex pushes every given post to Meilisearch in one batch.
func (s *Service) Reindex(posts []PostRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(posts) == 0 {
		return
	}
	if err := s.meili.IndexPosts(posts); err != nil {
		s.log.Error("search: reindex posts", "err", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func snippet(content string) string {
	const width = 160
	runes := []rune(content)
	if len(runes) <= width {
		return content
	}
	return string(runes[:width]) + "…"
}
