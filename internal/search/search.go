package search

import (
	"context"

	"atto/internal/store"
)

// Result is a single search hit.
type Result struct {
	ID        uint64 `json:"id"`
	Owner     uint64 `json:"owner"`
	Community uint64 `json:"community"`
	Snippet   string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text      string
	Community uint64 // 0 = everywhere
	Limit     int
	Offset    int
}

// Response is the envelope returned to callers.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Indexer keeps the search index in step with post writes. Calls never
// block the caller and never fail it.
type Indexer interface {
	IndexPost(p PostRecord)
	DeletePost(id uint64)
}

// Engine is an Indexer that can also answer queries.
type Engine interface {
	Indexer
	Search(ctx context.Context, q Query) Response
	Reindex(posts []PostRecord)
}

// PostRecord is the data we index for a post.
type PostRecord struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Owner     uint64 `json:"owner"`
	Community uint64 `json:"community"`
	Created   int64  `json:"created"`
}

func RecordFromPost(p store.Post) PostRecord {
	return PostRecord{
		ID:        formatID(p.ID),
		Content:   p.Content,
		Owner:     p.Owner,
		Community: p.Community,
		Created:   p.Created,
	}
}

// Fallback answers queries when the search engine is missing or down.
type Fallback interface {
	SearchPosts(ctx context.Context, text string, community uint64, limit, offset int) ([]store.Post, int, error)
}
