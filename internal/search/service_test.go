package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"atto/internal/store"
)

type fakeFallback struct {
	posts     []store.Post
	err       error
	limit     int
	offset    int
	community uint64
}

func (f *fakeFallback) SearchPosts(_ context.Context, _ string, community uint64, limit, offset int) ([]store.Post, int, error) {
	f.limit, f.offset, f.community = limit, offset, community
	var out []store.Post
	for _, p := range f.posts {
		if community == 0 || p.Community == community {
			out = append(out, p)
		}
	}
	total := len(out)
	if offset >= len(out) {
		return nil, total, f.err
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, f.err
}

func TestSearchFallsBackToStore(t *testing.T) {
	fallback := &fakeFallback{posts: []store.Post{
		{ID: 1, Owner: 9, Community: 3, Content: "hello there"},
		{ID: 2, Owner: 9, Community: 4, Content: "hello again"},
		{ID: 3, Owner: 9, Community: 4, Content: "hello once more"},
	}}
	svc := NewService(nil, fallback, nil)

	resp := svc.Search(context.Background(), Query{Text: "hello"})
	if resp.Total != 3 || len(resp.Results) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if fallback.limit != 20 {
		t.Fatalf("fallback limit = %d, want 20", fallback.limit)
	}

	resp = svc.Search(context.Background(), Query{Text: "hello", Community: 4, Limit: 1, Offset: 1})
	if fallback.community != 4 || fallback.offset != 1 {
		t.Fatalf("community and offset not passed down: %+v", fallback)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 3 {
		t.Fatalf("community page failed: %+v", resp.Results)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want every match in the community", resp.Total)
	}
}

func TestSearchFallbackErrorReturnsEmpty(t *testing.T) {
	svc := NewService(nil, &fakeFallback{err: errors.New("db down")}, nil)
	resp := svc.Search(context.Background(), Query{Text: "x"})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %+v", resp.Results)
	}
}

func TestIndexingWithoutMeiliIsNoop(t *testing.T) {
	svc := NewService(nil, nil, nil)
	svc.IndexPost(PostRecord{ID: "1"})
	svc.DeletePost(1)
	svc.Reindex([]PostRecord{{ID: "1"}})
	if resp := svc.Search(context.Background(), Query{Text: "x"}); len(resp.Results) != 0 {
		t.Fatalf("unexpected results %+v", resp.Results)
	}
}

func TestSnippetTruncates(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := snippet(long)
	if len([]rune(got)) != 161 {
		t.Fatalf("snippet length = %d", len([]rune(got)))
	}
	if snippet("short") != "short" {
		t.Fatal("short content should be unchanged")
	}
}

func TestRecordFromPost(t *testing.T) {
	rec := RecordFromPost(store.Post{ID: 18446744073709551615, Content: "c", Owner: 1, Community: 2})
	if rec.ID != "18446744073709551615" {
		t.Fatalf("ID = %s", rec.ID)
	}
}
