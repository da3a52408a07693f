package media

import (
	"context"
	"testing"
)

func TestKey(t *testing.T) {
	if got := Key(AccountAvatar, 42); got != "avatars/42" {
		t.Fatalf("Key() = %q", got)
	}
	if got := Key(CommunityBanner, 7); got != "community_banners/7" {
		t.Fatalf("Key() = %q", got)
	}
}

func TestNoopRemover(t *testing.T) {
	var r Remover = Noop{}
	if err := r.Remove(context.Background(), "avatars/1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
}

func TestNewMinioRemoverRejectsBadEndpoint(t *testing.T) {
	if _, err := NewMinioRemover("http://bad endpoint", "a", "b", "bucket", false); err == nil {
		t.Fatal("expected error for malformed endpoint")
	}
}
