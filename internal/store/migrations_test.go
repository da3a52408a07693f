package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("unexpected file in migrations: %s", entry.Name())
		}
		version, direction := match[1], match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}
	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestMigrationsRoundTripSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "roundtrip.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	roundTrip(t, ctx, s)
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("ATTO_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("ATTO_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer s.Close()

	roundTrip(t, ctx, s)
}

func roundTrip(t *testing.T, ctx context.Context, s *Store) {
	t.Helper()

	// Applying twice is a no-op.
	if err := s.ApplyMigrations(ctx); err != nil {
		t.Fatalf("apply up migrations (pass 1): %v", err)
	}
	if err := s.RevertMigrations(ctx); err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}
	if _, err := s.count(ctx, `SELECT COUNT(*) FROM users`); err == nil {
		t.Fatal("users table should be gone after revert")
	}
	if err := s.ApplyMigrations(ctx); err != nil {
		t.Fatalf("apply up migrations (pass 2): %v", err)
	}
	if _, err := s.count(ctx, `SELECT COUNT(*) FROM users`); err != nil {
		t.Fatalf("users table missing after re-apply: %v", err)
	}
}
