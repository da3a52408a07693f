package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ATTO_CACHE", "")
	t.Setenv("ATTO_STORE_TIMEOUT_MS", "")
	t.Setenv("ATTO_REGISTRATION_ENABLED", "")

	cfg := Load()
	if cfg.Cache != "lru" {
		t.Fatalf("Cache = %q, want lru", cfg.Cache)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("StoreTimeout = %v, want 5s", cfg.StoreTimeout)
	}
	if !cfg.RegistrationEnabled {
		t.Fatal("registration should default to enabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ATTO_CACHE", "redis")
	t.Setenv("ATTO_STORE_TIMEOUT_MS", "250")
	t.Setenv("ATTO_REGISTRATION_ENABLED", "false")
	t.Setenv("ATTO_BANNED_USERNAMES", " Root, ,staff ")
	t.Setenv("ATTO_CACHE_SIZE", "not-a-number")

	cfg := Load()
	if cfg.Cache != "redis" {
		t.Fatalf("Cache = %q", cfg.Cache)
	}
	if cfg.StoreTimeout != 250*time.Millisecond {
		t.Fatalf("StoreTimeout = %v", cfg.StoreTimeout)
	}
	if cfg.RegistrationEnabled {
		t.Fatal("registration should be disabled")
	}
	if len(cfg.BannedUsernames) != 2 || cfg.BannedUsernames[0] != "root" || cfg.BannedUsernames[1] != "staff" {
		t.Fatalf("BannedUsernames = %v", cfg.BannedUsernames)
	}
	if cfg.CacheSize != 10000 {
		t.Fatalf("CacheSize = %d, want fallback", cfg.CacheSize)
	}
}
