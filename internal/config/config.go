package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string
	// Cache selects the lookaside cache: "redis", "lru" or "none".
	Cache        string
	RedisURL     string
	CacheTTL     time.Duration
	CacheSize    int
	Namespace    string
	StoreTimeout time.Duration
	NodeID       int64

	RegistrationEnabled bool
	BannedUsernames     []string
	BannedTitles        []string
	// MaxOwnedCommunities caps how many communities one account may own
	// unless it holds INFINITE_COMMUNITIES.
	MaxOwnedCommunities int

	MeiliURL       string
	MeiliMasterKey string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func Load() Config {
	return Config{
		DatabaseURL:  getenv("DATABASE_URL", "sqlite://atto.db"),
		Cache:        getenv("ATTO_CACHE", "lru"),
		RedisURL:     getenv("REDIS_URL", "redis://localhost:6379/0"),
		CacheTTL:     time.Duration(getenvInt("ATTO_CACHE_TTL_SECONDS", 43200)) * time.Second,
		CacheSize:    getenvInt("ATTO_CACHE_SIZE", 10000),
		Namespace:    getenv("ATTO_NAMESPACE", "atto"),
		StoreTimeout: time.Duration(getenvInt("ATTO_STORE_TIMEOUT_MS", 5000)) * time.Millisecond,
		NodeID:       int64(getenvInt("ATTO_NODE_ID", 1)),

		RegistrationEnabled: getenvBool("ATTO_REGISTRATION_ENABLED", true),
		BannedUsernames:     getenvList("ATTO_BANNED_USERNAMES", []string{"admin", "owner", "moderator", "anonymous", "deleted", "void"}),
		BannedTitles:        getenvList("ATTO_BANNED_TITLES", []string{"void", "admin", "api", "communities"}),
		MaxOwnedCommunities: getenvInt("ATTO_MAX_OWNED_COMMUNITIES", 5),

		// Search and media are disabled when their URL is empty.
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "atto-media"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(strings.ToLower(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
