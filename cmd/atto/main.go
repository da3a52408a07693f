package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"atto/internal/app"
	"atto/internal/cache"
	"atto/internal/config"
	"atto/internal/media"
	"atto/internal/search"
	"atto/internal/store"
	"atto/internal/util"
)

const usage = `usage: atto <command>

commands:
  migrate                            apply pending migrations
  revert                             roll back every migration
  create-admin <username> <password> create a platform administrator
  reindex                            push every post to the search engine`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading config from the environment")
	}
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "migrate":
		// Open already migrated; this only reports it.
		if err := db.ApplyMigrations(ctx); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		log.Printf("migrations applied")
		return
	case "revert":
		if err := db.RevertMigrations(ctx); err != nil {
			log.Fatalf("revert failed: %v", err)
		}
		log.Printf("migrations reverted")
		return
	}

	var c cache.Cache
	switch strings.ToLower(cfg.Cache) {
	case "redis":
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisCache.Close()
		c = redisCache
	case "lru":
		lru, err := cache.NewLRUCache(cfg.CacheSize)
		if err != nil {
			log.Fatalf("cache setup failed: %v", err)
		}
		c = lru
	default:
		c = cache.NoCache{}
	}

	ids, err := util.NewIDGenerator(cfg.NodeID)
	if err != nil {
		log.Fatalf("id generator setup failed: %v", err)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	opts := []app.Option{
		app.WithLogger(logger),
		app.WithSearch(search.NewService(meiliClient, db, logger)),
	}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		remover, err := media.NewMinioRemover(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio setup failed: %v", err)
		}
		opts = append(opts, app.WithMedia(remover))
	}
	service := app.New(cfg, db, c, ids, opts...)

	switch os.Args[1] {
	case "create-admin":
		if len(os.Args) != 4 {
			log.Fatalf("create-admin needs a username and a password")
		}
		account, err := service.CreateAccount(ctx, os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("create account failed: %v", err)
		}
		if err := service.GrantAdministrator(ctx, account.ID); err != nil {
			log.Fatalf("grant admin failed: %v", err)
		}
		log.Printf("created administrator %s (%d)", account.Username, account.ID)
	case "reindex":
		n, err := service.Reindex(ctx)
		if err != nil {
			log.Fatalf("reindex failed: %v", err)
		}
		log.Printf("reindexed %d posts", n)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}
