package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/continuum/internal/adapters/driven/ingest"
	"github.com/custodia-labs/continuum/internal/adapters/driven/ingest/github"
	"github.com/custodia-labs/continuum/internal/adapters/driven/ingest/rss"
	"github.com/custodia-labs/continuum/internal/adapters/driven/ingest/scrape"
	"github.com/custodia-labs/continuum/internal/adapters/driven/ingest/statuspage"
	"github.com/custodia-labs/continuum/internal/adapters/driven/memory"
	"github.com/custodia-labs/continuum/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/continuum/internal/adapters/driven/redis"
	httpapi "github.com/custodia-labs/continuum/internal/adapters/driving/http"
	"github.com/custodia-labs/continuum/internal/config"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
	"github.com/custodia-labs/continuum/internal/core/services"
)

const (
	listingCacheTTL      = 30 * time.Second
	listingCacheMaxPages = 512
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the public listing and the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPI()
	},
}

func runAPI() error {
	cfg, logger, err := setup("continuum-api", (*config.Config).ValidateAPI)
	if err != nil {
		return err
	}
	logger.Info("continuum api starting", "version", version)

	ctx, cancel := signalContext()
	defer cancel()

	// ===== PostgreSQL =====
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	logger.Info("postgres connected and schema initialized")

	// ===== Sync lock (Redis if configured, otherwise PostgreSQL advisory locks) =====
	var lock driven.DistributedLock
	if cfg.Redis.URL != "" {
		client, err := redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer client.Close()
		lock = redisadapter.NewLock(client)
		logger.Info("using redis sync lock")
	} else {
		lock = postgres.NewAdvisoryLock(db)
		logger.Info("using postgres advisory lock")
	}

	// ===== Stores and ingesters =====
	sourceStore := postgres.NewSourceStore(db)
	postmortemStore := postgres.NewPostmortemStore(db)

	cache := memory.NewPostmortemCache(listingCacheTTL, listingCacheMaxPages)
	defer cache.Close()

	ingesters := newIngesterRegistry(cfg, logger)

	// ===== Services =====
	syncRunner := services.NewSyncRunner(services.SyncRunnerConfig{
		SourceStore:     sourceStore,
		PostmortemStore: postmortemStore,
		Ingesters:       ingesters,
		Lock:            lock,
		LockTTL:         cfg.Sync.LockTTL,
		Logger:          logger,
	})

	scheduler := services.NewScheduler(services.SchedulerConfig{
		Sources:  sourceStore,
		Runner:   syncRunner,
		Logger:   logger,
		Interval: cfg.Sync.Interval,
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := httpapi.NewServer(httpapi.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		Version:           version,
		AdminSecret:       cfg.Auth.AdminSecret,
		CORSOrigins:       cfg.CORS.Origins,
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.Window,
		Logger:            logger,
	}, httpapi.Services{
		Sources: services.NewSourceService(sourceStore),
		Sync:    syncRunner,
		Moderation: services.NewModerationService(services.ModerationServiceConfig{
			Store:  postmortemStore,
			Cache:  cache,
			Logger: logger,
		}),
		Postmortems: services.NewPostmortemService(postmortemStore, cache),
	}, db, lock)

	return server.Start(ctx)
}

// newIngesterRegistry registers one ingester per collection method. The
// feed, page and status API ingesters share a retrying fetcher.
func newIngesterRegistry(cfg *config.Config, logger *slog.Logger) *ingest.Registry {
	fetcher := ingest.NewFetcher(ingest.FetcherConfig{
		Timeout:  cfg.HTTP.Timeout,
		Attempts: cfg.HTTP.Retries,
		Logger:   logger,
	})
	return ingest.NewRegistry(
		github.NewIngester(github.NewClient(cfg.GitHub.BaseURL, cfg.GitHub.Token, cfg.HTTP.Timeout), cfg.Sync.MaxSamples, logger),
		rss.NewIngester(fetcher),
		scrape.NewIngester(fetcher),
		statuspage.NewIngester(fetcher),
	)
}
