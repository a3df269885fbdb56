package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/continuum/internal/adapters/driven/auth"
	"github.com/custodia-labs/continuum/internal/adapters/driven/memory"
	redisadapter "github.com/custodia-labs/continuum/internal/adapters/driven/redis"
	"github.com/custodia-labs/continuum/internal/apiclient"
	"github.com/custodia-labs/continuum/internal/config"
	"github.com/custodia-labs/continuum/internal/console"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
	"github.com/custodia-labs/continuum/internal/core/services"
)

// loginAttemptsPerMinute caps console logins per client IP.
const loginAttemptsPerMinute = 10

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Serve the admin console backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole()
	},
}

func runConsole() error {
	cfg, logger, err := setup("continuum-console", (*config.Config).ValidateConsole)
	if err != nil {
		return err
	}
	logger.Info("continuum console starting", "version", version, "api_url", cfg.Console.APIURL)

	ctx, cancel := signalContext()
	defer cancel()

	// ===== Session store (Redis if configured, otherwise in process) =====
	var sessions driven.SessionStore
	if cfg.Redis.URL != "" {
		client, err := redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer client.Close()
		sessions = redisadapter.NewSessionStore(client)
		logger.Info("using redis session store")
	} else {
		store := memory.NewSessionStore()
		defer store.Close()
		sessions = store
		logger.Info("using in-memory session store")
	}

	authService, err := services.NewAuthService(sessions, auth.NewAdapter(cfg.Auth.JWTSecret), cfg.Auth.AdminSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}

	api, err := apiclient.New(apiclient.Config{
		BaseURL:     cfg.Console.APIURL,
		AdminSecret: cfg.Auth.AdminSecret,
		Timeout:     cfg.HTTP.Timeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}
	if err := api.Ping(ctx); err != nil {
		logger.Warn("api not ready, admin actions will fail until it is", "error", err)
	}

	server := console.NewServer(console.Config{
		Host:           cfg.Console.Host,
		Port:           cfg.Console.Port,
		CookieSecure:   cfg.Console.CookieSecure,
		LoginRateLimit: loginAttemptsPerMinute,
		Logger:         logger,
	}, authService, api)

	return server.Start(ctx)
}
