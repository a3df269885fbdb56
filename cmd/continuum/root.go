package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/continuum/internal/config"
	"github.com/custodia-labs/continuum/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "continuum",
	Short:         "continuum collects public incident postmortems for review and publication",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the selected subcommand
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (defaults to $CONFIG_PATH or ./continuum.yaml)")
	rootCmd.AddCommand(apiCmd, consoleCmd, syncCmd)
}

// setup loads the configuration, runs check on it and installs the process logger.
func setup(service string, check func(*config.Config) error) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if check != nil {
		if err := check(cfg); err != nil {
			return nil, nil, err
		}
	}
	logger := logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}, service)
	return cfg, logger, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
