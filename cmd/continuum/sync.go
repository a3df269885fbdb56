package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/continuum/internal/apiclient"
	"github.com/custodia-labs/continuum/internal/syncprogress"
)

var syncAPIURL string

var syncCmd = &cobra.Command{
	Use:   "sync <source-id>",
	Short: "Run a sync for one source and follow its progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncAPIURL, "api-url", "", "API base URL (defaults to console.api_url)")
}

func runSync(out io.Writer, sourceID string) error {
	cfg, logger, err := setup("continuum-sync", nil)
	if err != nil {
		return err
	}
	if cfg.Auth.AdminSecret == "" {
		return errors.New("missing required configuration: auth.admin_secret")
	}
	baseURL := syncAPIURL
	if baseURL == "" {
		baseURL = cfg.Console.APIURL
	}

	api, err := apiclient.New(apiclient.Config{
		BaseURL:     baseURL,
		AdminSecret: cfg.Auth.AdminSecret,
		Timeout:     cfg.HTTP.Timeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	printer := &progressPrinter{out: out}
	tracker := syncprogress.NewTracker(syncprogress.TrackerConfig{
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return api.OpenSyncStream(ctx, sourceID)
		},
		OnChange: printer.print,
		Logger:   logger,
	})

	final, err := tracker.Run(ctx)
	if err != nil {
		return err
	}
	if final.Phase == syncprogress.PhaseError {
		return fmt.Errorf("sync of %s failed", sourceID)
	}
	return nil
}

// progressPrinter writes log lines as they appear, plus the fetch percentage
// whenever it moves.
type progressPrinter struct {
	out     io.Writer
	printed int
	percent int
}

func (p *progressPrinter) print(s syncprogress.State) {
	if len(s.Log) < p.printed {
		p.printed = 0
	}
	for _, line := range s.Log[p.printed:] {
		fmt.Fprintln(p.out, line)
	}
	p.printed = len(s.Log)

	if pct := s.Percent(); pct != p.percent && pct > 0 {
		fmt.Fprintf(p.out, "  %3d%%  %d/%d fetched, %d created\n", pct, s.Stats.Fetched, s.Stats.Sampling, s.Stats.Created)
		p.percent = pct
	}
}
