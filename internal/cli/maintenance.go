package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/websecurity/internal/app"
	"github.com/jwalitptl/websecurity/internal/worker"
)

func newMigrateCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b Backend) error {
				if err := b.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newPurgeReportsCmd(a *cliApp) *cobra.Command {
	var (
		olderThan time.Duration
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "purge-reports",
		Short: "Delete CSP reports older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			return a.withBackend(cmd, func(ctx context.Context, b Backend) error {
				cfg := app.RetentionConfig(a.cfg.Retention)
				if batchSize > 0 {
					cfg.BatchSize = batchSize
				}
				w := worker.NewReportRetentionWorker(b.CSPReportService(), cfg, a.log)

				cutoff := w.Cutoff()
				if olderThan > 0 {
					cutoff = time.Now().UTC().Add(-olderThan)
				}
				n, err := w.PurgeBefore(ctx, cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d reports received before %s\n", n, cutoff.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "purge reports older than this (default: retention.days)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows deleted per batch (default: retention.batch_size)")
	return cmd
}
