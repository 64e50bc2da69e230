package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/websecurity/pkg/logger"
)

// ReportPurger deletes up to limit reports received before the cutoff.
type ReportPurger interface {
	Purge(ctx context.Context, before time.Time, limit int) (int64, error)
}

type RetentionConfig struct {
	RetentionDays    int
	Interval         time.Duration
	BatchSize        int
	BatchesPerSecond float64
}

// ReportRetentionWorker removes CSP reports older than the retention window.
// Deletes run in bounded batches, paced so a large backlog does not hold
// the table for long.
type ReportRetentionWorker struct {
	purger  ReportPurger
	config  RetentionConfig
	limiter *rate.Limiter
	logger  *logger.Logger
	now     func() time.Time
}

func NewReportRetentionWorker(purger ReportPurger, cfg RetentionConfig, log *logger.Logger) *ReportRetentionWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	limit := rate.Inf
	if cfg.BatchesPerSecond > 0 {
		limit = rate.Limit(cfg.BatchesPerSecond)
	}
	if log == nil {
		log = logger.Nop()
	}

	return &ReportRetentionWorker{
		purger:  purger,
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.With("report_retention"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a purge immediately and then on every interval until ctx is done.
func (w *ReportRetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.ZL.Info().
		Int("retention_days", w.config.RetentionDays).
		Dur("interval", w.config.Interval).
		Msg("Report retention worker started")

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error(err, "Error purging CSP reports")
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Report retention worker shutting down")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce purges every report older than the retention window and returns the
// number removed.
func (w *ReportRetentionWorker) RunOnce(ctx context.Context) (int64, error) {
	return w.PurgeBefore(ctx, w.Cutoff())
}

// Cutoff is the receive time before which reports are purged.
func (w *ReportRetentionWorker) Cutoff() time.Time {
	return w.now().AddDate(0, 0, -w.config.RetentionDays)
}

// PurgeBefore deletes reports received before cutoff in paced batches. It
// stops at the first short batch.
func (w *ReportRetentionWorker) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return total, err
		}

		n, err := w.purger.Purge(ctx, cutoff, w.config.BatchSize)
		total += n
		if err != nil {
			return total, fmt.Errorf("failed to purge CSP reports: %w", err)
		}
		if n < int64(w.config.BatchSize) {
			break
		}
	}

	if total > 0 {
		w.logger.ZL.Info().Int64("deleted", total).Time("cutoff", cutoff).Msg("Purged CSP reports")
	}
	return total, nil
}
