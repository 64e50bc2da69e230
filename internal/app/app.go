package app

import (
	"context"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/websecurity/internal/cache"
	"github.com/jwalitptl/websecurity/internal/config"
	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/internal/repository/postgres"
	"github.com/jwalitptl/websecurity/internal/service/cspreport"
	"github.com/jwalitptl/websecurity/internal/service/passwordexpiry"
	"github.com/jwalitptl/websecurity/internal/worker"
	"github.com/jwalitptl/websecurity/pkg/logger"
	"github.com/jwalitptl/websecurity/pkg/metrics"
	"github.com/jwalitptl/websecurity/pkg/validator"
)

// App holds the wired services shared by the binaries.
type App struct {
	Config         *config.Config
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
	DB             *sqlx.DB
	PasswordExpiry *passwordexpiry.Service
	CSPReports     *cspreport.Service

	cache cache.ExpiryCache
}

// NewLogger builds the process logger from the log section of cfg.
func NewLogger(cfg config.LogConfig, out io.Writer) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Output: out,
		JSON:   cfg.JSON,
	})
}

// New connects to the database and cache and builds the services. Metrics
// are registered with reg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, reg prometheus.Registerer) (*App, error) {
	m := metrics.NewMetrics(cfg.Metrics.Namespace, "", reg)

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	expiryCache, err := cache.New(cfg, m, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	base := postgres.NewBaseRepository(db, m)
	policy := model.PasswordPolicy{MaxAge: cfg.PasswordPolicy.MaxAgeDays}

	return &App{
		Config:         cfg,
		Logger:         log,
		Metrics:        m,
		DB:             db,
		PasswordExpiry: passwordexpiry.NewService(postgres.NewPasswordExpiryRepository(base), expiryCache, policy, m, log),
		CSPReports:     cspreport.NewService(postgres.NewCSPReportRepository(base), validator.New(), m, log),
		cache:          expiryCache,
	}, nil
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	return postgres.Migrate(ctx, a.DB.DB)
}

// RetentionWorker returns a worker purging reports per the retention config.
func (a *App) RetentionWorker() *worker.ReportRetentionWorker {
	return worker.NewReportRetentionWorker(a.CSPReports, RetentionConfig(a.Config.Retention), a.Logger)
}

// RetentionConfig maps the retention config section onto worker settings.
func RetentionConfig(cfg config.RetentionConfig) worker.RetentionConfig {
	return worker.RetentionConfig{
		RetentionDays:    cfg.Days,
		Interval:         cfg.Interval,
		BatchSize:        cfg.BatchSize,
		BatchesPerSecond: cfg.BatchesPerSecond,
	}
}

func (a *App) Close() error {
	if c, ok := a.cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.Logger.Warn(err, "Failed to close cache")
		}
	}
	return a.DB.Close()
}
