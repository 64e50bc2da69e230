package cli

import (
	"context"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/websecurity/internal/app"
	"github.com/jwalitptl/websecurity/internal/config"
	"github.com/jwalitptl/websecurity/internal/service/cspreport"
	"github.com/jwalitptl/websecurity/internal/service/passwordexpiry"
	"github.com/jwalitptl/websecurity/pkg/logger"
)

// Backend is what the commands operate on.
type Backend interface {
	PasswordExpiryService() passwordexpiry.PasswordExpiryServicer
	CSPReportService() cspreport.CSPReportServicer
	Migrate(ctx context.Context) error
	Close() error
}

// Opener connects a Backend for cfg.
type Opener func(ctx context.Context, cfg *config.Config, log *logger.Logger) (Backend, error)

type cliApp struct {
	configFile string
	open       Opener
	cfg        *config.Config
	log        *logger.Logger
	backend    Backend
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

func NewRootCommand() *cobra.Command {
	return NewRootCommandWithIO(openApp, os.Stdin, os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(open Opener, in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &cliApp{
		open:   open,
		stdin:  in,
		stdout: out,
		stderr: errOut,
	}

	cmd := &cobra.Command{
		Use:           "securityctl",
		Short:         "Operate password expiry records and CSP violation reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "path to config file (default: search ., ./config, /app/config)")

	cmd.AddCommand(
		newMigrateCmd(a),
		newPurgeReportsCmd(a),
		newExpiryStatusCmd(a),
		newNeverExpireCmd(a),
		newRequireChangeCmd(a),
		newPasswordChangedCmd(a),
		newReportsCmd(a),
	)
	return cmd
}

// withBackend runs fn against a connected backend and closes it afterwards.
func (a *cliApp) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, b)
}

// connect loads config and opens the backend.
func (a *cliApp) connect(ctx context.Context) (Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	a.log = app.NewLogger(cfg.Log, a.stderr)

	b, err := a.open(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.backend = b
	return b, nil
}

func (a *cliApp) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	return err
}

type appBackend struct {
	*app.App
}

func (b appBackend) PasswordExpiryService() passwordexpiry.PasswordExpiryServicer {
	return b.PasswordExpiry
}

func (b appBackend) CSPReportService() cspreport.CSPReportServicer {
	return b.CSPReports
}

func openApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (Backend, error) {
	a, err := app.New(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	return appBackend{a}, nil
}
