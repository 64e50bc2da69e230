package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/websecurity/internal/model"
)

func newReportsCmd(a *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Review CSP violation reports",
	}
	cmd.AddCommand(
		newReportsListCmd(a),
		newReportsShowCmd(a),
		newReportsDeleteCmd(a),
		newReportsIngestCmd(a),
	)
	return cmd
}

func parseReportID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid report id %q: %w", arg, err)
	}
	return id, nil
}

func printReport(w io.Writer, r *model.CSPReport) {
	fmt.Fprintf(w, "%s  %s  %-15s  %s\n", r.ID, r.ReceivedAt.Format(time.RFC3339), r.SenderIP, r)
}

func newReportsListCmd(a *cliApp) *cobra.Command {
	var (
		filter model.CSPReportFilter
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if since > 0 {
				filter.Since = time.Now().UTC().Add(-since)
			}
			return a.withBackend(cmd, func(ctx context.Context, b Backend) error {
				reports, total, err := b.CSPReportService().List(ctx, &filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range reports {
					printReport(out, r)
				}
				fmt.Fprintf(out, "%d of %d reports\n", len(reports), total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Directive, "directive", "", "only reports whose violated directive starts with this")
	cmd.Flags().StringVar(&filter.SenderIP, "sender-ip", "", "only reports from this address")
	cmd.Flags().DurationVar(&since, "since", 0, "only reports received within this duration")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", 50, "reports per page")
	return cmd
}

func newReportsShowCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show one report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReportID(args[0])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b Backend) error {
				r, err := b.CSPReportService().Get(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, r)
				fmt.Fprintf(out, "id:                 %s\n", r.ID)
				fmt.Fprintf(out, "received_at:        %s\n", r.ReceivedAt.Format(time.RFC3339Nano))
				fmt.Fprintf(out, "sender_ip:          %s\n", r.SenderIP)
				fmt.Fprintf(out, "document_uri:       %s\n", r.DocumentURI)
				fmt.Fprintf(out, "referrer:           %s\n", r.Referrer)
				fmt.Fprintf(out, "blocked_uri:        %s\n", r.BlockedURI)
				fmt.Fprintf(out, "violated_directive: %s\n", r.ViolatedDirective)
				fmt.Fprintf(out, "original_policy:    %s\n", r.OriginalPolicy)
				return nil
			})
		},
	}
}

func newReportsDeleteCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <report-id>",
		Short: "Delete one report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReportID(args[0])
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(ctx context.Context, b Backend) error {
				if err := b.CSPReportService().Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				return nil
			})
		},
	}
}

func newReportsIngestCmd(a *cliApp) *cobra.Command {
	var senderIP string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store a W3C violation report read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b Backend) error {
				r, err := b.CSPReportService().IngestPayload(ctx, cmd.InOrStdin(), senderIP)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), r)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&senderIP, "sender-ip", "", "address the report was received from")
	_ = cmd.MarkFlagRequired("sender-ip")
	return cmd
}
