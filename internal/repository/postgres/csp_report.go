package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/internal/repository"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix turns s into a LIKE pattern matching values that start with s.
func likePrefix(s string) string {
	return likeEscaper.Replace(s) + "%"
}

const cspReportColumns = `id, document_uri, referrer, blocked_uri, violated_directive,
            original_policy, received_at, host(sender_ip) AS sender_ip`

type cspReportRepository struct {
	BaseRepository
}

func NewCSPReportRepository(base BaseRepository) repository.CSPReportRepository {
	return &cspReportRepository{base}
}

func (r *cspReportRepository) Create(ctx context.Context, report *model.CSPReport) error {
	start := time.Now()
	query := `
        INSERT INTO csp_reports (
            id, document_uri, referrer, blocked_uri, violated_directive,
            original_policy, received_at, sender_ip
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	_, err := r.GetDB().ExecContext(ctx, query,
		report.ID,
		report.DocumentURI,
		report.Referrer,
		report.BlockedURI,
		report.ViolatedDirective,
		report.OriginalPolicy,
		report.ReceivedAt,
		report.SenderIP,
	)
	err = mapError("create csp report", err)
	r.observe("csp_report_create", start, err)
	return err
}

func (r *cspReportRepository) Get(ctx context.Context, id uuid.UUID) (*model.CSPReport, error) {
	start := time.Now()
	query := `SELECT ` + cspReportColumns + ` FROM csp_reports WHERE id = $1`

	var report model.CSPReport
	err := mapError("get csp report", r.GetDB().GetContext(ctx, &report, query, id))
	r.observe("csp_report_get", start, err)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *cspReportRepository) List(ctx context.Context, filter *model.CSPReportFilter) ([]*model.CSPReport, int64, error) {
	start := time.Now()
	if filter == nil {
		filter = &model.CSPReportFilter{}
	}

	var conditions []string
	var args []interface{}

	if filter.Directive != "" {
		args = append(args, likePrefix(filter.Directive))
		conditions = append(conditions, fmt.Sprintf("violated_directive ILIKE $%d", len(args)))
	}
	if filter.SenderIP != "" {
		args = append(args, filter.SenderIP)
		conditions = append(conditions, fmt.Sprintf("sender_ip = $%d::inet", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("received_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conditions = append(conditions, fmt.Sprintf("received_at < $%d", len(args)))
	}

	baseQuery := ` FROM csp_reports WHERE 1=1`
	for _, condition := range conditions {
		baseQuery += " AND " + condition
	}

	var total int64
	var reports []*model.CSPReport
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &total, "SELECT COUNT(*)"+baseQuery, args...); err != nil {
			return fmt.Errorf("failed to get total count: %w", err)
		}

		pageArgs := append(append([]interface{}{}, args...), filter.Limit(), filter.Offset())
		query := "SELECT " + cspReportColumns + baseQuery +
			fmt.Sprintf(" ORDER BY received_at DESC LIMIT $%d OFFSET $%d", len(pageArgs)-1, len(pageArgs))
		if err := tx.SelectContext(ctx, &reports, query, pageArgs...); err != nil {
			return fmt.Errorf("failed to list csp reports: %w", err)
		}
		return nil
	})
	r.observe("csp_report_list", start, err)
	if err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}

func (r *cspReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	result, err := r.GetDB().ExecContext(ctx, `DELETE FROM csp_reports WHERE id = $1`, id)
	if err == nil {
		var rows int64
		if rows, err = result.RowsAffected(); err == nil && rows == 0 {
			err = fmt.Errorf("csp report %s: %w", id, repository.ErrNotFound)
		}
	}
	if err != nil {
		err = mapError("delete csp report", err)
	}
	r.observe("csp_report_delete", start, err)
	return err
}

// DeleteBefore removes up to limit reports received before cutoff, oldest first.
func (r *cspReportRepository) DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	start := time.Now()
	query := `
        DELETE FROM csp_reports
        WHERE id IN (
            SELECT id FROM csp_reports
            WHERE received_at < $1
            ORDER BY received_at
            LIMIT $2
        )
    `

	result, err := r.GetDB().ExecContext(ctx, query, cutoff, limit)
	var rows int64
	if err == nil {
		rows, err = result.RowsAffected()
	}
	if err != nil {
		err = fmt.Errorf("failed to cleanup csp reports: %w", err)
	}
	r.observe("csp_report_delete_before", start, err)
	return rows, err
}
