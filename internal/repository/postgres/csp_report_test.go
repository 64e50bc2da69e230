package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/internal/repository"
)

var cspColumns = []string{
	"id", "document_uri", "referrer", "blocked_uri", "violated_directive",
	"original_policy", "received_at", "sender_ip",
}

func sampleReport() *model.CSPReport {
	return model.NewCSPReport(model.CSPViolation{
		DocumentURI:       "https://site.example/page",
		Referrer:          "https://site.example/",
		BlockedURI:        "https://evil.example/x.js",
		ViolatedDirective: "script-src 'self'",
		OriginalPolicy:    "default-src 'self'; script-src 'self'",
	}, "2001:db8::7")
}

func TestCSPReportCreate(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewCSPReportRepository(base)
	r := sampleReport()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+csp_reports`).
		WithArgs(r.ID, r.DocumentURI, r.Referrer, r.BlockedURI, r.ViolatedDirective,
			r.OriginalPolicy, r.ReceivedAt, r.SenderIP).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCSPReportGetRoundTrip(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewCSPReportRepository(base)
	r := sampleReport()

	mock.ExpectQuery(`(?s)SELECT\s+id,.*host\(sender_ip\)\s+AS\s+sender_ip\s+FROM\s+csp_reports\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(r.ID).
		WillReturnRows(sqlmock.NewRows(cspColumns).AddRow(
			r.ID.String(), r.DocumentURI, r.Referrer, r.BlockedURI,
			r.ViolatedDirective, r.OriginalPolicy, r.ReceivedAt, r.SenderIP,
		))

	got, err := repo.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestCSPReportGetNotFound(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewCSPReportRepository(base)

	mock.ExpectQuery(`FROM\s+csp_reports`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestCSPReportListWithFilters(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewCSPReportRepository(base)
	r := sampleReport()
	since := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT\s+COUNT\(\*\)\s+FROM\s+csp_reports\s+WHERE\s+1=1\s+AND\s+violated_directive\s+ILIKE\s+\$1\s+AND\s+received_at\s+>=\s+\$2`).
		WithArgs("script-src%", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(41)))
	mock.ExpectQuery(`(?s)FROM\s+csp_reports.*ORDER\s+BY\s+received_at\s+DESC\s+LIMIT\s+\$3\s+OFFSET\s+\$4`).
		WithArgs("script-src%", since, 20, 20).
		WillReturnRows(sqlmock.NewRows(cspColumns).AddRow(
			r.ID.String(), r.DocumentURI, r.Referrer, r.BlockedURI,
			r.ViolatedDirective, r.OriginalPolicy, r.ReceivedAt, r.SenderIP,
		))
	mock.ExpectCommit()

	reports, total, err := repo.List(context.Background(), &model.CSPReportFilter{
		Pagination: model.Pagination{Page: 2, PageSize: 20},
		Directive:  "script-src",
		Since:      since,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(41), total)
	require.Len(t, reports, 1)
	assert.Equal(t, r.ID, reports[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCSPReportListEscapesDirectiveWildcards(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewCSPReportRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+COUNT`).
		WithArgs(`\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`ORDER\s+BY`).
		WithArgs(`\_%`, 50, 0).
		WillReturnRows(sqlmock.NewRows(cspColumns))
	mock.ExpectCommit()

	_, total, err := repo.List(context.Background(), &model.CSPReportFilter{Directive: "_"})
	require.NoError(t, err)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLikePrefix(t *testing.T) {
	assert.Equal(t, "script-src%", likePrefix("script-src"))
	assert.Equal(t, `50\%\_off%`, likePrefix("50%_off"))
	assert.Equal(t, `a\\b%`, likePrefix(`a\b`))
}

func TestCSPReportListRollsBackOnError(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewCSPReportRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+COUNT`).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, _, err := repo.List(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get total count")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCSPReportDelete(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewCSPReportRepository(base)
	id := uuid.New()

	mock.ExpectExec(`DELETE\s+FROM\s+csp_reports\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec(`DELETE\s+FROM\s+csp_reports`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, errors.Is(repo.Delete(context.Background(), id), repository.ErrNotFound))
}

func TestCSPReportDeleteBefore(t *testing.T) {
	base, mock, _ := newMockBase(t)
	repo := NewCSPReportRepository(base)
	cutoff := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+csp_reports\s+WHERE\s+id\s+IN\s+\(\s*SELECT\s+id\s+FROM\s+csp_reports\s+WHERE\s+received_at\s+<\s+\$1.*LIMIT\s+\$2`).
		WithArgs(cutoff, 500).
		WillReturnResult(sqlmock.NewResult(0, 137))

	n, err := repo.DeleteBefore(context.Background(), cutoff, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(137), n)
}
