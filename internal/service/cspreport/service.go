package cspreport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/internal/repository"
	"github.com/jwalitptl/websecurity/pkg/errors"
	"github.com/jwalitptl/websecurity/pkg/logger"
	"github.com/jwalitptl/websecurity/pkg/metrics"
	"github.com/jwalitptl/websecurity/pkg/validator"
)

// MaxReportSize bounds how much of a report body Decode reads.
const MaxReportSize = 64 << 10

// knownDirectives bounds the directive label on the received counter.
var knownDirectives = map[string]bool{
	"base-uri": true, "child-src": true, "connect-src": true, "default-src": true,
	"font-src": true, "form-action": true, "frame-ancestors": true, "frame-src": true,
	"img-src": true, "manifest-src": true, "media-src": true, "object-src": true,
	"prefetch-src": true, "require-trusted-types-for": true, "sandbox": true,
	"script-src": true, "script-src-attr": true, "script-src-elem": true,
	"style-src": true, "style-src-attr": true, "style-src-elem": true,
	"trusted-types": true, "upgrade-insecure-requests": true, "worker-src": true,
}

func directiveLabel(name string) string {
	if knownDirectives[name] {
		return name
	}
	return "other"
}

// Rejection reasons
const (
	reasonDecode     = "decode"
	reasonEmpty      = "empty"
	reasonValidation = "validation"
)

// CSPReportServicer is used by the report ingestion endpoint and by
// administrative tooling.
type CSPReportServicer interface {
	Decode(r io.Reader) (model.CSPViolation, error)
	Ingest(ctx context.Context, v model.CSPViolation, senderIP string) (*model.CSPReport, error)
	IngestPayload(ctx context.Context, body io.Reader, senderIP string) (*model.CSPReport, error)
	Get(ctx context.Context, id uuid.UUID) (*model.CSPReport, error)
	List(ctx context.Context, filter *model.CSPReportFilter) ([]*model.CSPReport, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Purge(ctx context.Context, before time.Time, limit int) (int64, error)
}

type Service struct {
	repo      repository.CSPReportRepository
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(repo repository.CSPReportRepository, v validator.Validator, m *metrics.Metrics, log *logger.Logger) *Service {
	if v == nil {
		v = validator.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		validator: v,
		metrics:   m,
		logger:    log.With("csp_report"),
	}
}

// Decode parses a W3C violation report body of the form {"csp-report": {...}}.
func (s *Service) Decode(r io.Reader) (model.CSPViolation, error) {
	var payload model.CSPReportPayload
	if err := json.NewDecoder(io.LimitReader(r, MaxReportSize)).Decode(&payload); err != nil {
		s.reject(reasonDecode)
		return model.CSPViolation{}, errors.NewBadRequest("invalid CSP report body", err)
	}
	if payload.Report == nil {
		s.reject(reasonEmpty)
		return model.CSPViolation{}, errors.NewBadRequest("missing csp-report object", nil)
	}
	return *payload.Report, nil
}

// Ingest stores one violation received from senderIP. Field values are
// stored exactly as received.
func (s *Service) Ingest(ctx context.Context, v model.CSPViolation, senderIP string) (*model.CSPReport, error) {
	report := model.NewCSPReport(v, senderIP)

	if err := s.validator.Validate(report); err != nil {
		s.reject(reasonValidation)
		s.logger.ZL.Debug().Err(err).Str("sender_ip", senderIP).Msg("Rejected CSP report")
		return nil, errors.NewBadRequest("invalid CSP report", err)
	}

	if err := s.repo.Create(ctx, report); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create CSP report: %w", err))
	}

	if s.metrics != nil {
		s.metrics.CSPReportsReceived.WithLabelValues(directiveLabel(report.DirectiveName())).Inc()
	}
	s.logger.WithContext(ctx).ZL.Info().
		Str("report_id", report.ID.String()).
		Str("directive", report.DirectiveName()).
		Str("sender_ip", report.SenderIP).
		Msg(report.String())
	return report, nil
}

// IngestPayload decodes body and stores the report.
func (s *Service) IngestPayload(ctx context.Context, body io.Reader, senderIP string) (*model.CSPReport, error) {
	v, err := s.Decode(body)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, v, senderIP)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.CSPReport, error) {
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to get CSP report")
	}
	return report, nil
}

// List returns one page of reports, newest first, and the total number of
// reports matching filter.
func (s *Service) List(ctx context.Context, filter *model.CSPReportFilter) ([]*model.CSPReport, int64, error) {
	if filter == nil {
		filter = &model.CSPReportFilter{}
	}
	if filter.SenderIP != "" {
		if _, err := netip.ParseAddr(filter.SenderIP); err != nil {
			return nil, 0, errors.NewBadRequest("sender_ip must be a valid IP address", err)
		}
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && !filter.Since.Before(filter.Until) {
		return nil, 0, errors.NewBadRequest("since must be before until", nil)
	}

	reports, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, errors.NewInternal(fmt.Errorf("failed to list CSP reports: %w", err))
	}
	return reports, total, nil
}

// Delete removes one report. This is the only write allowed after ingestion.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, "failed to delete CSP report")
	}
	s.logger.WithContext(ctx).ZL.Info().Str("report_id", id.String()).Msg("CSP report deleted")
	return nil
}

// Purge deletes up to limit reports received before the cutoff and returns
// how many were removed.
func (s *Service) Purge(ctx context.Context, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, errors.NewBadRequest("purge limit must be positive", nil)
	}
	n, err := s.repo.DeleteBefore(ctx, before.UTC(), limit)
	if err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to purge CSP reports: %w", err))
	}
	if s.metrics != nil {
		s.metrics.CSPReportsPurged.Add(float64(n))
	}
	return n, nil
}

func (s *Service) reject(reason string) {
	if s.metrics != nil {
		s.metrics.CSPReportsRejected.WithLabelValues(reason).Inc()
	}
}

func mapRepoError(err error, msg string) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NewNotFound("CSP report", err)
	}
	return errors.NewInternal(fmt.Errorf("%s: %w", msg, err))
}
