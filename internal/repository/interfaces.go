package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/websecurity/internal/model"
)

// Sentinel errors returned (wrapped) by every implementation.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	// PasswordExpiryRepository stores at most one expiry record per user.
	PasswordExpiryRepository interface {
		Create(ctx context.Context, expiry *model.PasswordExpiry) error
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.PasswordExpiry, error)
		Update(ctx context.Context, expiry *model.PasswordExpiry) error
	}

	// CSPReportRepository stores violation reports. There is no update.
	CSPReportRepository interface {
		Create(ctx context.Context, report *model.CSPReport) error
		Get(ctx context.Context, id uuid.UUID) (*model.CSPReport, error)
		List(ctx context.Context, filter *model.CSPReportFilter) ([]*model.CSPReport, int64, error)
		Delete(ctx context.Context, id uuid.UUID) error
		DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	}
)
