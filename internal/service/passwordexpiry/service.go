package passwordexpiry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/websecurity/internal/cache"
	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/internal/repository"
	"github.com/jwalitptl/websecurity/pkg/errors"
	"github.com/jwalitptl/websecurity/pkg/logger"
	"github.com/jwalitptl/websecurity/pkg/metrics"
)

// PasswordExpiryServicer is what the authentication layer calls to decide
// whether a user must change their password.
type PasswordExpiryServicer interface {
	Lookup(ctx context.Context, userID uuid.UUID) (model.UserPasswordExpiry, error)
	Track(ctx context.Context, userID uuid.UUID) (*model.PasswordExpiry, error)
	EnsureTracked(ctx context.Context, userID uuid.UUID) (*model.PasswordExpiry, error)
	IsExpired(ctx context.Context, userID uuid.UUID) (bool, error)
	NeverExpire(ctx context.Context, expiry *model.PasswordExpiry) error
	RequireChange(ctx context.Context, expiry *model.PasswordExpiry) error
	RecordPasswordChange(ctx context.Context, expiry *model.PasswordExpiry) error
}

// Lookup results
const (
	lookupCacheHit  = "cache_hit"
	lookupFound     = "found"
	lookupUntracked = "untracked"
	lookupError     = "error"
)

type Service struct {
	repo    repository.PasswordExpiryRepository
	cache   cache.ExpiryCache
	policy  model.PasswordPolicy
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

func NewService(repo repository.PasswordExpiryRepository, c cache.ExpiryCache, policy model.PasswordPolicy, m *metrics.Metrics, log *logger.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:    repo,
		cache:   c,
		policy:  policy,
		metrics: m,
		logger:  log.With("password_expiry"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Lookup returns the user's expiry association. An untracked user is not an
// error: the result has a nil Record.
func (s *Service) Lookup(ctx context.Context, userID uuid.UUID) (model.UserPasswordExpiry, error) {
	result := model.UserPasswordExpiry{UserID: userID}

	if rec, ok := s.cache.Get(ctx, userID); ok {
		s.observeLookup(lookupCacheHit)
		result.Record = rec
		return result, nil
	}

	rec, err := s.repo.GetByUserID(ctx, userID)
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		s.observeLookup(lookupUntracked)
		return result, nil
	case err != nil:
		s.observeLookup(lookupError)
		return result, errors.NewInternal(fmt.Errorf("failed to get password expiry: %w", err))
	}

	s.observeLookup(lookupFound)
	s.cache.Set(ctx, rec)
	result.Record = rec
	return result, nil
}

// Track creates the default, already expired record for userID. A second
// call for the same user fails with a conflict.
func (s *Service) Track(ctx context.Context, userID uuid.UUID) (*model.PasswordExpiry, error) {
	if userID == uuid.Nil {
		return nil, errors.NewBadRequest("user id is required", nil)
	}

	rec := model.NewPasswordExpiry(userID)
	if err := s.repo.Create(ctx, rec); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.NewConflict("password expiry already tracked for user", err)
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to create password expiry: %w", err))
	}

	s.observeTransition(rec.State)
	s.cache.Set(ctx, rec)
	s.logger.ZL.Info().Str("user_id", userID.String()).Msg("Password expiry tracked")
	return rec, nil
}

// EnsureTracked returns the user's record, creating it when absent. When two
// callers race to create the same record the loser re-reads the winner's.
func (s *Service) EnsureTracked(ctx context.Context, userID uuid.UUID) (*model.PasswordExpiry, error) {
	existing, err := s.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing.Tracked() {
		return existing.Record, nil
	}

	rec, err := s.Track(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, errors.ErrConflict) {
		return nil, err
	}

	rec, err = s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to get password expiry: %w", err))
	}
	s.cache.Set(ctx, rec)
	return rec, nil
}

// IsExpired reports whether userID must change their password. Untracked
// users are not expired. It always reads the repository, since transitions
// may be written by another process, and refreshes the cache with the result.
func (s *Service) IsExpired(ctx context.Context, userID uuid.UUID) (bool, error) {
	rec, err := s.repo.GetByUserID(ctx, userID)
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		s.observeLookup(lookupUntracked)
		s.cache.Delete(ctx, userID)
		return false, nil
	case err != nil:
		s.observeLookup(lookupError)
		return false, errors.NewInternal(fmt.Errorf("failed to get password expiry: %w", err))
	}

	s.observeLookup(lookupFound)
	s.cache.Set(ctx, rec)
	return rec.IsExpiredAt(s.now()), nil
}

// NeverExpire stops forcing password changes for the record's user and
// persists the change before returning.
func (s *Service) NeverExpire(ctx context.Context, expiry *model.PasswordExpiry) error {
	return s.transition(ctx, expiry, func(e *model.PasswordExpiry) { e.NeverExpire() })
}

// RequireChange expires the record immediately.
func (s *Service) RequireChange(ctx context.Context, expiry *model.PasswordExpiry) error {
	return s.transition(ctx, expiry, func(e *model.PasswordExpiry) { e.ExpireNow() })
}

// RecordPasswordChange schedules the next forced change according to the
// policy. A policy without a max age means the password never expires.
func (s *Service) RecordPasswordChange(ctx context.Context, expiry *model.PasswordExpiry) error {
	next := s.policy.NextExpiry(s.now())
	return s.transition(ctx, expiry, func(e *model.PasswordExpiry) {
		if next.IsZero() {
			e.NeverExpire()
			return
		}
		e.ExpireAt(next)
	})
}

// transition applies fn and writes the record through. On failure the
// record is restored and the cached copy evicted.
func (s *Service) transition(ctx context.Context, expiry *model.PasswordExpiry, fn func(*model.PasswordExpiry)) error {
	if expiry == nil {
		return errors.NewBadRequest("password expiry is required", nil)
	}

	prev := *expiry
	fn(expiry)

	if err := s.repo.Update(ctx, expiry); err != nil {
		*expiry = prev
		s.cache.Delete(ctx, expiry.UserID)
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NewNotFound("password expiry", err)
		}
		return errors.NewInternal(fmt.Errorf("failed to update password expiry: %w", err))
	}

	s.observeTransition(expiry.State)
	s.cache.Set(ctx, expiry)
	s.logger.ZL.Info().
		Str("user_id", expiry.UserID.String()).
		Str("expiry_state", string(expiry.State)).
		Time("expires_at", expiry.ExpiryTimestamp()).
		Msg("Password expiry updated")
	return nil
}

func (s *Service) observeLookup(result string) {
	if s.metrics != nil {
		s.metrics.PasswordExpiryLookups.WithLabelValues(result).Inc()
	}
}

func (s *Service) observeTransition(state model.ExpiryState) {
	if s.metrics != nil {
		s.metrics.PasswordExpiryTransitions.WithLabelValues(string(state)).Inc()
	}
}
