package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/websecurity/internal/model"
	"github.com/jwalitptl/websecurity/internal/repository"
)

type passwordExpiryRepository struct {
	BaseRepository
}

func NewPasswordExpiryRepository(base BaseRepository) repository.PasswordExpiryRepository {
	return &passwordExpiryRepository{base}
}

func (r *passwordExpiryRepository) Create(ctx context.Context, expiry *model.PasswordExpiry) error {
	start := time.Now()
	query := `
        INSERT INTO password_expiries (
            id, user_id, expiry_state, expires_at, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err := r.GetDB().ExecContext(ctx, query,
		expiry.ID,
		expiry.UserID,
		expiry.State,
		expiry.ExpiresAt,
		expiry.CreatedAt,
		expiry.UpdatedAt,
	)
	err = mapError("create password expiry", err)
	r.observe("password_expiry_create", start, err)
	return err
}

func (r *passwordExpiryRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.PasswordExpiry, error) {
	start := time.Now()
	query := `
        SELECT id, user_id, expiry_state, expires_at, created_at, updated_at
        FROM password_expiries
        WHERE user_id = $1
    `

	var expiry model.PasswordExpiry
	err := mapError("get password expiry", r.GetDB().GetContext(ctx, &expiry, query, userID))
	r.observe("password_expiry_get", start, err)
	if err != nil {
		return nil, err
	}
	return &expiry, nil
}

func (r *passwordExpiryRepository) Update(ctx context.Context, expiry *model.PasswordExpiry) error {
	start := time.Now()
	query := `
        UPDATE password_expiries
        SET expiry_state = $1, expires_at = $2, updated_at = $3
        WHERE id = $4
    `

	result, err := r.GetDB().ExecContext(ctx, query,
		expiry.State,
		expiry.ExpiresAt,
		expiry.UpdatedAt,
		expiry.ID,
	)
	if err == nil {
		var rows int64
		if rows, err = result.RowsAffected(); err == nil && rows == 0 {
			err = fmt.Errorf("password expiry %s: %w", expiry.ID, repository.ErrNotFound)
		}
	}
	if err != nil {
		err = mapError("update password expiry", err)
	}
	r.observe("password_expiry_update", start, err)
	return err
}
