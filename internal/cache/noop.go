package cache

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/websecurity/internal/model"
)

// Noop disables caching.
type Noop struct{}

func (Noop) Get(context.Context, uuid.UUID) (*model.PasswordExpiry, bool) { return nil, false }
func (Noop) Set(context.Context, *model.PasswordExpiry)                   {}
func (Noop) Delete(context.Context, uuid.UUID)                            {}
