package twofactor

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, c Challenge) error
	GetByID(ctx context.Context, id string) (Challenge, error)
	Update(ctx context.Context, c Challenge) error

	// DeleteStale borra challenges vencidos o ya consumidos antes de now.
	DeleteStale(ctx context.Context, now time.Time) (int, error)
}
