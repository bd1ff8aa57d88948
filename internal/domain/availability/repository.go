package availability

import (
	"context"
	"time"
)

type Repository interface {
	CreateMany(ctx context.Context, slots []Slot) error
	GetByID(ctx context.Context, id string) (Slot, error)
	Delete(ctx context.Context, id string) error

	// ListByCaregiver devuelve los slots que se solapan con [from, to).
	ListByCaregiver(ctx context.Context, caregiverID string, from, to time.Time) ([]Slot, error)
}
