package bookings

import (
	"context"
	"time"
)

type Repository interface {
	// Create falla con ErrSlotTaken si el cuidador ya tiene un booking activo solapado.
	// La comprobación y el insert son atómicos.
	Create(ctx context.Context, b Booking) error
	Update(ctx context.Context, b Booking) error
	GetByID(ctx context.Context, id string) (Booking, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (Booking, error)

	ListByOwner(ctx context.Context, ownerID string, f ListFilter) ([]Booking, error)
	ListByCaregiver(ctx context.Context, caregiverID string, f ListFilter) ([]Booking, error)

	// ListActiveByCaregiver: bookings pending/accepted/paid que solapan [from, to).
	ListActiveByCaregiver(ctx context.Context, caregiverID string, from, to time.Time) ([]Booking, error)

	// ListDueReminders: pagados, sin recordatorio, con StartAt en [from, to).
	ListDueReminders(ctx context.Context, from, to time.Time) ([]Booking, error)
	// ListStalePending: pending creados antes de createdBefore.
	ListStalePending(ctx context.Context, createdBefore time.Time) ([]Booking, error)

	// MarkCompleted pasa b de paid a completed y guarda c en la misma operación.
	// ErrBadState si el booking ya no está pagado.
	MarkCompleted(ctx context.Context, b Booking, c ServiceCompletion) error
	GetCompletion(ctx context.Context, bookingID string) (ServiceCompletion, error)
}
