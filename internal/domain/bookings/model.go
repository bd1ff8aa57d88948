package bookings

import (
	"time"

	"tailtribe/internal/domain/caregivers"
)

// Status del booking.
// @Enum pending, accepted, declined, cancelled, paid, completed, expired
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusCancelled,
		StatusPaid, StatusCompleted, StatusExpired:
		return true
	default:
		return false
	}
}

// Active: ocupa la agenda del cuidador.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusPaid
}

type Booking struct {
	ID          string
	OwnerID     string
	CaregiverID string

	Service caregivers.ServiceType
	PetIDs  []string

	StartAt time.Time
	EndAt   time.Time

	PriceCents      int64
	CommissionCents int64
	PayoutCents     int64
	Currency        string

	Status          Status
	PaymentIntentID string
	Notes           string

	ReminderSentAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CancelledAt    *time.Time
}

func (b Booking) IsParticipant(userID string) bool {
	return userID != "" && (b.OwnerID == userID || b.CaregiverID == userID)
}

// ServiceCompletion lo registra el cuidador al terminar el servicio.
type ServiceCompletion struct {
	BookingID   string
	CaregiverID string
	Notes       string
	CompletedAt time.Time
}

// ListFilter: Status vacío no filtra.
type ListFilter struct {
	Status Status
}
