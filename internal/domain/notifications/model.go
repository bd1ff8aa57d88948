package notifications

import "time"

// Kind identifica el evento que originó la notificación.
type Kind string

const (
	KindBookingRequested Kind = "booking_requested"
	KindBookingAccepted  Kind = "booking_accepted"
	KindBookingDeclined  Kind = "booking_declined"
	KindBookingCancelled Kind = "booking_cancelled"
	KindBookingPaid      Kind = "booking_paid"
	KindBookingCompleted Kind = "booking_completed"
	KindBookingExpired   Kind = "booking_expired"
	KindBookingReminder  Kind = "booking_reminder"
	KindPaymentFailed    Kind = "payment_failed"
	KindNewMessage       Kind = "new_message"
	KindReferralRewarded Kind = "referral_rewarded"
)

type Notification struct {
	ID     string
	UserID string
	Kind   Kind
	Title  string
	Body   string
	Link   string

	ReadAt    *time.Time
	CreatedAt time.Time
}

// Input es lo que mandan los otros módulos a Notify.
type Input struct {
	UserID string
	Kind   Kind
	Title  string
	Body   string
	Link   string

	// SkipEmail evita el email (p.ej. mensajes de chat muy frecuentes).
	SkipEmail bool
}
