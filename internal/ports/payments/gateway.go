package payments

import (
	"context"
	"errors"
)

// Tipos de evento del webhook que nos interesan.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// IntentInput describe el cobro de un booking.
type IntentInput struct {
	BookingID   string
	AmountCents int64
	FeeCents    int64 // comisión de la plataforma
	Currency    string
	Description string

	// DestinationAccount es la cuenta conectada del cuidador (opcional).
	DestinationAccount string

	// IdempotencyKey evita crear dos cobros para el mismo booking.
	IdempotencyKey string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// WebhookEvent es la parte del evento que usa el dominio.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	BookingID       string // metadata.booking_id si viene
	FailureMessage  string
}

// Gateway es el proveedor de pagos (Stripe en producción).
type Gateway interface {
	CreateIntent(ctx context.Context, in IntentInput) (Intent, error)
	Refund(ctx context.Context, paymentIntentID, idempotencyKey string) error
	ParseWebhook(payload []byte, signatureHeader string) (WebhookEvent, error)
}
