package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tailtribe/internal/platform/logger"
	"tailtribe/internal/ports/payments"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrNotConfigured = errors.New("stripe not configured")

type Config struct {
	SecretKey     string
	WebhookSecret string

	// BaseURL solo para tests (servidor falso).
	BaseURL string
}

// Gateway implementa payments.Gateway sobre stripe-go.
type Gateway struct {
	api           *client.API
	webhookSecret string
	log           logger.Logger
}

func New(cfg Config, log logger.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = logger.Nop()
	}

	backendCfg := &stripego.BackendConfig{
		LeveledLogger: leveledLogger{log: log},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripego.String(cfg.BaseURL)
		backendCfg.MaxNetworkRetries = stripego.Int64(0)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, &stripego.BackendConfig{LeveledLogger: leveledLogger{log: log}}),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, &stripego.BackendConfig{LeveledLogger: leveledLogger{log: log}}),
	})

	return &Gateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}, nil
}

// CreateIntent crea el PaymentIntent. Con cuenta destino usa destination charge
// + application fee; sin ella la comisión solo queda en metadata.
func (g *Gateway) CreateIntent(ctx context.Context, in payments.IntentInput) (payments.Intent, error) {
	if in.AmountCents <= 0 || in.BookingID == "" {
		return payments.Intent{}, fmt.Errorf("stripe: invalid intent input")
	}

	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(in.AmountCents),
		Currency: stripego.String(strings.ToLower(in.Currency)),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	if in.Description != "" {
		params.Description = stripego.String(in.Description)
	}
	if in.DestinationAccount != "" {
		params.TransferData = &stripego.PaymentIntentTransferDataParams{
			Destination: stripego.String(in.DestinationAccount),
		}
		if in.FeeCents > 0 {
			params.ApplicationFeeAmount = stripego.Int64(in.FeeCents)
		}
	}
	params.Context = ctx
	params.AddMetadata("booking_id", in.BookingID)
	params.AddMetadata("commission_cents", fmt.Sprintf("%d", in.FeeCents))
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return payments.Intent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return payments.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (g *Gateway) Refund(ctx context.Context, paymentIntentID, idempotencyKey string) error {
	if paymentIntentID == "" {
		return fmt.Errorf("stripe: missing payment intent")
	}
	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(paymentIntentID),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	if _, err := g.api.Refunds.New(params); err != nil {
		return fmt.Errorf("stripe: refund: %w", err)
	}
	return nil
}

// ParseWebhook verifica Stripe-Signature (tolerancia por defecto de 5 minutos)
// y extrae lo necesario del objeto del evento.
func (g *Gateway) ParseWebhook(payload []byte, signatureHeader string) (payments.WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		g.log.Warn("stripe webhook rejected", map[string]any{"error": err})
		return payments.WebhookEvent{}, payments.ErrInvalidSignature
	}

	out := payments.WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case payments.EventPaymentSucceeded, payments.EventPaymentFailed:
		var pi stripego.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return payments.WebhookEvent{}, fmt.Errorf("stripe: decode payment intent: %w", err)
		}
		out.PaymentIntentID = pi.ID
		out.BookingID = pi.Metadata["booking_id"]
		if pi.LastPaymentError != nil {
			out.FailureMessage = pi.LastPaymentError.Msg
		}

	case payments.EventChargeRefunded:
		var ch stripego.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return payments.WebhookEvent{}, fmt.Errorf("stripe: decode charge: %w", err)
		}
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
		out.BookingID = ch.Metadata["booking_id"]
	}
	return out, nil
}

// leveledLogger manda los logs internos de stripe-go a nuestro logger.
type leveledLogger struct {
	log logger.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), map[string]any{"component": "stripe"})
}

func (l leveledLogger) Infof(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), map[string]any{"component": "stripe"})
}

func (l leveledLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...), map[string]any{"component": "stripe"})
}

func (l leveledLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...), map[string]any{"component": "stripe"})
}
