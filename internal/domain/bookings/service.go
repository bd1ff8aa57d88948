package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tailtribe/internal/domain/availability"
	"tailtribe/internal/domain/caregivers"
	"tailtribe/internal/domain/notifications"
	"tailtribe/internal/domain/pets"
	"tailtribe/internal/platform/logger"
	"tailtribe/internal/ports/payments"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("booking not found")
	ErrForbidden           = errors.New("forbidden")
	ErrBadState            = errors.New("invalid booking state")
	ErrCaregiverNotFound   = errors.New("caregiver not found")
	ErrServiceNotOffered   = errors.New("caregiver does not offer this service")
	ErrSpeciesNotAccepted  = errors.New("caregiver does not accept this species")
	ErrTooManyPets         = errors.New("too many pets for this caregiver")
	ErrNotAvailable        = errors.New("caregiver is not available in this window")
	ErrSlotTaken           = errors.New("caregiver already booked in this window")
	ErrPaymentsUnavailable = errors.New("payments not configured")
	ErrCompletionNotFound  = errors.New("completion not found")
)

const (
	// PendingTTL: un pending sin respuesta del cuidador caduca.
	PendingTTL = 48 * time.Hour
	// ReminderWindow: se recuerda el servicio cuando empieza dentro de esta ventana.
	ReminderWindow = 24 * time.Hour

	maxDuration  = 31 * 24 * time.Hour
	maxNotesLen  = 2000
	maxPetsTotal = 10
)

type CaregiverLookup interface {
	Get(ctx context.Context, userID string) (caregivers.Profile, error)
}

type PetLookup interface {
	SpeciesOf(ctx context.Context, ownerUserID string, petIDs []string) ([]string, error)
}

type AvailabilityChecker interface {
	IsFree(ctx context.Context, caregiverID string, start, end time.Time) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, in notifications.Input) (notifications.Notification, error)
}

// CompletionListener se entera de cada booking completado (referrals).
type CompletionListener interface {
	OnBookingCompleted(ctx context.Context, ownerID string) error
}

type Deps struct {
	Repo         Repository
	Caregivers   CaregiverLookup
	Pets         PetLookup
	Availability AvailabilityChecker

	// Opcionales
	Payments  payments.Gateway
	Notifier  Notifier
	Referrals CompletionListener
	Log       logger.Logger

	CommissionPercent float64
	Currency          string
}

type Service struct {
	repo         Repository
	caregivers   CaregiverLookup
	pets         PetLookup
	availability AvailabilityChecker
	payments     payments.Gateway
	notifier     Notifier
	referrals    CompletionListener
	log          logger.Logger

	commissionPercent float64
	currency          string

	now func() time.Time
}

func NewService(d Deps) *Service {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	currency := strings.ToLower(strings.TrimSpace(d.Currency))
	if currency == "" {
		currency = "eur"
	}
	return &Service{
		repo:              d.Repo,
		caregivers:        d.Caregivers,
		pets:              d.Pets,
		availability:      d.Availability,
		payments:          d.Payments,
		notifier:          d.Notifier,
		referrals:         d.Referrals,
		log:               d.Log,
		commissionPercent: d.CommissionPercent,
		currency:          currency,
		now:               time.Now,
	}
}

type CreateInput struct {
	OwnerID     string
	CaregiverID string
	Service     caregivers.ServiceType
	PetIDs      []string
	StartAt     time.Time
	EndAt       time.Time
	Notes       string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Booking, error) {
	ownerID := strings.TrimSpace(in.OwnerID)
	caregiverID := strings.TrimSpace(in.CaregiverID)
	if ownerID == "" || caregiverID == "" || ownerID == caregiverID {
		return Booking{}, ErrInvalidInput
	}
	if !in.Service.Valid() {
		return Booking{}, ErrInvalidInput
	}
	if !in.EndAt.After(in.StartAt) || in.EndAt.Sub(in.StartAt) > maxDuration {
		return Booking{}, ErrInvalidInput
	}
	notes := strings.TrimSpace(in.Notes)
	if len([]rune(notes)) > maxNotesLen {
		return Booking{}, ErrInvalidInput
	}

	petIDs := dedupe(in.PetIDs)
	if len(petIDs) == 0 || len(petIDs) > maxPetsTotal {
		return Booking{}, ErrInvalidInput
	}

	now := s.now()
	if !in.StartAt.After(now) {
		return Booking{}, ErrInvalidInput
	}

	profile, err := s.caregivers.Get(ctx, caregiverID)
	if err != nil {
		if errors.Is(err, caregivers.ErrNotFound) {
			return Booking{}, ErrCaregiverNotFound
		}
		return Booking{}, err
	}

	offer, ok := profile.Offer(in.Service)
	if !ok {
		return Booking{}, ErrServiceNotOffered
	}
	if profile.MaxPets > 0 && len(petIDs) > profile.MaxPets {
		return Booking{}, ErrTooManyPets
	}

	species, err := s.pets.SpeciesOf(ctx, ownerID, petIDs)
	if err != nil {
		switch {
		case errors.Is(err, pets.ErrForbidden):
			return Booking{}, ErrForbidden
		case errors.Is(err, pets.ErrNotFound):
			return Booking{}, ErrInvalidInput
		default:
			return Booking{}, err
		}
	}
	for _, sp := range species {
		if !profile.AcceptsSpecies(sp) {
			return Booking{}, ErrSpeciesNotAccepted
		}
	}

	free, err := s.availability.IsFree(ctx, caregiverID, in.StartAt, in.EndAt)
	if err != nil {
		return Booking{}, err
	}
	if !free {
		return Booking{}, ErrNotAvailable
	}

	price := Quote(offer, in.StartAt, in.EndAt)
	commission, payout := Split(price, s.commissionPercent)

	b := Booking{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		CaregiverID:     caregiverID,
		Service:         in.Service,
		PetIDs:          petIDs,
		StartAt:         in.StartAt.UTC(),
		EndAt:           in.EndAt.UTC(),
		PriceCents:      price,
		CommissionCents: commission,
		PayoutCents:     payout,
		Currency:        s.currency,
		Status:          StatusPending,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// El repo vuelve a comprobar el solape dentro de la transacción.
	if err := s.repo.Create(ctx, b); err != nil {
		return Booking{}, err
	}

	s.notify(ctx, notifications.Input{
		UserID: b.CaregiverID,
		Kind:   notifications.KindBookingRequested,
		Title:  "New booking request",
		Body:   fmt.Sprintf("%s on %s for %s.", string(b.Service), b.StartAt.Format(time.RFC3339), FormatEUR(b.PriceCents)),
		Link:   bookingLink(b.ID),
	})
	return b, nil
}

// Get solo para participantes (admin incluido a nivel handler).
func (s *Service) Get(ctx context.Context, id, userID string) (Booking, error) {
	b, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Booking{}, err
	}
	if !b.IsParticipant(userID) {
		return Booking{}, ErrForbidden
	}
	return b, nil
}

// GetAny sin chequeo de participante (admin).
func (s *Service) GetAny(ctx context.Context, id string) (Booking, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

// ListAs lista los bookings del usuario como owner o como caregiver.
func (s *Service) ListAs(ctx context.Context, userID, role string, f ListFilter) ([]Booking, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidInput
	}
	switch role {
	case "owner":
		return s.repo.ListByOwner(ctx, userID, f)
	case "caregiver":
		return s.repo.ListByCaregiver(ctx, userID, f)
	default:
		return nil, ErrInvalidInput
	}
}

func (s *Service) Accept(ctx context.Context, id, caregiverID string) (Booking, error) {
	b, err := s.forCaregiver(ctx, id, caregiverID)
	if err != nil {
		return Booking{}, err
	}

	// Idempotente
	if b.Status == StatusAccepted {
		return b, nil
	}
	if b.Status != StatusPending {
		return Booking{}, ErrBadState
	}

	b.Status = StatusAccepted
	b.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, b); err != nil {
		return Booking{}, err
	}

	s.notify(ctx, notifications.Input{
		UserID: b.OwnerID,
		Kind:   notifications.KindBookingAccepted,
		Title:  "Booking accepted",
		Body:   "Your booking was accepted. You can now pay " + FormatEUR(b.PriceCents) + ".",
		Link:   bookingLink(b.ID),
	})
	return b, nil
}

func (s *Service) Decline(ctx context.Context, id, caregiverID string) (Booking, error) {
	b, err := s.forCaregiver(ctx, id, caregiverID)
	if err != nil {
		return Booking{}, err
	}

	if b.Status == StatusDeclined {
		return b, nil
	}
	if b.Status != StatusPending {
		return Booking{}, ErrBadState
	}

	b.Status = StatusDeclined
	b.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, b); err != nil {
		return Booking{}, err
	}

	s.notify(ctx, notifications.Input{
		UserID: b.OwnerID,
		Kind:   notifications.KindBookingDeclined,
		Title:  "Booking declined",
		Body:   "The caregiver declined your booking request.",
		Link:   bookingLink(b.ID),
	})
	return b, nil
}

// Cancel lo puede hacer cualquiera de los dos. Si ya estaba pagado se reembolsa
// antes de cancelar; si el reembolso falla el booking no cambia.
func (s *Service) Cancel(ctx context.Context, id, userID string) (Booking, error) {
	b, err := s.Get(ctx, id, userID)
	if err != nil {
		return Booking{}, err
	}

	if b.Status == StatusCancelled {
		return b, nil
	}
	if !b.Status.Active() {
		return Booking{}, ErrBadState
	}

	if b.Status == StatusPaid && b.PaymentIntentID != "" {
		if s.payments == nil {
			return Booking{}, ErrPaymentsUnavailable
		}
		if err := s.payments.Refund(ctx, b.PaymentIntentID, "refund-"+b.ID); err != nil {
			s.log.Error("refund failed", map[string]any{"booking_id": b.ID, "error": err})
			return Booking{}, err
		}
	}

	now := s.now()
	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now
	if err := s.repo.Update(ctx, b); err != nil {
		return Booking{}, err
	}

	other := b.OwnerID
	if userID == b.OwnerID {
		other = b.CaregiverID
	}
	s.notify(ctx, notifications.Input{
		UserID: other,
		Kind:   notifications.KindBookingCancelled,
		Title:  "Booking cancelled",
		Body:   "A booking starting " + b.StartAt.Format(time.RFC3339) + " was cancelled.",
		Link:   bookingLink(b.ID),
	})
	return b, nil
}

type PaymentResult struct {
	Booking      Booking
	ClientSecret string
}

// Pay crea (o recupera, por idempotencia) el PaymentIntent de un booking aceptado.
// La comisión va como application fee solo si el cuidador tiene cuenta conectada.
func (s *Service) Pay(ctx context.Context, id, ownerID string) (PaymentResult, error) {
	if s.payments == nil {
		return PaymentResult{}, ErrPaymentsUnavailable
	}

	b, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return PaymentResult{}, err
	}
	if b.OwnerID != ownerID {
		return PaymentResult{}, ErrForbidden
	}
	if b.Status != StatusAccepted {
		return PaymentResult{}, ErrBadState
	}

	profile, err := s.caregivers.Get(ctx, b.CaregiverID)
	if err != nil {
		return PaymentResult{}, err
	}

	intent, err := s.payments.CreateIntent(ctx, payments.IntentInput{
		BookingID:          b.ID,
		AmountCents:        b.PriceCents,
		FeeCents:           b.CommissionCents,
		Currency:           b.Currency,
		Description:        fmt.Sprintf("TailTribe %s booking %s", b.Service, b.ID),
		DestinationAccount: profile.PayoutAccountID,
		IdempotencyKey:     b.ID,
	})
	if err != nil {
		s.log.Error("create payment intent failed", map[string]any{"booking_id": b.ID, "error": err})
		return PaymentResult{}, err
	}

	if b.PaymentIntentID != intent.ID {
		b.PaymentIntentID = intent.ID
		b.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, b); err != nil {
			return PaymentResult{}, err
		}
	}
	return PaymentResult{Booking: b, ClientSecret: intent.ClientSecret}, nil
}

// Complete cierra un booking pagado una vez empezado el servicio.
func (s *Service) Complete(ctx context.Context, id, caregiverID, notes string) (ServiceCompletion, error) {
	b, err := s.forCaregiver(ctx, id, caregiverID)
	if err != nil {
		return ServiceCompletion{}, err
	}

	// Idempotente
	if b.Status == StatusCompleted {
		return s.repo.GetCompletion(ctx, b.ID)
	}
	if b.Status != StatusPaid {
		return ServiceCompletion{}, ErrBadState
	}

	now := s.now()
	if now.Before(b.StartAt) {
		return ServiceCompletion{}, ErrBadState
	}

	notes = strings.TrimSpace(notes)
	if len([]rune(notes)) > maxNotesLen {
		return ServiceCompletion{}, ErrInvalidInput
	}

	c := ServiceCompletion{
		BookingID:   b.ID,
		CaregiverID: b.CaregiverID,
		Notes:       notes,
		CompletedAt: now,
	}
	b.Status = StatusCompleted
	b.UpdatedAt = now
	if err := s.repo.MarkCompleted(ctx, b, c); err != nil {
		return ServiceCompletion{}, err
	}

	if s.referrals != nil {
		if err := s.referrals.OnBookingCompleted(ctx, b.OwnerID); err != nil {
			s.log.Warn("referral reward check failed", map[string]any{"booking_id": b.ID, "owner_id": b.OwnerID, "error": err})
		}
	}

	s.notify(ctx, notifications.Input{
		UserID: b.OwnerID,
		Kind:   notifications.KindBookingCompleted,
		Title:  "Service completed",
		Body:   "Your caregiver marked the service as completed.",
		Link:   bookingLink(b.ID),
	})
	return c, nil
}

func (s *Service) Completion(ctx context.Context, id, userID string) (ServiceCompletion, error) {
	b, err := s.Get(ctx, id, userID)
	if err != nil {
		return ServiceCompletion{}, err
	}
	return s.repo.GetCompletion(ctx, b.ID)
}

// HandleWebhook verifica la firma y aplica el evento. Eventos desconocidos se ignoran.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.payments == nil {
		return ErrPaymentsUnavailable
	}
	ev, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	return s.HandlePaymentEvent(ctx, ev)
}

func (s *Service) HandlePaymentEvent(ctx context.Context, ev payments.WebhookEvent) error {
	switch ev.Type {
	case payments.EventPaymentSucceeded, payments.EventPaymentFailed, payments.EventChargeRefunded:
	default:
		s.log.Debug("stripe event ignored", map[string]any{"event_id": ev.ID, "type": ev.Type})
		return nil
	}

	b, err := s.bookingForEvent(ctx, ev)
	if errors.Is(err, ErrNotFound) {
		s.log.Warn("stripe event for unknown booking", map[string]any{"event_id": ev.ID, "type": ev.Type, "payment_intent": ev.PaymentIntentID})
		return nil
	}
	if err != nil {
		return err
	}

	log := s.log.With(map[string]any{"event_id": ev.ID, "booking_id": b.ID})

	switch ev.Type {
	case payments.EventPaymentSucceeded:
		if b.Status == StatusPaid || b.Status == StatusCompleted {
			return nil
		}
		if b.Status != StatusAccepted && b.Status != StatusPending {
			log.Warn("payment succeeded on inactive booking", map[string]any{"status": string(b.Status)})
			return nil
		}
		b.Status = StatusPaid
		if b.PaymentIntentID == "" {
			b.PaymentIntentID = ev.PaymentIntentID
		}
		b.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		log.Info("booking paid", nil)

		for _, uid := range []string{b.OwnerID, b.CaregiverID} {
			s.notify(ctx, notifications.Input{
				UserID: uid,
				Kind:   notifications.KindBookingPaid,
				Title:  "Booking confirmed",
				Body:   "Payment of " + FormatEUR(b.PriceCents) + " received.",
				Link:   bookingLink(b.ID),
			})
		}

	case payments.EventPaymentFailed:
		log.Warn("payment failed", map[string]any{"reason": ev.FailureMessage})
		body := "Your payment could not be completed."
		if ev.FailureMessage != "" {
			body += " " + ev.FailureMessage
		}
		s.notify(ctx, notifications.Input{
			UserID: b.OwnerID,
			Kind:   notifications.KindPaymentFailed,
			Title:  "Payment failed",
			Body:   body,
			Link:   bookingLink(b.ID),
		})

	case payments.EventChargeRefunded:
		if b.Status == StatusCancelled {
			return nil
		}
		now := s.now()
		b.Status = StatusCancelled
		b.CancelledAt = &now
		b.UpdatedAt = now
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		log.Info("booking cancelled by refund", nil)

		s.notify(ctx, notifications.Input{
			UserID: b.OwnerID,
			Kind:   notifications.KindBookingCancelled,
			Title:  "Booking refunded",
			Body:   FormatEUR(b.PriceCents) + " was refunded.",
			Link:   bookingLink(b.ID),
		})
	}
	return nil
}

func (s *Service) bookingForEvent(ctx context.Context, ev payments.WebhookEvent) (Booking, error) {
	if ev.PaymentIntentID != "" {
		b, err := s.repo.GetByPaymentIntent(ctx, ev.PaymentIntentID)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return b, err
		}
	}
	if ev.BookingID != "" {
		return s.repo.GetByID(ctx, ev.BookingID)
	}
	return Booking{}, ErrNotFound
}

// BusyIntervals implementa availability.BusyLookup.
func (s *Service) BusyIntervals(ctx context.Context, caregiverID string, from, to time.Time) ([]availability.Interval, error) {
	items, err := s.repo.ListActiveByCaregiver(ctx, caregiverID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]availability.Interval, 0, len(items))
	for _, b := range items {
		out = append(out, availability.Interval{Start: b.StartAt, End: b.EndAt})
	}
	return out, nil
}

// SendReminders avisa a ambas partes de los servicios pagados que empiezan en las próximas 24h.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.ListDueReminders(ctx, now, now.Add(ReminderWindow))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, b := range due {
		at := now
		b.ReminderSentAt = &at
		b.UpdatedAt = now
		if err := s.repo.Update(ctx, b); err != nil {
			s.log.Error("reminder update failed", map[string]any{"booking_id": b.ID, "error": err})
			continue
		}

		for _, uid := range []string{b.OwnerID, b.CaregiverID} {
			s.notify(ctx, notifications.Input{
				UserID: uid,
				Kind:   notifications.KindBookingReminder,
				Title:  "Upcoming booking",
				Body:   "Your " + string(b.Service) + " booking starts at " + b.StartAt.Format(time.RFC3339) + ".",
				Link:   bookingLink(b.ID),
			})
		}
		sent++
	}
	return sent, nil
}

// ExpireStalePending pasa a expired los pending con más de 48h.
func (s *Service) ExpireStalePending(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.repo.ListStalePending(ctx, now.Add(-PendingTTL))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range stale {
		b.Status = StatusExpired
		b.UpdatedAt = now
		if err := s.repo.Update(ctx, b); err != nil {
			s.log.Error("expire booking failed", map[string]any{"booking_id": b.ID, "error": err})
			continue
		}

		s.notify(ctx, notifications.Input{
			UserID: b.OwnerID,
			Kind:   notifications.KindBookingExpired,
			Title:  "Booking request expired",
			Body:   "The caregiver did not answer within 48 hours.",
			Link:   bookingLink(b.ID),
		})
		expired++
	}
	return expired, nil
}

func (s *Service) forCaregiver(ctx context.Context, id, caregiverID string) (Booking, error) {
	b, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Booking{}, err
	}
	if b.CaregiverID != caregiverID {
		return Booking{}, ErrForbidden
	}
	return b, nil
}

// notify nunca falla la operación principal.
func (s *Service) notify(ctx context.Context, in notifications.Input) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, in); err != nil {
		s.log.Warn("notify failed", map[string]any{"user_id": in.UserID, "kind": string(in.Kind), "error": err})
	}
}

func bookingLink(id string) string { return "/bookings/" + id }

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
