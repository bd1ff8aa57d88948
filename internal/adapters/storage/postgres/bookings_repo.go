package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tailtribe/internal/domain/bookings"
	"tailtribe/internal/domain/caregivers"
)

type BookingsRepo struct {
	db *sql.DB
}

func NewBookingsRepo(db *sql.DB) *BookingsRepo {
	return &BookingsRepo{db: db}
}

// activeStatuses tiene que coincidir con bookings.Status.Active.
var activeStatuses = []any{
	string(bookings.StatusPending),
	string(bookings.StatusAccepted),
	string(bookings.StatusPaid),
}

// Create serializa por cuidador con un advisory lock de transacción:
// dos requests concurrentes para el mismo cuidador no pueden pasar ambos el check.
func (r *BookingsRepo) Create(ctx context.Context, b bookings.Booking) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, b.CaregiverID); err != nil {
			return err
		}

		var taken bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM bookings
				WHERE caregiver_id = $1
				  AND status IN ($4, $5, $6)
				  AND start_at < $3 AND end_at > $2
			)
		`, append([]any{b.CaregiverID, b.StartAt, b.EndAt}, activeStatuses...)...).Scan(&taken)
		if err != nil {
			return err
		}
		if taken {
			return bookings.ErrSlotTaken
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (
				id, owner_id, caregiver_id, service,
				start_at, end_at,
				price_cents, commission_cents, payout_cents, currency,
				status, payment_intent_id, notes,
				reminder_sent_at, cancelled_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		`,
			b.ID, b.OwnerID, b.CaregiverID, string(b.Service),
			b.StartAt, b.EndAt,
			b.PriceCents, b.CommissionCents, b.PayoutCents, b.Currency,
			string(b.Status), b.PaymentIntentID, b.Notes,
			nullTime(b.ReminderSentAt), nullTime(b.CancelledAt), b.CreatedAt, b.UpdatedAt,
		); err != nil {
			return err
		}

		for i, petID := range b.PetIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO booking_pets (booking_id, pet_id, position) VALUES ($1,$2,$3)`,
				b.ID, petID, i,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BookingsRepo) Update(ctx context.Context, b bookings.Booking) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET
			status = $2,
			payment_intent_id = $3,
			notes = $4,
			reminder_sent_at = $5,
			cancelled_at = $6,
			updated_at = $7
		WHERE id = $1
	`,
		b.ID, string(b.Status), b.PaymentIntentID, b.Notes,
		nullTime(b.ReminderSentAt), nullTime(b.CancelledAt), b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return bookings.ErrNotFound
	}
	return nil
}

const bookingSelect = `
	SELECT
		b.id, b.owner_id, b.caregiver_id, b.service,
		b.start_at, b.end_at,
		b.price_cents, b.commission_cents, b.payout_cents, b.currency,
		b.status, b.payment_intent_id, b.notes,
		b.reminder_sent_at, b.cancelled_at, b.created_at, b.updated_at,
		COALESCE((
			SELECT json_agg(bp.pet_id ORDER BY bp.position)
			FROM booking_pets bp WHERE bp.booking_id = b.id
		), '[]')::text
	FROM bookings b`

func (r *BookingsRepo) GetByID(ctx context.Context, id string) (bookings.Booking, error) {
	return r.getOne(ctx, bookingSelect+` WHERE b.id = $1`, id)
}

func (r *BookingsRepo) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (bookings.Booking, error) {
	if paymentIntentID == "" {
		return bookings.Booking{}, bookings.ErrNotFound
	}
	return r.getOne(ctx, bookingSelect+` WHERE b.payment_intent_id = $1`, paymentIntentID)
}

func (r *BookingsRepo) ListByOwner(ctx context.Context, ownerID string, f bookings.ListFilter) ([]bookings.Booking, error) {
	return r.listByParticipant(ctx, "owner_id", ownerID, f)
}

func (r *BookingsRepo) ListByCaregiver(ctx context.Context, caregiverID string, f bookings.ListFilter) ([]bookings.Booking, error) {
	return r.listByParticipant(ctx, "caregiver_id", caregiverID, f)
}

func (r *BookingsRepo) listByParticipant(ctx context.Context, column, userID string, f bookings.ListFilter) ([]bookings.Booking, error) {
	q := fmt.Sprintf(`%s WHERE b.%s = $1 AND ($2 = '' OR b.status = $2) ORDER BY b.start_at DESC`, bookingSelect, column)
	return r.list(ctx, q, userID, string(f.Status))
}

func (r *BookingsRepo) ListActiveByCaregiver(ctx context.Context, caregiverID string, from, to time.Time) ([]bookings.Booking, error) {
	return r.list(ctx, bookingSelect+`
		WHERE b.caregiver_id = $1
		  AND b.status IN ($4, $5, $6)
		  AND b.start_at < $3 AND b.end_at > $2
		ORDER BY b.start_at ASC
	`, append([]any{caregiverID, from, to}, activeStatuses...)...)
}

func (r *BookingsRepo) ListDueReminders(ctx context.Context, from, to time.Time) ([]bookings.Booking, error) {
	return r.list(ctx, bookingSelect+`
		WHERE b.status = $3 AND b.reminder_sent_at IS NULL
		  AND b.start_at >= $1 AND b.start_at < $2
		ORDER BY b.start_at ASC
	`, from, to, string(bookings.StatusPaid))
}

func (r *BookingsRepo) ListStalePending(ctx context.Context, createdBefore time.Time) ([]bookings.Booking, error) {
	return r.list(ctx, bookingSelect+`
		WHERE b.status = $2 AND b.created_at < $1
		ORDER BY b.start_at ASC
	`, createdBefore, string(bookings.StatusPending))
}

func (r *BookingsRepo) MarkCompleted(ctx context.Context, b bookings.Booking, c bookings.ServiceCompletion) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings SET status = $2, updated_at = $3
			WHERE id = $1 AND status = $4
		`, b.ID, string(bookings.StatusCompleted), b.UpdatedAt, string(bookings.StatusPaid))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, b.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return bookings.ErrNotFound
			}
			return bookings.ErrBadState
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO service_completions (booking_id, caregiver_id, notes, completed_at)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (booking_id) DO UPDATE
			SET notes = EXCLUDED.notes, completed_at = EXCLUDED.completed_at
		`, c.BookingID, c.CaregiverID, c.Notes, c.CompletedAt)
		return err
	})
}

func (r *BookingsRepo) GetCompletion(ctx context.Context, bookingID string) (bookings.ServiceCompletion, error) {
	var c bookings.ServiceCompletion
	err := r.db.QueryRowContext(ctx, `
		SELECT booking_id, caregiver_id, notes, completed_at FROM service_completions WHERE booking_id = $1
	`, bookingID).Scan(&c.BookingID, &c.CaregiverID, &c.Notes, &c.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return bookings.ServiceCompletion{}, bookings.ErrCompletionNotFound
	}
	return c, err
}

func (r *BookingsRepo) getOne(ctx context.Context, q string, args ...any) (bookings.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bookings.Booking{}, bookings.ErrNotFound
		}
		return bookings.Booking{}, err
	}
	return b, nil
}

func (r *BookingsRepo) list(ctx context.Context, q string, args ...any) ([]bookings.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]bookings.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row rowScanner) (bookings.Booking, error) {
	var b bookings.Booking
	var service, status, petIDs string
	var reminder, cancelled sql.NullTime
	if err := row.Scan(
		&b.ID, &b.OwnerID, &b.CaregiverID, &service,
		&b.StartAt, &b.EndAt,
		&b.PriceCents, &b.CommissionCents, &b.PayoutCents, &b.Currency,
		&status, &b.PaymentIntentID, &b.Notes,
		&reminder, &cancelled, &b.CreatedAt, &b.UpdatedAt,
		&petIDs,
	); err != nil {
		return bookings.Booking{}, err
	}
	b.Service = caregivers.ServiceType(service)
	b.Status = bookings.Status(status)
	b.ReminderSentAt = timePtr(reminder)
	b.CancelledAt = timePtr(cancelled)
	if err := json.Unmarshal([]byte(petIDs), &b.PetIDs); err != nil {
		return bookings.Booking{}, fmt.Errorf("decode pet ids: %w", err)
	}
	return b, nil
}
