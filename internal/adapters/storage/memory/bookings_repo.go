package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tailtribe/internal/domain/bookings"
)

// bookingRepo hace el check de solapamiento y el insert bajo el mismo lock.
type bookingRepo struct {
	mu          sync.RWMutex
	byID        map[string]bookings.Booking
	completions map[string]bookings.ServiceCompletion
}

func NewBookingRepo() bookings.Repository {
	return &bookingRepo{
		byID:        make(map[string]bookings.Booking),
		completions: make(map[string]bookings.ServiceCompletion),
	}
}

func (r *bookingRepo) Create(ctx context.Context, b bookings.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.byID {
		if o.CaregiverID == b.CaregiverID && o.Status.Active() && overlaps(o.StartAt, o.EndAt, b.StartAt, b.EndAt) {
			return bookings.ErrSlotTaken
		}
	}
	r.byID[b.ID] = cloneBooking(b)
	return nil
}

func (r *bookingRepo) Update(ctx context.Context, b bookings.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[b.ID]; !ok {
		return bookings.ErrNotFound
	}
	r.byID[b.ID] = cloneBooking(b)
	return nil
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (bookings.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return bookings.Booking{}, bookings.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r *bookingRepo) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (bookings.Booking, error) {
	if paymentIntentID == "" {
		return bookings.Booking{}, bookings.ErrNotFound
	}
	out := r.filter(func(b bookings.Booking) bool { return b.PaymentIntentID == paymentIntentID })
	if len(out) == 0 {
		return bookings.Booking{}, bookings.ErrNotFound
	}
	return out[0], nil
}

func (r *bookingRepo) ListByOwner(ctx context.Context, ownerID string, f bookings.ListFilter) ([]bookings.Booking, error) {
	out := r.filter(func(b bookings.Booking) bool {
		return b.OwnerID == ownerID && (f.Status == "" || b.Status == f.Status)
	})
	sortByStartDesc(out)
	return out, nil
}

func (r *bookingRepo) ListByCaregiver(ctx context.Context, caregiverID string, f bookings.ListFilter) ([]bookings.Booking, error) {
	out := r.filter(func(b bookings.Booking) bool {
		return b.CaregiverID == caregiverID && (f.Status == "" || b.Status == f.Status)
	})
	sortByStartDesc(out)
	return out, nil
}

func (r *bookingRepo) ListActiveByCaregiver(ctx context.Context, caregiverID string, from, to time.Time) ([]bookings.Booking, error) {
	out := r.filter(func(b bookings.Booking) bool {
		return b.CaregiverID == caregiverID && b.Status.Active() && overlaps(b.StartAt, b.EndAt, from, to)
	})
	sortByStartAsc(out)
	return out, nil
}

func (r *bookingRepo) ListDueReminders(ctx context.Context, from, to time.Time) ([]bookings.Booking, error) {
	out := r.filter(func(b bookings.Booking) bool {
		return b.Status == bookings.StatusPaid && b.ReminderSentAt == nil &&
			!b.StartAt.Before(from) && b.StartAt.Before(to)
	})
	sortByStartAsc(out)
	return out, nil
}

func (r *bookingRepo) ListStalePending(ctx context.Context, createdBefore time.Time) ([]bookings.Booking, error) {
	out := r.filter(func(b bookings.Booking) bool {
		return b.Status == bookings.StatusPending && b.CreatedAt.Before(createdBefore)
	})
	sortByStartAsc(out)
	return out, nil
}

func (r *bookingRepo) MarkCompleted(ctx context.Context, b bookings.Booking, c bookings.ServiceCompletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[b.ID]
	if !ok {
		return bookings.ErrNotFound
	}
	if cur.Status != bookings.StatusPaid {
		return bookings.ErrBadState
	}
	cur.Status = bookings.StatusCompleted
	cur.UpdatedAt = b.UpdatedAt
	r.byID[b.ID] = cur
	r.completions[b.ID] = c
	return nil
}

func (r *bookingRepo) GetCompletion(ctx context.Context, bookingID string) (bookings.ServiceCompletion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.completions[bookingID]
	if !ok {
		return bookings.ServiceCompletion{}, bookings.ErrCompletionNotFound
	}
	return c, nil
}

func (r *bookingRepo) filter(match func(bookings.Booking) bool) []bookings.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]bookings.Booking, 0)
	for _, b := range r.byID {
		if match(b) {
			out = append(out, cloneBooking(b))
		}
	}
	return out
}

// overlaps para intervalos semiabiertos [aStart, aEnd) y [bStart, bEnd).
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// El slice de mascotas no se comparte con quien llama.
func cloneBooking(b bookings.Booking) bookings.Booking {
	b.PetIDs = append([]string(nil), b.PetIDs...)
	return b
}

func sortByStartAsc(bs []bookings.Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].StartAt.Before(bs[j].StartAt) })
}

func sortByStartDesc(bs []bookings.Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].StartAt.After(bs[j].StartAt) })
}
