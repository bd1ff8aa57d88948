package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("slot not found")
	ErrForbidden     = errors.New("forbidden")
	ErrRangeTooLarge = errors.New("date range too large")
)

const (
	MaxCalendarDays  = 62
	maxSlotsPerCall  = 50
	maxSlotDuration  = 31 * 24 * time.Hour
	defaultListRange = 30
)

// BusyLookup devuelve los intervalos ocupados por bookings activos
// (pending, accepted, paid). Lo implementa bookings.
type BusyLookup interface {
	BusyIntervals(ctx context.Context, caregiverID string, from, to time.Time) ([]Interval, error)
}

type Service struct {
	repo Repository
	busy BusyLookup
	loc  *time.Location
	now  func() time.Time
}

func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo: repo,
		loc:  loc,
		now:  time.Now,
	}
}

// SetBusyLookup se llama en el wiring, una vez creado bookings.
func (s *Service) SetBusyLookup(b BusyLookup) { s.busy = b }

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) AddSlots(ctx context.Context, caregiverID string, in []Interval) ([]Slot, error) {
	caregiverID = strings.TrimSpace(caregiverID)
	if caregiverID == "" || len(in) == 0 || len(in) > maxSlotsPerCall {
		return nil, ErrInvalidInput
	}

	now := s.now()
	out := make([]Slot, 0, len(in))
	for _, iv := range in {
		if iv.Empty() || !iv.End.After(now) || iv.End.Sub(iv.Start) > maxSlotDuration {
			return nil, ErrInvalidInput
		}
		out = append(out, Slot{
			ID:          uuid.NewString(),
			CaregiverID: caregiverID,
			StartAt:     iv.Start.UTC(),
			EndAt:       iv.End.UTC(),
			CreatedAt:   now,
		})
	}

	if err := s.repo.CreateMany(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSlots: fechas YYYY-MM-DD opcionales; por defecto hoy + 30 días.
func (s *Service) ListSlots(ctx context.Context, caregiverID, from, to string) ([]Slot, error) {
	start, end, err := s.ParseRange(from, to, defaultListRange)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByCaregiver(ctx, caregiverID, start, end)
}

func (s *Service) DeleteSlot(ctx context.Context, caregiverID, slotID string) error {
	slot, err := s.repo.GetByID(ctx, strings.TrimSpace(slotID))
	if err != nil {
		return err
	}
	if slot.CaregiverID != caregiverID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, slot.ID)
}

// Calendar devuelve un Day por fecha entre from y to (inclusive).
func (s *Service) Calendar(ctx context.Context, caregiverID, from, to string) ([]Day, error) {
	start, end, err := s.ParseRange(from, to, 14)
	if err != nil {
		return nil, err
	}

	slots, busy, err := s.load(ctx, caregiverID, start, end)
	if err != nil {
		return nil, err
	}

	// end es exclusivo: el último día es el anterior.
	return BuildCalendar(slots, busy, start, end.AddDate(0, 0, -1), s.loc), nil
}

// IsFree indica si [start, end) cae entero dentro de tiempo libre.
func (s *Service) IsFree(ctx context.Context, caregiverID string, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, ErrInvalidInput
	}
	slots, busy, err := s.load(ctx, caregiverID, start, end)
	if err != nil {
		return false, err
	}
	return Covers(FreeWithin(slots, busy, start, end), start, end), nil
}

func (s *Service) load(ctx context.Context, caregiverID string, from, to time.Time) ([]Interval, []Interval, error) {
	items, err := s.repo.ListByCaregiver(ctx, caregiverID, from, to)
	if err != nil {
		return nil, nil, err
	}
	slots := make([]Interval, 0, len(items))
	for _, sl := range items {
		slots = append(slots, sl.Interval())
	}

	var busy []Interval
	if s.busy != nil {
		busy, err = s.busy.BusyIntervals(ctx, caregiverID, from, to)
		if err != nil {
			return nil, nil, err
		}
	}
	return slots, busy, nil
}

// ParseRange convierte from/to (YYYY-MM-DD, inclusive) a [start, end) en la
// zona de la app. Sin from usa hoy; sin to usa from + defaultDays - 1.
func (s *Service) ParseRange(from, to string, defaultDays int) (time.Time, time.Time, error) {
	var start time.Time
	if strings.TrimSpace(from) == "" {
		start = startOfDay(s.now(), s.loc)
	} else {
		t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(from), s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidInput
		}
		start = t
	}

	var last time.Time
	if strings.TrimSpace(to) == "" {
		last = start.AddDate(0, 0, defaultDays-1)
	} else {
		t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(to), s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidInput
		}
		last = t
	}

	if last.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidInput
	}
	if last.After(start.AddDate(0, 0, MaxCalendarDays-1)) {
		return time.Time{}, time.Time{}, ErrRangeTooLarge
	}
	return start, last.AddDate(0, 0, 1), nil
}
