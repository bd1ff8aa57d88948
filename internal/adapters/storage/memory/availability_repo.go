package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tailtribe/internal/domain/availability"
)

type slotRepo struct {
	mu   sync.RWMutex
	byID map[string]availability.Slot
}

func NewSlotRepo() availability.Repository {
	return &slotRepo{byID: make(map[string]availability.Slot)}
}

func (r *slotRepo) CreateMany(ctx context.Context, slots []availability.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range slots {
		if _, exists := r.byID[s.ID]; exists {
			return errors.New("slot already exists")
		}
	}
	for _, s := range slots {
		r.byID[s.ID] = s
	}
	return nil
}

func (r *slotRepo) GetByID(ctx context.Context, id string) (availability.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return availability.Slot{}, availability.ErrNotFound
	}
	return s, nil
}

func (r *slotRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return availability.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *slotRepo) ListByCaregiver(ctx context.Context, caregiverID string, from, to time.Time) ([]availability.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]availability.Slot, 0)
	for _, s := range r.byID {
		if s.CaregiverID == caregiverID && s.StartAt.Before(to) && s.EndAt.After(from) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}
