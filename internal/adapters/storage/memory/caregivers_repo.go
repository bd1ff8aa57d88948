package memory

import (
	"context"
	"sort"
	"sync"

	"tailtribe/internal/domain/caregivers"
)

type caregiverRepo struct {
	mu       sync.RWMutex
	byUserID map[string]caregivers.Profile
}

func NewCaregiverRepo() caregivers.Repository {
	return &caregiverRepo{byUserID: make(map[string]caregivers.Profile)}
}

func (r *caregiverRepo) Upsert(ctx context.Context, p caregivers.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUserID[p.UserID] = p
	return nil
}

func (r *caregiverRepo) GetByUserID(ctx context.Context, userID string) (caregivers.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byUserID[userID]
	if !ok {
		return caregivers.Profile{}, caregivers.ErrNotFound
	}
	return p, nil
}

// Search: verificados primero, después por antigüedad.
func (r *caregiverRepo) Search(ctx context.Context, f caregivers.SearchFilter) ([]caregivers.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]caregivers.Profile, 0)
	for _, p := range r.byUserID {
		if caregivers.MatchesFilter(p, f) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Verified != out[j].Verified {
			return out[i].Verified
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
