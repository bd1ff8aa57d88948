package memory

import (
	"context"
	"sync"
	"time"

	"tailtribe/internal/domain/twofactor"
)

type challengeRepo struct {
	mu   sync.Mutex
	byID map[string]twofactor.Challenge
}

func NewChallengeRepo() twofactor.Repository {
	return &challengeRepo{byID: make(map[string]twofactor.Challenge)}
}

func (r *challengeRepo) Create(ctx context.Context, c twofactor.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	return nil
}

func (r *challengeRepo) GetByID(ctx context.Context, id string) (twofactor.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return twofactor.Challenge{}, twofactor.ErrNotFound
	}
	return c, nil
}

func (r *challengeRepo) Update(ctx context.Context, c twofactor.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; !ok {
		return twofactor.ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *challengeRepo) DeleteStale(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, c := range r.byID {
		if c.Consumed() || !c.ExpiresAt.After(now) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}
