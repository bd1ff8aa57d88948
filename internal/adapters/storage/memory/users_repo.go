package memory

import (
	"context"
	"strings"
	"sync"

	"tailtribe/internal/domain/users"
)

type userRepo struct {
	mu   sync.RWMutex
	byID map[string]users.User
}

func NewUserRepo() users.Repository {
	return &userRepo{byID: make(map[string]users.User)}
}

func (r *userRepo) Create(ctx context.Context, u users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return users.ErrEmailTaken
		}
	}
	r.byID[u.ID] = u
	return nil
}

func (r *userRepo) Update(ctx context.Context, u users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; !ok {
		return users.ErrNotFound
	}
	for id, existing := range r.byID {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return users.ErrEmailTaken
		}
	}
	r.byID[u.ID] = u
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (users.User, error) {
	return r.find(func(u users.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *userRepo) GetByGoogleSubject(ctx context.Context, subject string) (users.User, error) {
	if subject == "" {
		return users.User{}, users.ErrNotFound
	}
	return r.find(func(u users.User) bool { return u.GoogleSubject == subject })
}

func (r *userRepo) GetByReferralCode(ctx context.Context, code string) (users.User, error) {
	if code == "" {
		return users.User{}, users.ErrNotFound
	}
	return r.find(func(u users.User) bool { return strings.EqualFold(u.ReferralCode, code) })
}

func (r *userRepo) find(match func(users.User) bool) (users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if match(u) {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}
