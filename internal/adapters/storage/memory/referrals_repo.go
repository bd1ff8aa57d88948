package memory

import (
	"context"
	"sort"
	"sync"

	"tailtribe/internal/domain/referrals"
)

type referralRepo struct {
	mu         sync.RWMutex
	byReferred map[string]referrals.Referral
}

func NewReferralRepo() referrals.Repository {
	return &referralRepo{byReferred: make(map[string]referrals.Referral)}
}

func (r *referralRepo) Create(ctx context.Context, ref referrals.Referral) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byReferred[ref.ReferredID]; exists {
		return referrals.ErrAlreadyReferred
	}
	r.byReferred[ref.ReferredID] = ref
	return nil
}

func (r *referralRepo) Update(ctx context.Context, ref referrals.Referral) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byReferred[ref.ReferredID]
	if !ok || current.ID != ref.ID {
		return referrals.ErrNotFound
	}
	r.byReferred[ref.ReferredID] = ref
	return nil
}

func (r *referralRepo) GetByReferred(ctx context.Context, referredID string) (referrals.Referral, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.byReferred[referredID]
	if !ok {
		return referrals.Referral{}, referrals.ErrNotFound
	}
	return ref, nil
}

func (r *referralRepo) ListByReferrer(ctx context.Context, referrerID string) ([]referrals.Referral, error) {
	r.mu.RLock()
	out := make([]referrals.Referral, 0)
	for _, ref := range r.byReferred {
		if ref.ReferrerID == referrerID {
			out = append(out, ref)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
