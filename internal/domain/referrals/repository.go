package referrals

import "context"

type Repository interface {
	// Create devuelve ErrAlreadyReferred si ReferredID ya tiene referral.
	Create(ctx context.Context, r Referral) error
	Update(ctx context.Context, r Referral) error
	GetByReferred(ctx context.Context, referredID string) (Referral, error)
	ListByReferrer(ctx context.Context, referrerID string) ([]Referral, error)
}
