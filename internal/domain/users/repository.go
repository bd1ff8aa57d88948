package users

import "context"

type Repository interface {
	// Create devuelve ErrEmailTaken si el email ya existe.
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error

	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByGoogleSubject(ctx context.Context, subject string) (User, error)
	GetByReferralCode(ctx context.Context, code string) (User, error)
}
