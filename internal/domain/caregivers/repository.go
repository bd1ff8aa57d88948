package caregivers

import "context"

type Repository interface {
	Upsert(ctx context.Context, p Profile) error
	GetByUserID(ctx context.Context, userID string) (Profile, error)
	Search(ctx context.Context, f SearchFilter) ([]Profile, error)
}
