package pets

import "context"

type Repository interface {
	Create(ctx context.Context, p Pet) error
	// CreateBatch inserta todas o ninguna.
	CreateBatch(ctx context.Context, ps []Pet) error
	Update(ctx context.Context, p Pet) error
	Delete(ctx context.Context, id string) error

	GetByID(ctx context.Context, id string) (Pet, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Pet, error)
}
