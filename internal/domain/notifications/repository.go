package notifications

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, n Notification) error
	GetByID(ctx context.Context, id string) (Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)

	MarkRead(ctx context.Context, id string, at time.Time) error
	// MarkAllRead devuelve cuántas se marcaron.
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
}
