package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tailtribe/internal/domain/notifications"
)

type notificationRepo struct {
	mu   sync.RWMutex
	byID map[string]notifications.Notification
}

func NewNotificationRepo() notifications.Repository {
	return &notificationRepo{byID: make(map[string]notifications.Notification)}
}

func (r *notificationRepo) Create(ctx context.Context, n notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[n.ID] = n
	return nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (notifications.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.byID[id]
	if !ok {
		return notifications.Notification{}, notifications.ErrNotFound
	}
	return n, nil
}

// ListByUser: más recientes primero.
func (r *notificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notifications.Notification, error) {
	r.mu.RLock()
	out := make([]notifications.Notification, 0)
	for _, n := range r.byID {
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, n)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok {
		return notifications.ErrNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
		r.byID[id] = n
	}
	return nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, n := range r.byID {
		if n.UserID == userID && n.ReadAt == nil {
			readAt := at
			n.ReadAt = &readAt
			r.byID[id] = n
			count++
		}
	}
	return count, nil
}
