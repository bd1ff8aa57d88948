package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tailtribe/internal/domain/notifications"
)

type NotificationsRepo struct {
	db *sql.DB
}

func NewNotificationsRepo(db *sql.DB) *NotificationsRepo {
	return &NotificationsRepo{db: db}
}

func (r *NotificationsRepo) Create(ctx context.Context, n notifications.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, link, read_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, n.ID, n.UserID, string(n.Kind), n.Title, n.Body, n.Link, nullTime(n.ReadAt), n.CreatedAt)
	return err
}

const notificationColumns = `id, user_id, kind, title, body, link, read_at, created_at`

func (r *NotificationsRepo) GetByID(ctx context.Context, id string) (notifications.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return notifications.Notification{}, notifications.ErrNotFound
	}
	return n, err
}

func (r *NotificationsRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notifications.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]notifications.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead no pisa un read_at previo.
func (r *NotificationsRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notifications.ErrNotFound
	}
	return nil
}

func (r *NotificationsRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL`, userID, at)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanNotification(row rowScanner) (notifications.Notification, error) {
	var n notifications.Notification
	var kind string
	var readAt sql.NullTime
	if err := row.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &n.Link, &readAt, &n.CreatedAt); err != nil {
		return notifications.Notification{}, err
	}
	n.Kind = notifications.Kind(kind)
	n.ReadAt = timePtr(readAt)
	return n, nil
}
