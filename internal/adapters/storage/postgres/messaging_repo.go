package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tailtribe/internal/domain/messaging"
)

type MessagingRepo struct {
	db *sql.DB
}

func NewMessagingRepo(db *sql.DB) *MessagingRepo {
	return &MessagingRepo{db: db}
}

const conversationColumns = `id, owner_id, caregiver_id, created_at, last_message_at`

func (r *MessagingRepo) CreateConversation(ctx context.Context, c messaging.Conversation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`) VALUES ($1,$2,$3,$4,$5)
	`, c.ID, c.OwnerID, c.CaregiverID, c.CreatedAt, nullTime(c.LastMessageAt))
	if isUniqueViolation(err, "") {
		return messaging.ErrConversationExists
	}
	return err
}

func (r *MessagingRepo) GetConversation(ctx context.Context, id string) (messaging.Conversation, error) {
	return r.getConversation(ctx, `WHERE id = $1`, id)
}

func (r *MessagingRepo) FindConversation(ctx context.Context, ownerID, caregiverID string) (messaging.Conversation, error) {
	return r.getConversation(ctx, `WHERE owner_id = $1 AND caregiver_id = $2`, ownerID, caregiverID)
}

func (r *MessagingRepo) getConversation(ctx context.Context, where string, args ...any) (messaging.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return messaging.Conversation{}, messaging.ErrNotFound
	}
	return c, err
}

func (r *MessagingRepo) ListConversations(ctx context.Context, userID string) ([]messaging.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE owner_id = $1 OR caregiver_id = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]messaging.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *MessagingRepo) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return messaging.ErrNotFound
	}
	return nil
}

func (r *MessagingRepo) CreateMessage(ctx context.Context, m messaging.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, redacted, created_at, read_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, m.ID, m.ConversationID, m.SenderID, m.Body, m.Redacted, m.CreatedAt, nullTime(m.ReadAt))
	return err
}

// ListMessages toma los últimos limit y los devuelve del más viejo al más nuevo.
func (r *MessagingRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]messaging.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, body, redacted, created_at, read_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) last
		ORDER BY created_at ASC, id ASC
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]messaging.Message, 0)
	for rows.Next() {
		var m messaging.Message
		var readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.Redacted, &m.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		m.ReadAt = timePtr(readAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MessagingRepo) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read_at = $3
		WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL
	`, conversationID, readerID, at)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanConversation(row rowScanner) (messaging.Conversation, error) {
	var c messaging.Conversation
	var last sql.NullTime
	if err := row.Scan(&c.ID, &c.OwnerID, &c.CaregiverID, &c.CreatedAt, &last); err != nil {
		return messaging.Conversation{}, err
	}
	c.LastMessageAt = timePtr(last)
	return c, nil
}
