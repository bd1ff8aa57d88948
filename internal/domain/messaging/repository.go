package messaging

import (
	"context"
	"time"
)

type Repository interface {
	// CreateConversation devuelve ErrConversationExists si el par ya existe.
	CreateConversation(ctx context.Context, c Conversation) error
	GetConversation(ctx context.Context, id string) (Conversation, error)
	FindConversation(ctx context.Context, ownerID, caregiverID string) (Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error

	CreateMessage(ctx context.Context, m Message) error
	// ListMessages devuelve los últimos limit mensajes en orden cronológico.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	// MarkRead marca como leídos los mensajes que readerID recibió.
	MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error)
}
