package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tailtribe/internal/domain/messaging"
)

type messagingRepo struct {
	mu            sync.RWMutex
	conversations map[string]messaging.Conversation
	messages      map[string][]messaging.Message // por conversación, en orden de llegada
}

func NewMessagingRepo() messaging.Repository {
	return &messagingRepo{
		conversations: make(map[string]messaging.Conversation),
		messages:      make(map[string][]messaging.Message),
	}
}

func (r *messagingRepo) CreateConversation(ctx context.Context, c messaging.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.conversations {
		if existing.OwnerID == c.OwnerID && existing.CaregiverID == c.CaregiverID {
			return messaging.ErrConversationExists
		}
	}
	r.conversations[c.ID] = c
	return nil
}

func (r *messagingRepo) GetConversation(ctx context.Context, id string) (messaging.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return messaging.Conversation{}, messaging.ErrNotFound
	}
	return c, nil
}

func (r *messagingRepo) FindConversation(ctx context.Context, ownerID, caregiverID string) (messaging.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.conversations {
		if c.OwnerID == ownerID && c.CaregiverID == caregiverID {
			return c, nil
		}
	}
	return messaging.Conversation{}, messaging.ErrNotFound
}

// ListConversations: la de actividad más reciente primero.
func (r *messagingRepo) ListConversations(ctx context.Context, userID string) ([]messaging.Conversation, error) {
	r.mu.RLock()
	out := make([]messaging.Conversation, 0)
	for _, c := range r.conversations {
		if c.IsParticipant(userID) {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return lastActivity(out[i]).After(lastActivity(out[j])) })
	return out, nil
}

func (r *messagingRepo) TouchConversation(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return messaging.ErrNotFound
	}
	c.LastMessageAt = &at
	r.conversations[id] = c
	return nil
}

func (r *messagingRepo) CreateMessage(ctx context.Context, m messaging.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[m.ConversationID]; !ok {
		return messaging.ErrNotFound
	}
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], m)
	return nil
}

func (r *messagingRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]messaging.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[conversationID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	out := make([]messaging.Message, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

func (r *messagingRepo) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.messages[conversationID]
	count := 0
	for i := range msgs {
		if msgs[i].SenderID != readerID && msgs[i].ReadAt == nil {
			readAt := at
			msgs[i].ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

func lastActivity(c messaging.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}
