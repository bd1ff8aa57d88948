package messaging

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"tailtribe/internal/domain/notifications"
	"tailtribe/internal/domain/users"
	"tailtribe/internal/platform/logger"
	"tailtribe/internal/ports/auth"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("conversation not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConversationExists = errors.New("conversation already exists")
	ErrInvalidParticipant = errors.New("conversations are between an owner and a caregiver")
)

const (
	MaxBodyLen = 2000

	DefaultMessageLimit = 50
	MaxMessageLimit     = 200

	// EventMessage es el tipo del push por websocket.
	EventMessage = "message"
)

type RoleLookup interface {
	RoleOf(ctx context.Context, userID string) (auth.Role, error)
}

type Pusher interface {
	Push(userID, eventType string, data any)
}

type Notifier interface {
	Notify(ctx context.Context, in notifications.Input) (notifications.Notification, error)
}

type Options struct {
	Roles    RoleLookup
	Pusher   Pusher
	Notifier Notifier
	Logger   logger.Logger
}

type Service struct {
	repo     Repository
	roles    RoleLookup
	pusher   Pusher
	notifier Notifier
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Service{
		repo:     repo,
		roles:    opts.Roles,
		pusher:   opts.Pusher,
		notifier: opts.Notifier,
		log:      opts.Logger,
		now:      time.Now,
	}
}

// Start busca o crea la conversación entre userID y participantID.
func (s *Service) Start(ctx context.Context, userID, participantID string) (Conversation, error) {
	userID = strings.TrimSpace(userID)
	participantID = strings.TrimSpace(participantID)
	if userID == "" || participantID == "" || userID == participantID {
		return Conversation{}, ErrInvalidInput
	}

	ownerID, caregiverID, err := s.pair(ctx, userID, participantID)
	if err != nil {
		return Conversation{}, err
	}

	if c, err := s.repo.FindConversation(ctx, ownerID, caregiverID); err == nil {
		return c, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Conversation{}, err
	}

	c := Conversation{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		CaregiverID: caregiverID,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateConversation(ctx, c); err != nil {
		// carrera: otro request la creó primero
		if errors.Is(err, ErrConversationExists) {
			return s.repo.FindConversation(ctx, ownerID, caregiverID)
		}
		return Conversation{}, err
	}
	return c, nil
}

// pair ordena (owner, caregiver) según los roles de cada uno.
func (s *Service) pair(ctx context.Context, a, b string) (string, string, error) {
	if s.roles == nil {
		return "", "", ErrInvalidParticipant
	}
	ra, err := s.roles.RoleOf(ctx, a)
	if err != nil {
		return "", "", err
	}
	rb, err := s.roles.RoleOf(ctx, b)
	if errors.Is(err, users.ErrNotFound) {
		return "", "", ErrInvalidParticipant
	}
	if err != nil {
		return "", "", err
	}

	switch {
	case ra == auth.RoleOwner && rb == auth.RoleCaregiver:
		return a, b, nil
	case ra == auth.RoleCaregiver && rb == auth.RoleOwner:
		return b, a, nil
	default:
		return "", "", ErrInvalidParticipant
	}
}

func (s *Service) List(ctx context.Context, userID string) ([]Conversation, error) {
	return s.repo.ListConversations(ctx, userID)
}

func (s *Service) Messages(ctx context.Context, conversationID, userID string, limit int) ([]Message, error) {
	c, err := s.conversationFor(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}
	return s.repo.ListMessages(ctx, c.ID, limit)
}

// Send filtra datos de contacto, guarda el mensaje y avisa al otro participante.
func (s *Service) Send(ctx context.Context, conversationID, senderID, body string) (Message, error) {
	c, err := s.conversationFor(ctx, conversationID, senderID)
	if err != nil {
		return Message{}, err
	}

	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > MaxBodyLen {
		return Message{}, ErrInvalidInput
	}
	filtered, redacted := FilterContent(body)

	now := s.now()
	m := Message{
		ID:             uuid.NewString(),
		ConversationID: c.ID,
		SenderID:       senderID,
		Body:           filtered,
		Redacted:       redacted,
		CreatedAt:      now,
	}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		return Message{}, err
	}
	if err := s.repo.TouchConversation(ctx, c.ID, now); err != nil {
		s.log.Warn("touch conversation failed", map[string]any{"conversation_id": c.ID, "error": err})
	}

	recipient := c.Other(senderID)
	if s.pusher != nil {
		payload := ToMessageResponse(m)
		s.pusher.Push(recipient, EventMessage, payload)
		// otras pestañas/dispositivos del emisor
		s.pusher.Push(senderID, EventMessage, payload)
	}

	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, notifications.Input{
			UserID:    recipient,
			Kind:      notifications.KindNewMessage,
			Title:     "New message",
			Body:      preview(filtered),
			Link:      "/conversations/" + c.ID,
			SkipEmail: true,
		}); err != nil {
			s.log.Warn("message notify failed", map[string]any{"conversation_id": c.ID, "error": err})
		}
	}

	if redacted {
		s.log.Info("message redacted", map[string]any{"conversation_id": c.ID, "sender_id": senderID})
	}
	return m, nil
}

func (s *Service) MarkRead(ctx context.Context, conversationID, userID string) (int, error) {
	c, err := s.conversationFor(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, c.ID, userID, s.now())
}

func (s *Service) conversationFor(ctx context.Context, id, userID string) (Conversation, error) {
	c, err := s.repo.GetConversation(ctx, strings.TrimSpace(id))
	if err != nil {
		return Conversation{}, err
	}
	if !c.IsParticipant(userID) {
		return Conversation{}, ErrForbidden
	}
	return c, nil
}

func preview(body string) string {
	const max = 120
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	r := []rune(body)
	return string(r[:max]) + "…"
}
