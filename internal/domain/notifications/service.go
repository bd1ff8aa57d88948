package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"tailtribe/internal/platform/logger"
	"tailtribe/internal/platform/mailer"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("notification not found")
	ErrForbidden    = errors.New("forbidden")
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	// EventType del push por websocket.
	EventType = "notification"
)

// Pusher envía un evento en tiempo real a las conexiones de un usuario.
type Pusher interface {
	Push(userID, eventType string, data any)
}

// EmailLookup resuelve el email de un usuario (users.Service).
type EmailLookup interface {
	EmailOf(ctx context.Context, userID string) (string, error)
}

type Service struct {
	repo      Repository
	pusher    Pusher
	mail      mailer.Mailer
	emails    EmailLookup
	publicURL string
	log       logger.Logger
	now       func() time.Time
}

type Options struct {
	Pusher    Pusher
	Mailer    mailer.Mailer
	Emails    EmailLookup
	PublicURL string
	Logger    logger.Logger
}

func NewService(repo Repository, opts Options) *Service {
	if opts.Mailer == nil {
		opts.Mailer = mailer.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Service{
		repo:      repo,
		pusher:    opts.Pusher,
		mail:      opts.Mailer,
		emails:    opts.Emails,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		log:       opts.Logger,
		now:       time.Now,
	}
}

// Notify guarda la notificación, la empuja por websocket y manda email en segundo plano.
// Fallos de push/email no hacen fallar la operación.
func (s *Service) Notify(ctx context.Context, in Input) (Notification, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Title = strings.TrimSpace(in.Title)
	if in.UserID == "" || in.Kind == "" || in.Title == "" {
		return Notification{}, ErrInvalidInput
	}

	n := Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Kind:      in.Kind,
		Title:     in.Title,
		Body:      strings.TrimSpace(in.Body),
		Link:      strings.TrimSpace(in.Link),
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return Notification{}, err
	}

	if s.pusher != nil {
		s.pusher.Push(n.UserID, EventType, ToResponse(n))
	}

	if !in.SkipEmail && s.mail.Configured() && s.emails != nil {
		s.email(ctx, n)
	}

	return n, nil
}

func (s *Service) email(ctx context.Context, n Notification) {
	to, err := s.emails.EmailOf(ctx, n.UserID)
	if err != nil || to == "" {
		s.log.Warn("notification email skipped", map[string]any{"user_id": n.UserID, "kind": string(n.Kind), "error": err})
		return
	}

	text := n.Body
	if n.Link != "" {
		text += "\n\n" + s.publicURL + n.Link
	}
	s.mail.SendAsync(mailer.Message{
		To:      to,
		Subject: "TailTribe: " + n.Title,
		Text:    text,
	})
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit)
}

// MarkRead es idempotente.
func (s *Service) MarkRead(ctx context.Context, id, userID string) (Notification, error) {
	n, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != userID {
		return Notification{}, ErrForbidden
	}
	if n.ReadAt != nil {
		return n, nil
	}

	now := s.now()
	if err := s.repo.MarkRead(ctx, n.ID, now); err != nil {
		return Notification{}, err
	}
	n.ReadAt = &now
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}
