package twofactor

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"tailtribe/internal/platform/mailer"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("challenge not found")
	ErrInvalidCode     = errors.New("invalid code")
	ErrExpired         = errors.New("code expired")
	ErrTooManyAttempts = errors.New("too many attempts")
)

const (
	CodeTTL     = 10 * time.Minute
	MaxAttempts = 5
)

type Service struct {
	repo    Repository
	mail    mailer.Mailer
	now     func() time.Time
	genCode func() (string, error)
}

func NewService(repo Repository, mail mailer.Mailer) *Service {
	if mail == nil {
		mail = mailer.Noop{}
	}
	return &Service{
		repo:    repo,
		mail:    mail,
		now:     time.Now,
		genCode: randomCode,
	}
}

// Issue genera un código de 6 dígitos, guarda su hash y lo envía por email.
func (s *Service) Issue(ctx context.Context, userID, email string) (string, error) {
	userID = strings.TrimSpace(userID)
	email = strings.TrimSpace(email)
	if userID == "" || email == "" {
		return "", ErrInvalidInput
	}

	code, err := s.genCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	now := s.now()
	c := Challenge{
		ID:        uuid.NewString(),
		UserID:    userID,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return "", err
	}

	s.mail.SendAsync(mailer.Message{
		To:      email,
		Subject: "Je TailTribe inlogcode",
		Text: fmt.Sprintf("Je code is %s. Hij is %d minuten geldig.\n\nVotre code est %s. Il est valable %d minutes.",
			code, int(CodeTTL.Minutes()), code, int(CodeTTL.Minutes())),
	})

	return c.ID, nil
}

// Verify consume el challenge si el código es correcto y devuelve el userID.
func (s *Service) Verify(ctx context.Context, challengeID, code string) (string, error) {
	if challengeID == "" || code == "" {
		return "", ErrInvalidCode
	}

	c, err := s.repo.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidCode
		}
		return "", err
	}
	if c.Consumed() {
		return "", ErrInvalidCode
	}

	now := s.now()
	if !now.Before(c.ExpiresAt) {
		return "", ErrExpired
	}
	if c.Attempts >= MaxAttempts {
		return "", ErrTooManyAttempts
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)); err != nil {
		c.Attempts++
		if err := s.repo.Update(ctx, c); err != nil {
			return "", err
		}
		return "", ErrInvalidCode
	}

	c.ConsumedAt = &now
	if err := s.repo.Update(ctx, c); err != nil {
		return "", err
	}
	return c.UserID, nil
}

// PurgeExpired lo corre el job purge-challenges.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	return s.repo.DeleteStale(ctx, s.now())
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
