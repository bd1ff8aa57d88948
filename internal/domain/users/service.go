package users

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"tailtribe/internal/platform/logger"
	"tailtribe/internal/ports/auth"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidReferral    = errors.New("unknown referral code")
	ErrTwoFactorDisabled  = errors.New("two-factor authentication unavailable")
)

const (
	minPasswordLen = 8
	// bcrypt ignora lo que pasa de 72 bytes.
	maxPasswordLen = 72
)

var emailRe = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// NormalizeEmail pasa a minúsculas y recorta espacios.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func ValidEmail(s string) bool {
	return emailRe.MatchString(NormalizeEmail(s))
}

// TwoFactor emite y valida códigos de un solo uso (ver paquete twofactor).
type TwoFactor interface {
	Issue(ctx context.Context, userID, email string) (challengeID string, err error)
	Verify(ctx context.Context, challengeID, code string) (userID string, err error)
}

// ReferralRecorder registra que referredID llegó con el código de referrerID.
type ReferralRecorder interface {
	Record(ctx context.Context, referrerID, referredID, code string) error
}

type Service struct {
	repo      Repository
	issuer    auth.TokenIssuer // nil en modo dev: no se emiten tokens
	twoFactor TwoFactor
	referrals ReferralRecorder
	now       func() time.Time
	hashCost  int
}

func NewService(repo Repository, issuer auth.TokenIssuer, twoFactor TwoFactor, referrals ReferralRecorder) *Service {
	return &Service{
		repo:      repo,
		issuer:    issuer,
		twoFactor: twoFactor,
		referrals: referrals,
		now:       time.Now,
		hashCost:  bcrypt.DefaultCost,
	}
}

// SetReferrals se llama en el wiring: referrals depende de notificaciones,
// que a su vez necesita este servicio.
func (s *Service) SetReferrals(r ReferralRecorder) { s.referrals = r }

type RegisterInput struct {
	Email        string
	Password     string
	Name         string
	Role         auth.Role
	Country      Country
	City         string
	PostalCode   string
	Phone        string
	ReferralCode string
}

// Session es el resultado de un login completo.
type Session struct {
	User  User
	Token string
}

// LoginResult: o sesión, o challenge de 2FA pendiente.
type LoginResult struct {
	Session
	TwoFactorRequired bool
	ChallengeID       string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := NormalizeEmail(in.Email)
	if !emailRe.MatchString(email) {
		return Session{}, ErrInvalidInput
	}
	if len(in.Password) < minPasswordLen || len(in.Password) > maxPasswordLen {
		return Session{}, ErrInvalidInput
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Session{}, ErrInvalidInput
	}

	role := in.Role
	if role == "" {
		role = auth.RoleOwner
	}
	// admin no es auto-asignable
	if role != auth.RoleOwner && role != auth.RoleCaregiver {
		return Session{}, ErrInvalidInput
	}

	country := Country(strings.ToUpper(strings.TrimSpace(string(in.Country))))
	if country == "" {
		country = CountryBE
	}
	if !country.Valid() {
		return Session{}, ErrInvalidInput
	}

	var referrer User
	code := strings.ToUpper(strings.TrimSpace(in.ReferralCode))
	if code != "" {
		r, err := s.repo.GetByReferralCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Session{}, ErrInvalidReferral
			}
			return Session{}, err
		}
		referrer = r
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return Session{}, err
	}

	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		Phone:        strings.TrimSpace(in.Phone),
		City:         strings.TrimSpace(in.City),
		PostalCode:   strings.TrimSpace(in.PostalCode),
		Country:      country,
		ReferralCode: newReferralCode(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return Session{}, err
	}

	// La cuenta ya existe: un fallo al registrar el referido no debe
	// dejar al usuario sin sesión (reintentar daría 409).
	if referrer.ID != "" && s.referrals != nil {
		if err := s.referrals.Record(ctx, referrer.ID, u.ID, code); err != nil {
			logger.FromContext(ctx).Error("referral record failed", map[string]any{
				"referrer_id": referrer.ID,
				"user_id":     u.ID,
				"error":       err,
			})
		}
	}

	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	// Cuentas creadas con Google no tienen password.
	if u.PasswordHash == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	return s.finishLogin(ctx, u)
}

// finishLogin emite la sesión, o un challenge si el usuario tiene 2FA.
// Vale para password y para Google.
func (s *Service) finishLogin(ctx context.Context, u User) (LoginResult, error) {
	if u.TwoFactorEnabled {
		if s.twoFactor == nil {
			return LoginResult{}, ErrTwoFactorDisabled
		}
		challengeID, err := s.twoFactor.Issue(ctx, u.ID, u.Email)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{TwoFactorRequired: true, ChallengeID: challengeID}, nil
	}

	sess, err := s.session(u)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Session: sess}, nil
}

func (s *Service) VerifyTwoFactor(ctx context.Context, challengeID, code string) (Session, error) {
	if s.twoFactor == nil {
		return Session{}, ErrTwoFactorDisabled
	}
	userID, err := s.twoFactor.Verify(ctx, strings.TrimSpace(challengeID), strings.TrimSpace(code))
	if err != nil {
		return Session{}, err
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.session(u)
}

// GoogleLogin busca por subject, después por email (vincula la cuenta),
// y si no existe crea un owner sin password. Con 2FA activo devuelve un challenge.
func (s *Service) GoogleLogin(ctx context.Context, id GoogleIdentity) (LoginResult, error) {
	subject := strings.TrimSpace(id.Subject)
	email := NormalizeEmail(id.Email)
	if subject == "" || !emailRe.MatchString(email) {
		return LoginResult{}, ErrInvalidInput
	}

	u, err := s.repo.GetByGoogleSubject(ctx, subject)
	if err == nil {
		return s.finishLogin(ctx, u)
	}
	if !errors.Is(err, ErrNotFound) {
		return LoginResult{}, err
	}

	now := s.now()
	u, err = s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		u.GoogleSubject = subject
		u.UpdatedAt = now
		if err := s.repo.Update(ctx, u); err != nil {
			return LoginResult{}, err
		}
	case errors.Is(err, ErrNotFound):
		name := strings.TrimSpace(id.Name)
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		u = User{
			ID:            uuid.NewString(),
			Email:         email,
			Name:          name,
			Role:          auth.RoleOwner,
			Country:       CountryBE,
			ReferralCode:  newReferralCode(),
			GoogleSubject: subject,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Create(ctx, u); err != nil {
			return LoginResult{}, err
		}
	default:
		return LoginResult{}, err
	}

	return s.finishLogin(ctx, u)
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

// EmailOf lo usan notificaciones y bookings sin depender del modelo completo.
func (s *Service) EmailOf(ctx context.Context, userID string) (string, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

// ReferralCodeOf devuelve el código que el usuario comparte para invitar.
func (s *Service) ReferralCodeOf(ctx context.Context, userID string) (string, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.ReferralCode, nil
}

// RoleOf devuelve el rol de un usuario (conversaciones owner <-> caregiver).
func (s *Service) RoleOf(ctx context.Context, userID string) (auth.Role, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

type UpdateProfileInput struct {
	// nil = no tocar
	Name       *string
	Phone      *string
	City       *string
	PostalCode *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}

	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		if v == "" {
			return User{}, ErrInvalidInput
		}
		u.Name = v
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.City != nil {
		u.City = strings.TrimSpace(*in.City)
	}
	if in.PostalCode != nil {
		u.PostalCode = strings.TrimSpace(*in.PostalCode)
	}

	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) SetTwoFactor(ctx context.Context, userID string, enabled bool) (User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if enabled && s.twoFactor == nil {
		return User{}, ErrTwoFactorDisabled
	}
	// Idempotente
	if u.TwoFactorEnabled == enabled {
		return u, nil
	}
	u.TwoFactorEnabled = enabled
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) session(u User) (Session, error) {
	if s.issuer == nil {
		return Session{User: u}, nil
	}
	tok, err := s.issuer.Issue(auth.Claims{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: tok}, nil
}

// newReferralCode: 8 caracteres alfanuméricos en mayúscula.
func newReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}
