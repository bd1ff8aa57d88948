package jwt

import (
	"context"
	"errors"
	"strings"
	"time"

	"tailtribe/internal/ports/auth"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotConfigured = errors.New("jwt secret not configured")
	ErrTokenEmpty    = errors.New("token is empty")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("token invalid")
)

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`

	jwtlib.RegisteredClaims
}

// HMACService emite y verifica tokens de sesión HS256.
// Implementa auth.AuthVerifier y auth.TokenIssuer.
type HMACService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewHMACService(secret string, ttl time.Duration, issuer string) (*HMACService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrNotConfigured
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &HMACService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

func (s *HMACService) Issue(c auth.Claims) (string, error) {
	if strings.TrimSpace(c.UserID) == "" || !c.Role.Valid() {
		return "", ErrTokenInvalid
	}

	now := s.now().UTC()
	tc := tokenClaims{
		Email: c.Email,
		Role:  string(c.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   c.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
		},
	}

	t := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, tc)
	return t.SignedString(s.secret)
}

func (s *HMACService) Verify(_ context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(s.issuer))
	}
	p := jwtlib.NewParser(opts...)

	var tc tokenClaims
	tok, err := p.ParseWithClaims(token, &tc, func(*jwtlib.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return auth.Claims{}, ErrTokenExpired
		}
		return auth.Claims{}, ErrTokenInvalid
	}
	if tok == nil || !tok.Valid {
		return auth.Claims{}, ErrTokenInvalid
	}

	claims := auth.Claims{
		UserID: strings.TrimSpace(tc.Subject),
		Email:  tc.Email,
		Role:   auth.Role(tc.Role),
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return auth.Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
