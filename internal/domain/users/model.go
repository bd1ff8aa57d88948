package users

import (
	"time"

	"tailtribe/internal/ports/auth"
)

// Country: el marketplace opera en Bélgica y Países Bajos.
// @Enum BE, NL
type Country string

const (
	CountryBE Country = "BE"
	CountryNL Country = "NL"
)

func (c Country) Valid() bool {
	return c == CountryBE || c == CountryNL
}

type User struct {
	ID           string
	Email        string
	PasswordHash string // nunca se serializa
	Name         string
	Role         auth.Role

	Phone      string
	City       string
	PostalCode string
	Country    Country

	TwoFactorEnabled bool
	ReferralCode     string
	GoogleSubject    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GoogleIdentity es lo que devuelve el proveedor después del callback OAuth.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}
