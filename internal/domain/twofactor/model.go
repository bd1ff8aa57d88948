package twofactor

import "time"

// Challenge es un código de login de un solo uso enviado por email.
type Challenge struct {
	ID         string
	UserID     string
	CodeHash   string
	ExpiresAt  time.Time
	Attempts   int
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

func (c Challenge) Consumed() bool { return c.ConsumedAt != nil }
