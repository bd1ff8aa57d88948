package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"tailtribe/internal/domain/users"
	"tailtribe/internal/ports/auth"
)

type UsersRepo struct {
	db *sql.DB
}

func NewUsersRepo(db *sql.DB) *UsersRepo {
	return &UsersRepo{db: db}
}

const userColumns = `
	id, email, password_hash, name, role,
	phone, city, postal_code, country,
	two_factor_enabled, referral_code, google_subject,
	created_at, updated_at`

func (r *UsersRepo) Create(ctx context.Context, u users.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role),
		u.Phone, u.City, u.PostalCode, string(u.Country),
		u.TwoFactorEnabled, u.ReferralCode, nullString(u.GoogleSubject),
		u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err, "users_email_uq") {
		return users.ErrEmailTaken
	}
	return err
}

func (r *UsersRepo) Update(ctx context.Context, u users.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET
			email = $2,
			password_hash = $3,
			name = $4,
			role = $5,
			phone = $6,
			city = $7,
			postal_code = $8,
			country = $9,
			two_factor_enabled = $10,
			google_subject = $11,
			updated_at = $12
		WHERE id = $1
	`,
		u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role),
		u.Phone, u.City, u.PostalCode, string(u.Country),
		u.TwoFactorEnabled, nullString(u.GoogleSubject), u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_uq") {
			return users.ErrEmailTaken
		}
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (users.User, error) {
	return r.getOne(ctx, `WHERE id = $1`, strings.TrimSpace(id))
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (users.User, error) {
	return r.getOne(ctx, `WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (r *UsersRepo) GetByGoogleSubject(ctx context.Context, subject string) (users.User, error) {
	if strings.TrimSpace(subject) == "" {
		return users.User{}, users.ErrNotFound
	}
	return r.getOne(ctx, `WHERE google_subject = $1`, subject)
}

func (r *UsersRepo) GetByReferralCode(ctx context.Context, code string) (users.User, error) {
	if strings.TrimSpace(code) == "" {
		return users.User{}, users.ErrNotFound
	}
	return r.getOne(ctx, `WHERE upper(referral_code) = upper($1)`, code)
}

func (r *UsersRepo) getOne(ctx context.Context, where string, arg any) (users.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, arg)

	var u users.User
	var role, country string
	var google sql.NullString
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role,
		&u.Phone, &u.City, &u.PostalCode, &country,
		&u.TwoFactorEnabled, &u.ReferralCode, &google,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, err
	}
	u.Role = auth.Role(role)
	u.Country = users.Country(country)
	u.GoogleSubject = google.String
	return u, nil
}
