package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tailtribe/internal/domain/twofactor"
)

type ChallengesRepo struct {
	db *sql.DB
}

func NewChallengesRepo(db *sql.DB) *ChallengesRepo {
	return &ChallengesRepo{db: db}
}

func (r *ChallengesRepo) Create(ctx context.Context, c twofactor.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_challenges (id, user_id, code_hash, expires_at, attempts, consumed_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.UserID, c.CodeHash, c.ExpiresAt, c.Attempts, nullTime(c.ConsumedAt), c.CreatedAt)
	return err
}

func (r *ChallengesRepo) GetByID(ctx context.Context, id string) (twofactor.Challenge, error) {
	var c twofactor.Challenge
	var consumed sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, code_hash, expires_at, attempts, consumed_at, created_at
		FROM login_challenges
		WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.CodeHash, &c.ExpiresAt, &c.Attempts, &consumed, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return twofactor.Challenge{}, twofactor.ErrNotFound
		}
		return twofactor.Challenge{}, err
	}
	c.ConsumedAt = timePtr(consumed)
	return c, nil
}

func (r *ChallengesRepo) Update(ctx context.Context, c twofactor.Challenge) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE login_challenges SET attempts = $2, consumed_at = $3 WHERE id = $1
	`, c.ID, c.Attempts, nullTime(c.ConsumedAt))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return twofactor.ErrNotFound
	}
	return nil
}

func (r *ChallengesRepo) DeleteStale(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM login_challenges WHERE expires_at <= $1 OR consumed_at IS NOT NULL
	`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
