package postgres

import (
	"context"
	"database/sql"
	"errors"

	"tailtribe/internal/domain/referrals"
)

type ReferralsRepo struct {
	db *sql.DB
}

func NewReferralsRepo(db *sql.DB) *ReferralsRepo {
	return &ReferralsRepo{db: db}
}

const referralColumns = `id, referrer_id, referred_id, code, status, reward_cents, created_at, rewarded_at`

func (r *ReferralsRepo) Create(ctx context.Context, ref referrals.Referral) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referrals (`+referralColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, ref.ID, ref.ReferrerID, ref.ReferredID, ref.Code, string(ref.Status), ref.RewardCents, ref.CreatedAt, nullTime(ref.RewardedAt))
	if isUniqueViolation(err, "") {
		return referrals.ErrAlreadyReferred
	}
	return err
}

func (r *ReferralsRepo) Update(ctx context.Context, ref referrals.Referral) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE referrals SET status = $2, reward_cents = $3, rewarded_at = $4 WHERE id = $1
	`, ref.ID, string(ref.Status), ref.RewardCents, nullTime(ref.RewardedAt))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return referrals.ErrNotFound
	}
	return nil
}

func (r *ReferralsRepo) GetByReferred(ctx context.Context, referredID string) (referrals.Referral, error) {
	ref, err := scanReferral(r.db.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referred_id = $1`, referredID))
	if errors.Is(err, sql.ErrNoRows) {
		return referrals.Referral{}, referrals.ErrNotFound
	}
	return ref, err
}

func (r *ReferralsRepo) ListByReferrer(ctx context.Context, referrerID string) ([]referrals.Referral, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]referrals.Referral, 0)
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func scanReferral(row rowScanner) (referrals.Referral, error) {
	var ref referrals.Referral
	var status string
	var rewardedAt sql.NullTime
	if err := row.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.Code, &status, &ref.RewardCents, &ref.CreatedAt, &rewardedAt); err != nil {
		return referrals.Referral{}, err
	}
	ref.Status = referrals.Status(status)
	ref.RewardedAt = timePtr(rewardedAt)
	return ref, nil
}
