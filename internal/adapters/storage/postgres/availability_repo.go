package postgres

import (
	"context"
	"database/sql"
	"time"

	"tailtribe/internal/domain/availability"
)

type SlotsRepo struct {
	db *sql.DB
}

func NewSlotsRepo(db *sql.DB) *SlotsRepo {
	return &SlotsRepo{db: db}
}

func (r *SlotsRepo) CreateMany(ctx context.Context, slots []availability.Slot) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, s := range slots {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO availability_slots (id, caregiver_id, start_at, end_at, created_at)
				VALUES ($1,$2,$3,$4,$5)
			`, s.ID, s.CaregiverID, s.StartAt, s.EndAt, s.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SlotsRepo) GetByID(ctx context.Context, id string) (availability.Slot, error) {
	var s availability.Slot
	err := r.db.QueryRowContext(ctx, `
		SELECT id, caregiver_id, start_at, end_at, created_at FROM availability_slots WHERE id = $1
	`, id).Scan(&s.ID, &s.CaregiverID, &s.StartAt, &s.EndAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return availability.Slot{}, availability.ErrNotFound
	}
	return s, err
}

func (r *SlotsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM availability_slots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return availability.ErrNotFound
	}
	return nil
}

func (r *SlotsRepo) ListByCaregiver(ctx context.Context, caregiverID string, from, to time.Time) ([]availability.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, caregiver_id, start_at, end_at, created_at
		FROM availability_slots
		WHERE caregiver_id = $1 AND start_at < $3 AND end_at > $2
		ORDER BY start_at ASC
	`, caregiverID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]availability.Slot, 0)
	for rows.Next() {
		var s availability.Slot
		if err := rows.Scan(&s.ID, &s.CaregiverID, &s.StartAt, &s.EndAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
