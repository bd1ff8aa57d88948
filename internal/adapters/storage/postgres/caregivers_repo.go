package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tailtribe/internal/domain/caregivers"
)

type CaregiversRepo struct {
	db *sql.DB
}

func NewCaregiversRepo(db *sql.DB) *CaregiversRepo {
	return &CaregiversRepo{db: db}
}

// offerRow es el formato JSONB de caregiver_profiles.services.
type offerRow struct {
	Type      string `json:"type"`
	RateCents int64  `json:"rate_cents"`
}

const caregiverColumns = `
	user_id, bio, city, postal_code, country,
	services, accepted_species,
	max_pets, experience_years, verified, payout_account_id,
	created_at, updated_at`

func (r *CaregiversRepo) Upsert(ctx context.Context, p caregivers.Profile) error {
	rows := make([]offerRow, 0, len(p.Services))
	for _, o := range p.Services {
		rows = append(rows, offerRow{Type: string(o.Type), RateCents: o.RateCents})
	}
	services, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	species := p.AcceptedSpecies
	if species == nil {
		species = []string{}
	}
	speciesJSON, err := json.Marshal(species)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO caregiver_profiles (`+caregiverColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (user_id) DO UPDATE SET
			bio = EXCLUDED.bio,
			city = EXCLUDED.city,
			postal_code = EXCLUDED.postal_code,
			country = EXCLUDED.country,
			services = EXCLUDED.services,
			accepted_species = EXCLUDED.accepted_species,
			max_pets = EXCLUDED.max_pets,
			experience_years = EXCLUDED.experience_years,
			verified = EXCLUDED.verified,
			payout_account_id = EXCLUDED.payout_account_id,
			updated_at = EXCLUDED.updated_at
	`,
		p.UserID, p.Bio, p.City, p.PostalCode, p.Country,
		string(services), string(speciesJSON),
		p.MaxPets, p.ExperienceYears, p.Verified, p.PayoutAccountID,
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *CaregiversRepo) GetByUserID(ctx context.Context, userID string) (caregivers.Profile, error) {
	p, err := scanCaregiver(r.db.QueryRowContext(ctx,
		`SELECT `+caregiverColumns+` FROM caregiver_profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return caregivers.Profile{}, caregivers.ErrNotFound
		}
		return caregivers.Profile{}, err
	}
	return p, nil
}

func (r *CaregiversRepo) Search(ctx context.Context, f caregivers.SearchFilter) ([]caregivers.Profile, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 4)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.City != "" {
		add("lower(city) = lower($%d)", f.City)
	}
	if f.Country != "" {
		add("country = $%d", f.Country)
	}
	if f.Service != "" {
		add("services @> jsonb_build_array(jsonb_build_object('type', $%d::text))", string(f.Service))
	}
	if f.Species != "" {
		add("accepted_species @> jsonb_build_array($%d::text)", f.Species)
	}

	q := `SELECT ` + caregiverColumns + ` FROM caregiver_profiles`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY verified DESC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]caregivers.Profile, 0)
	for rows.Next() {
		p, err := scanCaregiver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanCaregiver(row rowScanner) (caregivers.Profile, error) {
	var p caregivers.Profile
	var services, species []byte
	if err := row.Scan(
		&p.UserID, &p.Bio, &p.City, &p.PostalCode, &p.Country,
		&services, &species,
		&p.MaxPets, &p.ExperienceYears, &p.Verified, &p.PayoutAccountID,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return caregivers.Profile{}, err
	}

	var offers []offerRow
	if err := json.Unmarshal(services, &offers); err != nil {
		return caregivers.Profile{}, fmt.Errorf("decode services: %w", err)
	}
	p.Services = make([]caregivers.Offer, 0, len(offers))
	for _, o := range offers {
		p.Services = append(p.Services, caregivers.Offer{Type: caregivers.ServiceType(o.Type), RateCents: o.RateCents})
	}
	if err := json.Unmarshal(species, &p.AcceptedSpecies); err != nil {
		return caregivers.Profile{}, fmt.Errorf("decode accepted_species: %w", err)
	}
	return p, nil
}
