package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"tailtribe/internal/domain/pets"
)

type PetsRepo struct {
	db *sql.DB
}

func NewPetsRepo(db *sql.DB) *PetsRepo {
	return &PetsRepo{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *PetsRepo) Create(ctx context.Context, p pets.Pet) error {
	return insertPet(ctx, r.db, p)
}

// CreateBatch: una transacción para todo el lote.
func (r *PetsRepo) CreateBatch(ctx context.Context, ps []pets.Pet) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, p := range ps {
			if err := insertPet(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertPet(ctx context.Context, db execer, p pets.Pet) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO pets (
			id, owner_user_id,
			name, species, breed, sex,
			birth_date, weight_kg, microchip, notes,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		p.ID,
		p.OwnerUserID,
		p.Name,
		string(p.Species),
		p.Breed,
		string(p.Sex),
		nullTime(p.BirthDate),
		p.WeightKg,
		p.Microchip,
		p.Notes,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *PetsRepo) Update(ctx context.Context, p pets.Pet) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pets
		SET
			name = $2,
			species = $3,
			breed = $4,
			sex = $5,
			birth_date = $6,
			weight_kg = $7,
			microchip = $8,
			notes = $9,
			updated_at = $10
		WHERE id = $1
	`,
		p.ID,
		p.Name,
		string(p.Species),
		p.Breed,
		string(p.Sex),
		nullTime(p.BirthDate),
		p.WeightKg,
		p.Microchip,
		p.Notes,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pets.ErrNotFound
	}
	return nil
}

func (r *PetsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pets.ErrNotFound
	}
	return nil
}

const petColumns = `
	id, owner_user_id,
	name, species, breed, sex,
	birth_date, weight_kg, microchip, notes,
	created_at, updated_at`

func (r *PetsRepo) GetByID(ctx context.Context, id string) (pets.Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return pets.Pet{}, pets.ErrNotFound
	}

	p, err := scanPet(r.db.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pets.Pet{}, pets.ErrNotFound
		}
		return pets.Pet{}, err
	}
	return p, nil
}

func (r *PetsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]pets.Pet, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+petColumns+`
		FROM pets
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pets.Pet, 0)
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPet(row rowScanner) (pets.Pet, error) {
	var p pets.Pet
	var species, sex string
	var bd sql.NullTime
	if err := row.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Name,
		&species,
		&p.Breed,
		&sex,
		&bd,
		&p.WeightKg,
		&p.Microchip,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return pets.Pet{}, err
	}
	p.Species = pets.Species(species)
	p.Sex = pets.Sex(sex)
	// ojo: birth_date es date, pgx lo mapea a time.Time midnight UTC
	p.BirthDate = timePtr(bd)
	return p, nil
}

