package pets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("pet not found")
	ErrForbidden    = errors.New("forbidden")
)

// MaxBatch es el máximo de mascotas por POST /pets/batch.
const MaxBatch = 10

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Name      string
	Species   string
	Breed     string
	Sex       string
	BirthDate *time.Time
	WeightKg  float64
	Microchip string
	Notes     string
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Pet, error) {
	p, err := s.build(ownerUserID, in, s.now())
	if err != nil {
		return Pet{}, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

// CreateBatch valida todo antes de escribir; el repo inserta en una transacción.
func (s *Service) CreateBatch(ctx context.Context, ownerUserID string, ins []CreateInput) ([]Pet, error) {
	if len(ins) == 0 || len(ins) > MaxBatch {
		return nil, ErrInvalidInput
	}

	now := s.now()
	out := make([]Pet, 0, len(ins))
	for _, in := range ins {
		p, err := s.build(ownerUserID, in, now)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if err := s.repo.CreateBatch(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) build(ownerUserID string, in CreateInput, now time.Time) (Pet, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Pet{}, ErrInvalidInput
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Pet{}, ErrInvalidInput
	}
	species := Species(strings.ToLower(strings.TrimSpace(in.Species)))
	if !species.Valid() {
		return Pet{}, ErrInvalidInput
	}
	sex := Sex(strings.ToLower(strings.TrimSpace(in.Sex)))
	if sex == "" {
		sex = SexUnknown
	}
	if !sex.Valid() {
		return Pet{}, ErrInvalidInput
	}
	if in.WeightKg < 0 {
		return Pet{}, ErrInvalidInput
	}
	if in.BirthDate != nil && in.BirthDate.After(now) {
		return Pet{}, ErrInvalidInput
	}

	return Pet{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Name:        name,
		Species:     species,
		Breed:       strings.TrimSpace(in.Breed),
		Sex:         sex,
		BirthDate:   in.BirthDate,
		WeightKg:    in.WeightKg,
		Microchip:   strings.TrimSpace(in.Microchip),
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetForOwner devuelve la mascota solo si pertenece a ownerUserID.
func (s *Service) GetForOwner(ctx context.Context, petID, ownerUserID string) (Pet, error) {
	p, err := s.repo.GetByID(ctx, strings.TrimSpace(petID))
	if err != nil {
		return Pet{}, err
	}
	if p.OwnerUserID != ownerUserID {
		return Pet{}, ErrForbidden
	}
	return p, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Pet, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}

// BirthDatePatch distingue "no enviado" de "null" en un PATCH.
type BirthDatePatch struct {
	Present bool
	Value   *time.Time
}

type UpdateProfileInput struct {
	// nil = no tocar
	Name      *string
	Species   *string
	Breed     *string
	Sex       *string
	BirthDate BirthDatePatch
	WeightKg  *float64
	Microchip *string
	Notes     *string
}

func (s *Service) UpdateProfile(ctx context.Context, petID, ownerUserID string, in UpdateProfileInput) (Pet, error) {
	p, err := s.GetForOwner(ctx, petID, ownerUserID)
	if err != nil {
		return Pet{}, err
	}

	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		if v == "" {
			return Pet{}, ErrInvalidInput
		}
		p.Name = v
	}
	if in.Species != nil {
		v := Species(strings.ToLower(strings.TrimSpace(*in.Species)))
		if !v.Valid() {
			return Pet{}, ErrInvalidInput
		}
		p.Species = v
	}
	if in.Breed != nil {
		p.Breed = strings.TrimSpace(*in.Breed)
	}
	if in.Sex != nil {
		v := Sex(strings.ToLower(strings.TrimSpace(*in.Sex)))
		if !v.Valid() {
			return Pet{}, ErrInvalidInput
		}
		p.Sex = v
	}
	if in.BirthDate.Present {
		if in.BirthDate.Value != nil && in.BirthDate.Value.After(s.now()) {
			return Pet{}, ErrInvalidInput
		}
		p.BirthDate = in.BirthDate.Value
	}
	if in.WeightKg != nil {
		if *in.WeightKg < 0 {
			return Pet{}, ErrInvalidInput
		}
		p.WeightKg = *in.WeightKg
	}
	if in.Microchip != nil {
		p.Microchip = strings.TrimSpace(*in.Microchip)
	}
	if in.Notes != nil {
		p.Notes = strings.TrimSpace(*in.Notes)
	}

	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, petID, ownerUserID string) error {
	p, err := s.GetForOwner(ctx, petID, ownerUserID)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, p.ID)
}
