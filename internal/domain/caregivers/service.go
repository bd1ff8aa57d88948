package caregivers

import (
	"context"
	"errors"
	"strings"
	"time"

	"tailtribe/internal/domain/pets"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("caregiver not found")
)

const (
	maxPetsLimit = 10
	maxBioLen    = 2000
)

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

type UpsertInput struct {
	Bio             string
	City            string
	PostalCode      string
	Country         string
	Services        []Offer
	AcceptedSpecies []string
	MaxPets         int
	ExperienceYears int
	PayoutAccountID string
}

// Upsert crea o reemplaza el perfil. Verified y CreatedAt se conservan.
func (s *Service) Upsert(ctx context.Context, userID string, in UpsertInput) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, ErrInvalidInput
	}
	if len(in.Bio) > maxBioLen {
		return Profile{}, ErrInvalidInput
	}

	country := strings.ToUpper(strings.TrimSpace(in.Country))
	if country == "" {
		country = "BE"
	}
	if country != "BE" && country != "NL" {
		return Profile{}, ErrInvalidInput
	}

	services, err := normalizeServices(in.Services)
	if err != nil {
		return Profile{}, err
	}
	species, err := normalizeSpecies(in.AcceptedSpecies)
	if err != nil {
		return Profile{}, err
	}

	maxPets := in.MaxPets
	if maxPets == 0 {
		maxPets = 1
	}
	if maxPets < 1 || maxPets > maxPetsLimit || in.ExperienceYears < 0 {
		return Profile{}, ErrInvalidInput
	}
	payout := strings.TrimSpace(in.PayoutAccountID)
	if payout != "" && !strings.HasPrefix(payout, "acct_") {
		return Profile{}, ErrInvalidInput
	}

	now := s.now()
	p := Profile{
		UserID:          userID,
		Bio:             strings.TrimSpace(in.Bio),
		City:            strings.TrimSpace(in.City),
		PostalCode:      strings.TrimSpace(in.PostalCode),
		Country:         country,
		Services:        services,
		AcceptedSpecies: species,
		MaxPets:         maxPets,
		ExperienceYears: in.ExperienceYears,
		PayoutAccountID: payout,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	current, err := s.repo.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		p.CreatedAt = current.CreatedAt
		p.Verified = current.Verified
	case !errors.Is(err, ErrNotFound):
		return Profile{}, err
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	return s.repo.GetByUserID(ctx, strings.TrimSpace(userID))
}

func (s *Service) Search(ctx context.Context, f SearchFilter) ([]Profile, error) {
	f.City = strings.TrimSpace(f.City)
	f.Country = strings.ToUpper(strings.TrimSpace(f.Country))
	f.Species = strings.ToLower(strings.TrimSpace(f.Species))
	if f.Service != "" && !f.Service.Valid() {
		return nil, ErrInvalidInput
	}
	return s.repo.Search(ctx, f)
}

// SetVerified lo usa un admin después de revisar al cuidador.
func (s *Service) SetVerified(ctx context.Context, userID string, verified bool) (Profile, error) {
	p, err := s.repo.GetByUserID(ctx, strings.TrimSpace(userID))
	if err != nil {
		return Profile{}, err
	}
	p.Verified = verified
	p.UpdatedAt = s.now()
	if err := s.repo.Upsert(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func normalizeServices(in []Offer) ([]Offer, error) {
	if len(in) == 0 {
		return nil, ErrInvalidInput
	}
	seen := map[ServiceType]struct{}{}
	out := make([]Offer, 0, len(in))
	for _, o := range in {
		o.Type = ServiceType(strings.ToLower(strings.TrimSpace(string(o.Type))))
		if !o.Type.Valid() || o.RateCents <= 0 {
			return nil, ErrInvalidInput
		}
		if _, dup := seen[o.Type]; dup {
			return nil, ErrInvalidInput
		}
		seen[o.Type] = struct{}{}
		out = append(out, o)
	}
	return out, nil
}

func normalizeSpecies(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, ErrInvalidInput
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		sp := pets.Species(strings.ToLower(strings.TrimSpace(s)))
		if !sp.Valid() {
			return nil, ErrInvalidInput
		}
		if _, dup := seen[string(sp)]; dup {
			continue
		}
		seen[string(sp)] = struct{}{}
		out = append(out, string(sp))
	}
	return out, nil
}

// MatchesFilter lo comparten los repos (memory filtra en Go).
func MatchesFilter(p Profile, f SearchFilter) bool {
	if f.City != "" && !strings.EqualFold(p.City, f.City) {
		return false
	}
	if f.Country != "" && p.Country != f.Country {
		return false
	}
	if f.Service != "" {
		if _, ok := p.Offer(f.Service); !ok {
			return false
		}
	}
	if f.Species != "" && !p.AcceptsSpecies(f.Species) {
		return false
	}
	return true
}
