package pets

import (
	"context"
	"strings"
)

// OwnerOf expone el ownerUserID de una mascota.
// Bookings lo usa a través de una interfaz (PetLookup).
func (s *Service) OwnerOf(ctx context.Context, petID string) (string, error) {
	p, err := s.repo.GetByID(ctx, strings.TrimSpace(petID))
	if err != nil {
		return "", err
	}
	return p.OwnerUserID, nil
}

// SpeciesOf devuelve la especie de cada mascota, exigiendo que todas sean de ownerUserID.
func (s *Service) SpeciesOf(ctx context.Context, ownerUserID string, petIDs []string) ([]string, error) {
	out := make([]string, 0, len(petIDs))
	for _, id := range petIDs {
		p, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		if p.OwnerUserID != ownerUserID {
			return nil, ErrForbidden
		}
		out = append(out, string(p.Species))
	}
	return out, nil
}
