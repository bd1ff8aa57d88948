package caregivers

import (
	"errors"
	"net/http"
	"time"

	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/httpx"
	"tailtribe/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes usa paths completos (sin r.Route) porque availability
// también cuelga rutas de /caregivers.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Put("/caregivers/me", upsertProfileHandler(svc))
	r.Get("/caregivers", searchHandler(svc))
	r.Get("/caregivers/{caregiverID}", getProfileHandler(svc))
	r.Post("/caregivers/{caregiverID}/verify", verifyHandler(svc))
}

type offerDTO struct {
	Type      ServiceType `json:"type"`
	RateCents int64       `json:"rate_cents"`
	Unit      Unit        `json:"unit,omitempty"`
}

type upsertProfileRequest struct {
	Bio             string     `json:"bio"`
	City            string     `json:"city"`
	PostalCode      string     `json:"postal_code"`
	Country         string     `json:"country"`
	Services        []offerDTO `json:"services"`
	AcceptedSpecies []string   `json:"accepted_species"`
	MaxPets         int        `json:"max_pets"`
	ExperienceYears int        `json:"experience_years"`
	PayoutAccountID string     `json:"payout_account_id"`
}

type verifyRequest struct {
	Verified bool `json:"verified"`
}

type profileResponse struct {
	UserID          string     `json:"user_id"`
	Bio             string     `json:"bio"`
	City            string     `json:"city"`
	PostalCode      string     `json:"postal_code"`
	Country         string     `json:"country"`
	Services        []offerDTO `json:"services"`
	AcceptedSpecies []string   `json:"accepted_species"`
	MaxPets         int        `json:"max_pets"`
	ExperienceYears int        `json:"experience_years"`
	Verified        bool       `json:"verified"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// upsertProfileHandler godoc
// @Summary Crear o actualizar mi perfil de cuidador
// @Description Solo rol caregiver. La unidad de cada servicio se deriva del tipo (hour, day, visit).
// @Tags caregivers
// @Accept json
// @Produce json
// @Param payload body upsertProfileRequest true "Perfil"
// @Success 200 {object} profileResponse
// @Failure 400 {object} map[string]string "invalid input"
// @Failure 403 {object} map[string]string "forbidden"
// @Router /api/caregivers/me [put]
func upsertProfileHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireRole(w, r, auth.RoleCaregiver)
		if !ok {
			return
		}

		var req upsertProfileRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		offers := make([]Offer, 0, len(req.Services))
		for _, o := range req.Services {
			offers = append(offers, Offer{Type: o.Type, RateCents: o.RateCents})
		}

		p, err := svc.Upsert(r.Context(), claims.UserID, UpsertInput{
			Bio:             req.Bio,
			City:            req.City,
			PostalCode:      req.PostalCode,
			Country:         req.Country,
			Services:        offers,
			AcceptedSpecies: req.AcceptedSpecies,
			MaxPets:         req.MaxPets,
			ExperienceYears: req.ExperienceYears,
			PayoutAccountID: req.PayoutAccountID,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toProfileResponse(p))
	}
}

// searchHandler godoc
// @Summary Buscar cuidadores
// @Tags caregivers
// @Produce json
// @Param city query string false "Ciudad (sin distinguir mayúsculas)"
// @Param country query string false "BE o NL"
// @Param service query string false "Tipo de servicio"
// @Param species query string false "Especie aceptada"
// @Success 200 {array} profileResponse
// @Router /api/caregivers [get]
func searchHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}

		q := r.URL.Query()
		items, err := svc.Search(r.Context(), SearchFilter{
			City:    q.Get("city"),
			Country: q.Get("country"),
			Service: ServiceType(q.Get("service")),
			Species: q.Get("species"),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]profileResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toProfileResponse(p))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func getProfileHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}

		p, err := svc.Get(r.Context(), chi.URLParam(r, "caregiverID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toProfileResponse(p))
	}
}

func verifyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireRole(w, r, auth.RoleAdmin); !ok {
			return
		}

		var req verifyRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		p, err := svc.SetVerified(r.Context(), chi.URLParam(r, "caregiverID"), req.Verified)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toProfileResponse(p))
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	default:
		httpx.WriteInternalError(w, r, err)
	}
}

func toProfileResponse(p Profile) profileResponse {
	services := make([]offerDTO, 0, len(p.Services))
	for _, o := range p.Services {
		services = append(services, offerDTO{Type: o.Type, RateCents: o.RateCents, Unit: o.Unit()})
	}
	species := p.AcceptedSpecies
	if species == nil {
		species = []string{}
	}
	return profileResponse{
		UserID:          p.UserID,
		Bio:             p.Bio,
		City:            p.City,
		PostalCode:      p.PostalCode,
		Country:         p.Country,
		Services:        services,
		AcceptedSpecies: species,
		MaxPets:         p.MaxPets,
		ExperienceYears: p.ExperienceYears,
		Verified:        p.Verified,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
