package pets

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/pets", func(pr chi.Router) {
		pr.Post("/", createPetHandler(svc))
		pr.Post("/batch", createPetsBatchHandler(svc))
		pr.Get("/", listPetsHandler(svc))

		pr.Get("/{petID}", getPetHandler(svc))
		pr.Patch("/{petID}", updatePetHandler(svc))
		pr.Delete("/{petID}", deletePetHandler(svc))
	})
}

type createPetRequest struct {
	Name      string  `json:"name"`
	Species   string  `json:"species"`
	Breed     string  `json:"breed"`
	Sex       string  `json:"sex"`
	BirthDate string  `json:"birth_date"` // YYYY-MM-DD opcional
	WeightKg  float64 `json:"weight_kg"`
	Microchip string  `json:"microchip"`
	Notes     string  `json:"notes"`
}

type createPetsBatchRequest struct {
	Pets []createPetRequest `json:"pets"`
}

type updatePetRequest struct {
	Name      *string  `json:"name"`
	Species   *string  `json:"species"`
	Breed     *string  `json:"breed"`
	Sex       *string  `json:"sex"`
	WeightKg  *float64 `json:"weight_kg"`
	Microchip *string  `json:"microchip"`
	Notes     *string  `json:"notes"`
	// birth_date se lee aparte para distinguir null de ausente
	BirthDate json.RawMessage `json:"birth_date"`
}

type petResponse struct {
	ID          string     `json:"id"`
	OwnerUserID string     `json:"owner_user_id"`
	Name        string     `json:"name"`
	Species     Species    `json:"species"`
	Breed       string     `json:"breed"`
	Sex         Sex        `json:"sex"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	WeightKg    float64    `json:"weight_kg,omitempty"`
	Microchip   string     `json:"microchip,omitempty"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// createPetHandler godoc
// @Summary Registrar mascota
// @Tags pets
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createPetRequest true "Datos de la mascota; birth_date YYYY-MM-DD"
// @Success 201 {object} petResponse
// @Failure 400 {object} map[string]string "invalid input"
// @Failure 401 {object} map[string]string "unauthorized"
// @Router /api/pets [post]
func createPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		var req createPetRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		in, err := req.toInput()
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		p, err := svc.Create(r.Context(), claims.UserID, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, toPetResponse(p))
	}
}

// createPetsBatchHandler godoc
// @Summary Registrar varias mascotas
// @Description Todas o ninguna (una transacción). Máximo 10 por request.
// @Tags pets
// @Accept json
// @Produce json
// @Param payload body createPetsBatchRequest true "Lista de mascotas"
// @Success 201 {array} petResponse
// @Failure 400 {object} map[string]string "invalid input"
// @Router /api/pets/batch [post]
func createPetsBatchHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		var req createPetsBatchRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		ins := make([]CreateInput, 0, len(req.Pets))
		for _, pr := range req.Pets {
			in, err := pr.toInput()
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			ins = append(ins, in)
		}

		created, err := svc.CreateBatch(r.Context(), claims.UserID, ins)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]petResponse, 0, len(created))
		for _, p := range created {
			out = append(out, toPetResponse(p))
		}
		httpx.WriteJSON(w, http.StatusCreated, out)
	}
}

func listPetsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]petResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPetResponse(p))
		}

		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func getPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		p, err := svc.GetForOwner(r.Context(), chi.URLParam(r, "petID"), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toPetResponse(p))
	}
}

func updatePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		var req updatePetRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		// RawMessage queda nil si el campo no vino; "null" si vino null.
		bd := BirthDatePatch{}
		if req.BirthDate != nil {
			bd.Present = true
			if string(req.BirthDate) != "null" {
				var s string
				if err := json.Unmarshal(req.BirthDate, &s); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "birth_date must be YYYY-MM-DD or null")
					return
				}
				t, err := parseDate(s)
				if err != nil {
					httpx.WriteError(w, http.StatusBadRequest, err.Error())
					return
				}
				bd.Value = t
			}
		}

		updated, err := svc.UpdateProfile(r.Context(), chi.URLParam(r, "petID"), claims.UserID, UpdateProfileInput{
			Name:      req.Name,
			Species:   req.Species,
			Breed:     req.Breed,
			Sex:       req.Sex,
			BirthDate: bd,
			WeightKg:  req.WeightKg,
			Microchip: req.Microchip,
			Notes:     req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toPetResponse(updated))
	}
}

func deletePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "petID"), claims.UserID); err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

var errBirthDateFormat = errors.New("birth_date must be YYYY-MM-DD")

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, errBirthDateFormat
	}
	return &t, nil
}

func (req createPetRequest) toInput() (CreateInput, error) {
	bd, err := parseDate(req.BirthDate)
	if err != nil {
		return CreateInput{}, err
	}
	return CreateInput{
		Name:      req.Name,
		Species:   req.Species,
		Breed:     req.Breed,
		Sex:       req.Sex,
		BirthDate: bd,
		WeightKg:  req.WeightKg,
		Microchip: req.Microchip,
		Notes:     req.Notes,
	}, nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	default:
		httpx.WriteInternalError(w, r, err)
	}
}

func toPetResponse(p Pet) petResponse {
	return petResponse{
		ID:          p.ID,
		OwnerUserID: p.OwnerUserID,
		Name:        p.Name,
		Species:     p.Species,
		Breed:       p.Breed,
		Sex:         p.Sex,
		BirthDate:   p.BirthDate,
		WeightKg:    p.WeightKg,
		Microchip:   p.Microchip,
		Notes:       p.Notes,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
