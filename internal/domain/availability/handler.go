package availability

import (
	"errors"
	"net/http"
	"time"

	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/httpx"
	"tailtribe/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/caregivers/me/availability", addSlotsHandler(svc))
	r.Get("/caregivers/me/availability", listSlotsHandler(svc))
	r.Delete("/caregivers/me/availability/{slotID}", deleteSlotHandler(svc))

	r.Get("/caregivers/{caregiverID}/calendar", calendarHandler(svc))
}

type slotInput struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

type addSlotsRequest struct {
	Slots []slotInput `json:"slots"`
}

type slotResponse struct {
	ID          string    `json:"id"`
	CaregiverID string    `json:"caregiver_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
}

type intervalResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type dayResponse struct {
	Date      string             `json:"date"`
	Available []intervalResponse `json:"available"`
	Busy      []intervalResponse `json:"busy"`
	Free      []intervalResponse `json:"free"`
}

// addSlotsHandler godoc
// @Summary Declarar franjas de disponibilidad
// @Description Fechas RFC3339. Máximo 50 franjas por request.
// @Tags availability
// @Accept json
// @Produce json
// @Param payload body addSlotsRequest true "Franjas"
// @Success 201 {array} slotResponse
// @Failure 400 {object} map[string]string "invalid input"
// @Failure 403 {object} map[string]string "forbidden"
// @Router /api/caregivers/me/availability [post]
func addSlotsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireRole(w, r, auth.RoleCaregiver)
		if !ok {
			return
		}

		var req addSlotsRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		in := make([]Interval, 0, len(req.Slots))
		for _, s := range req.Slots {
			in = append(in, Interval{Start: s.StartAt, End: s.EndAt})
		}

		slots, err := svc.AddSlots(r.Context(), claims.UserID, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, toSlotResponses(slots, svc.Location()))
	}
}

func listSlotsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireRole(w, r, auth.RoleCaregiver)
		if !ok {
			return
		}

		q := r.URL.Query()
		slots, err := svc.ListSlots(r.Context(), claims.UserID, q.Get("from"), q.Get("to"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toSlotResponses(slots, svc.Location()))
	}
}

func deleteSlotHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireRole(w, r, auth.RoleCaregiver)
		if !ok {
			return
		}

		if err := svc.DeleteSlot(r.Context(), claims.UserID, chi.URLParam(r, "slotID")); err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// calendarHandler godoc
// @Summary Calendario libre/ocupado de un cuidador
// @Description Un día por fecha en [from, to], en la zona horaria de la app. Máximo 62 días.
// @Tags availability
// @Produce json
// @Param caregiverID path string true "ID del cuidador"
// @Param from query string false "YYYY-MM-DD (default hoy)"
// @Param to query string false "YYYY-MM-DD inclusive (default from + 13 días)"
// @Success 200 {array} dayResponse
// @Failure 400 {object} map[string]string "invalid input / date range too large"
// @Router /api/caregivers/{caregiverID}/calendar [get]
func calendarHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}

		q := r.URL.Query()
		days, err := svc.Calendar(r.Context(), chi.URLParam(r, "caregiverID"), q.Get("from"), q.Get("to"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		loc := svc.Location()
		out := make([]dayResponse, 0, len(days))
		for _, d := range days {
			out = append(out, dayResponse{
				Date:      d.Date,
				Available: toIntervalResponses(d.Available, loc),
				Busy:      toIntervalResponses(d.Busy, loc),
				Free:      toIntervalResponses(d.Free, loc),
			})
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrRangeTooLarge):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	default:
		httpx.WriteInternalError(w, r, err)
	}
}

func toSlotResponses(slots []Slot, loc *time.Location) []slotResponse {
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{
			ID:          s.ID,
			CaregiverID: s.CaregiverID,
			StartAt:     s.StartAt.In(loc),
			EndAt:       s.EndAt.In(loc),
		})
	}
	return out
}

func toIntervalResponses(in []Interval, loc *time.Location) []intervalResponse {
	out := make([]intervalResponse, 0, len(in))
	for _, iv := range in {
		out = append(out, intervalResponse{Start: iv.Start.In(loc), End: iv.End.In(loc)})
	}
	return out
}
