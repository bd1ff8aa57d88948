package notifications

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/notifications", func(nr chi.Router) {
		nr.Get("/", listHandler(svc))
		nr.Post("/read-all", readAllHandler(svc))
		nr.Post("/{notificationID}/read", readHandler(svc))
	})
}

type Response struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      string     `json:"link,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type readAllResponse struct {
	Updated int `json:"updated"`
}

// listHandler godoc
// @Summary Mis notificaciones
// @Tags notifications
// @Produce json
// @Param unread query bool false "Solo no leídas"
// @Param limit query int false "Máximo 200"
// @Success 200 {array} Response
// @Router /api/notifications [get]
func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		unread, _ := strconv.ParseBool(q.Get("unread"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		items, err := svc.List(r.Context(), claims.UserID, unread, limit)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]Response, 0, len(items))
		for _, n := range items {
			out = append(out, ToResponse(n))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func readHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		n, err := svc.MarkRead(r.Context(), chi.URLParam(r, "notificationID"), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, ToResponse(n))
	}
}

func readAllHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		n, err := svc.MarkAllRead(r.Context(), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, readAllResponse{Updated: n})
	}
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

// ToResponse también es el payload del push por websocket.
func ToResponse(n Notification) Response {
	return Response{
		ID:        n.ID,
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      n.Body,
		Link:      n.Link,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
