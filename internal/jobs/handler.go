package jobs

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/httpx"
	"tailtribe/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

type runResponse struct {
	Job        string `json:"job"`
	Processed  int    `json:"processed"`
	DurationMS int64  `json:"duration_ms"`
}

// RegisterRoutes expone POST /cron/{job} para un scheduler externo.
// Sin CRON_SECRET el endpoint queda deshabilitado (503).
func RegisterRoutes(r chi.Router, runner *Runner, secret string) {
	r.Post("/cron/{job}", runHandler(runner, secret))
}

// runHandler godoc
// @Summary Ejecutar un job de mantenimiento
// @Description Requiere Authorization: Bearer CRON_SECRET. Jobs: booking-reminders, expire-pending, purge-challenges.
// @Tags cron
// @Produce json
// @Param job path string true "Nombre del job"
// @Success 200 {object} runResponse
// @Failure 401 {object} map[string]string "unauthorized"
// @Failure 404 {object} map[string]string "unknown job"
// @Failure 503 {object} map[string]string "cron disabled"
// @Router /api/cron/{job} [post]
func runHandler(runner *Runner, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret == "" || runner == nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "cron disabled")
			return
		}

		token := middleware.BearerToken(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		res, err := runner.Run(r.Context(), chi.URLParam(r, "job"))
		if err != nil {
			if errors.Is(err, ErrUnknownJob) {
				httpx.WriteError(w, http.StatusNotFound, err.Error())
				return
			}
			logger.FromContext(r.Context()).Error("cron request failed", map[string]any{"job": chi.URLParam(r, "job"), "error": err})
			httpx.WriteError(w, http.StatusInternalServerError, "job failed")
			return
		}

		httpx.WriteJSON(w, http.StatusOK, runResponse{
			Job:        res.Job,
			Processed:  res.Processed,
			DurationMS: res.Duration.Milliseconds(),
		})
	}
}
