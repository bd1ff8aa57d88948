package health

import (
	"net/http"

	"tailtribe/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, agg *Aggregator) {
	r.Get("/health/status", statusHandler(agg))
}

// statusHandler godoc
// @Summary Estado de las dependencias
// @Description ok | degraded | down. Responde 503 solo si está down.
// @Tags health
// @Produce json
// @Success 200 {object} Report
// @Failure 503 {object} Report
// @Router /api/health/status [get]
func statusHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := agg.Run(r.Context())
		code := http.StatusOK
		if rep.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, code, rep)
	}
}
