package middleware

import (
	"net/http"
	"time"

	"tailtribe/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLog registra cada request con su request id (chimw.RequestID debe ir antes)
// y deja en el contexto un logger con ese id para los handlers.
func RequestLog(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.With(map[string]any{"request_id": chimw.GetReqID(r.Context())})
			next.ServeHTTP(ww, r.WithContext(logger.IntoContext(r.Context(), reqLog)))

			fields := map[string]any{
				"request_id": chimw.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"latency_ms": time.Since(start).Milliseconds(),
				"ip":         r.RemoteAddr,
			}
			if c, ok := GetClaims(r.Context()); ok {
				fields["user_id"] = c.UserID
			}

			switch {
			case ww.Status() >= 500:
				log.Error("http request", fields)
			case ww.Status() >= 400:
				log.Warn("http request", fields)
			default:
				log.Info("http request", fields)
			}
		})
	}
}
