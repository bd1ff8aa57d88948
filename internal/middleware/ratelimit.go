package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"tailtribe/internal/platform/httpx"
	"tailtribe/internal/platform/ratelimit"
)

// RateLimit aplica el limiter por IP cliente dentro de un scope (p.ej. "auth", "api").
// Usar después de chimw.RealIP para que RemoteAddr sea la IP real.
func RateLimit(l ratelimit.Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}

			d := l.Allow(r.Context(), scope+":"+clientIP(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httpx.WriteError(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
