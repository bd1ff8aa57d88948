package realtime

import (
	"net/http"
	"net/url"
	"strings"

	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// RegisterRoutes monta GET /ws. allowedOrigins sigue la config de CORS;
// "*" acepta cualquiera.
func RegisterRoutes(r chi.Router, hub *Hub, allowedOrigins []string, log logger.Logger) {
	r.Get("/ws", Handler(hub, allowedOrigins, log))
}

func Handler(hub *Hub, allowedOrigins []string, log logger.Logger) http.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade ya escribió la respuesta de error.
			log.Warn("ws upgrade failed", map[string]any{"user_id": claims.UserID, "error": err})
			return
		}

		client := NewClient(hub, conn, claims.UserID)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	allowAll := false
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		set[strings.ToLower(o)] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// clientes no-browser no mandan Origin
		if origin == "" || allowAll {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		// mismo host siempre vale
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}
