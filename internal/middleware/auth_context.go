package middleware

import (
	"context"
	"net/http"
	"strings"

	"tailtribe/internal/platform/httpx"
	"tailtribe/internal/ports/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// AuthContext:
// - Si verifier != nil y viene Bearer token => intenta Verify() y setea claims.
// - Si verifier == nil => modo dev: X-Debug-User-ID (+ X-Debug-User-Role) setean claims.
// - Si no hay claims, el request sigue igual; los handlers deciden 401/403.
func AuthContext(verifier auth.AuthVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				if uid := strings.TrimSpace(r.Header.Get("X-Debug-User-ID")); uid != "" {
					role := auth.Role(strings.ToLower(strings.TrimSpace(r.Header.Get("X-Debug-User-Role"))))
					if !role.Valid() {
						role = auth.RoleOwner
					}
					claims := auth.Claims{UserID: uid, Role: role}
					next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
					return
				}

				next.ServeHTTP(w, r)
				return
			}

			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				// El upgrade de websocket no puede mandar headers desde el browser.
				token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	v := ctx.Value(claimsKey)
	if v == nil {
		return auth.Claims{}, false
	}
	c, ok := v.(auth.Claims)
	return c, ok
}

// RequireClaims escribe 401 y devuelve false si no hay usuario autenticado.
func RequireClaims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return auth.Claims{}, false
	}
	return claims, true
}

// RequireRole es como RequireClaims pero además exige uno de los roles (admin siempre pasa).
func RequireRole(w http.ResponseWriter, r *http.Request, roles ...auth.Role) (auth.Claims, bool) {
	claims, ok := RequireClaims(w, r)
	if !ok {
		return auth.Claims{}, false
	}
	if claims.Role == auth.RoleAdmin {
		return claims, true
	}
	for _, role := range roles {
		if claims.Role == role {
			return claims, true
		}
	}
	httpx.WriteError(w, http.StatusForbidden, "forbidden")
	return auth.Claims{}, false
}

func BearerToken(authHeader string) string {
	if strings.TrimSpace(authHeader) == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
