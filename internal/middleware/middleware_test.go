package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tailtribe/internal/platform/ratelimit"
	"tailtribe/internal/ports/auth"
)

func TestAuthContext_DevHeaders(t *testing.T) {
	var got auth.Claims
	h := AuthContext(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetClaims(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "u-1")
	req.Header.Set("X-Debug-User-Role", "Caregiver")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.UserID != "u-1" || got.Role != auth.RoleCaregiver {
		t.Fatalf("unexpected claims %+v", got)
	}
}

func TestAuthContext_DevHeaders_UnknownRoleDefaultsToOwner(t *testing.T) {
	var got auth.Claims
	h := AuthContext(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetClaims(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "u-1")
	req.Header.Set("X-Debug-User-Role", "root")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.Role != auth.RoleOwner {
		t.Fatalf("expected owner role, got %q", got.Role)
	}
}

func TestRequireRole(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := RequireRole(w, r, auth.RoleCaregiver); !ok {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	as := func(role auth.Role) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), auth.Claims{UserID: "u", Role: role}))
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := as(auth.RoleCaregiver); code != http.StatusNoContent {
		t.Fatalf("caregiver: expected 204, got %d", code)
	}
	// El admin pasa cualquier RequireRole.
	if code := as(auth.RoleAdmin); code != http.StatusNoContent {
		t.Fatalf("admin: expected 204, got %d", code)
	}
	if code := as(auth.RoleOwner); code != http.StatusForbidden {
		t.Fatalf("owner: expected 403, got %d", code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	if BearerToken("bearer abc ") != "abc" {
		t.Fatalf("expected case-insensitive bearer parsing")
	}
	if BearerToken("Basic abc") != "" || BearerToken("Bearer") != "" {
		t.Fatalf("expected empty token for invalid headers")
	}
}

func TestRateLimit_Returns429WithRetryAfter(t *testing.T) {
	l := ratelimit.NewMemory(ratelimit.Config{Capacity: 1, RefillPerSec: 0.5})
	h := RateLimit(l, "auth")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected Retry-After 2, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}
