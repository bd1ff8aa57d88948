package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func newTestProvider(t *testing.T, verified bool) *Provider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if verified {
			_, _ = w.Write([]byte(`{"sub":"g-123","email":"ana@example.com","email_verified":true,"name":"Ana"}`))
			return
		}
		_, _ = w.Write([]byte(`{"sub":"g-123","email":"ana@example.com","email_verified":false}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := New("client", "secret", "http://localhost/callback")
	p.cfg.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.userInfoURL = srv.URL + "/userinfo"
	return p
}

func TestExchange_ReturnsIdentity(t *testing.T) {
	p := newTestProvider(t, true)

	id, err := p.Exchange(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if id.Subject != "g-123" || id.Email != "ana@example.com" || id.Name != "Ana" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestExchange_UnverifiedEmail(t *testing.T) {
	p := newTestProvider(t, false)

	if _, err := p.Exchange(context.Background(), "code-1"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}
}

func TestAuthCodeURL_CarriesState(t *testing.T) {
	p := New("client", "secret", "http://localhost/callback")
	u := p.AuthCodeURL("st-1")
	if !strings.Contains(u, "state=st-1") || !strings.Contains(u, "client_id=client") {
		t.Fatalf("unexpected auth url %s", u)
	}
}
