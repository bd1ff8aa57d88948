package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetJSON_SendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"ana@example.com"}`))
	}))
	defer srv.Close()

	var out struct {
		Email string `json:"email"`
	}
	if err := New(time.Second).GetJSON(context.Background(), srv.URL, "tok", &out); err != nil {
		t.Fatalf("get json: %v", err)
	}
	if out.Email != "ana@example.com" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestGetJSON_Non2xxIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	err := New(time.Second).GetJSON(context.Background(), srv.URL, "", nil)
	if !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("expected 403 HTTPError, got %v", err)
	}
}
