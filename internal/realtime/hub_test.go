package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tailtribe/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, hub *Hub, origins []string) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(middleware.AuthContext(nil))
	RegisterRoutes(r, hub, origins, nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func dial(t *testing.T, srv *httptest.Server, userID string, header http.Header) *websocket.Conn {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	header.Set("X-Debug-User-ID", userID)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_PushReachesOnlyThatUser(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := newTestServer(t, hub, []string{"http://localhost:3000"})

	alice1 := dial(t, srv, "alice", nil)
	alice2 := dial(t, srv, "alice", nil)
	bob := dial(t, srv, "bob", nil)
	waitFor(t, func() bool { return hub.Connections() == 3 })

	if got := hub.UserConnections("alice"); got != 2 {
		t.Fatalf("alice connections = %d", got)
	}

	hub.Push("alice", "notification", map[string]string{"title": "hi"})

	for _, c := range []*websocket.Conn{alice1, alice2} {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Type != "notification" || ev.Data["title"] != "hi" {
			t.Fatalf("unexpected event %s", raw)
		}
	}

	_ = bob.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Fatalf("bob should not receive alice's event")
	}
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := newTestServer(t, hub, nil)
	c := dial(t, srv, "carol", nil)
	waitFor(t, func() bool { return hub.Connections() == 1 })

	_ = c.Close()
	waitFor(t, func() bool { return hub.Connections() == 0 })
}

func TestHandler_RequiresAuth(t *testing.T) {
	hub := NewHub(nil)
	srv := newTestServer(t, hub, nil)

	res, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.tailtribe.be/"})

	req := httptest.NewRequest(http.MethodGet, "http://api.tailtribe.be/ws", nil)
	if !check(req) {
		t.Fatalf("no origin header should pass")
	}

	req.Header.Set("Origin", "https://app.tailtribe.be")
	if !check(req) {
		t.Fatalf("allowed origin rejected")
	}

	req.Header.Set("Origin", "https://evil.example")
	if check(req) {
		t.Fatalf("foreign origin accepted")
	}

	if !originChecker([]string{"*"})(req) {
		t.Fatalf("wildcard should accept any origin")
	}
}

func TestPush_NilHubIsSafe(t *testing.T) {
	var hub *Hub
	hub.Push("x", "t", nil)
	if hub.Connections() != 0 {
		t.Fatalf("nil hub should report 0 connections")
	}
}
