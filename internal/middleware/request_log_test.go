package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"tailtribe/internal/platform/httpx"
	"tailtribe/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type entry struct {
	level  string
	msg    string
	fields map[string]any
}

// captureLogger guarda las entradas con los campos de With ya mezclados.
type captureLogger struct {
	mu      *sync.Mutex
	entries *[]entry
	base    map[string]any
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{mu: &sync.Mutex{}, entries: &[]entry{}, base: map[string]any{}}
}

func (c *captureLogger) With(fields map[string]any) logger.Logger {
	merged := map[string]any{}
	for k, v := range c.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &captureLogger{mu: c.mu, entries: c.entries, base: merged}
}

func (c *captureLogger) log(level, msg string, fields map[string]any) {
	all := map[string]any{}
	for k, v := range c.base {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.entries = append(*c.entries, entry{level: level, msg: msg, fields: all})
}

func (c *captureLogger) Debug(msg string, f map[string]any) { c.log("debug", msg, f) }
func (c *captureLogger) Info(msg string, f map[string]any)  { c.log("info", msg, f) }
func (c *captureLogger) Warn(msg string, f map[string]any)  { c.log("warn", msg, f) }
func (c *captureLogger) Error(msg string, f map[string]any) { c.log("error", msg, f) }

func (c *captureLogger) find(msg string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range *c.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return entry{}, false
}

func TestRequestLog_InternalErrorsLogTheCause(t *testing.T) {
	log := newCaptureLogger()
	cause := errors.New("pq: connection refused")

	h := chimw.RequestID(RequestLog(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteInternalError(w, r, cause)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookings", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Body.String() != "{\"error\":\"internal error\"}\n" {
		t.Fatalf("cause must not reach the client, got %q", rec.Body.String())
	}

	failed, ok := log.find("request failed")
	if !ok {
		t.Fatalf("expected the failure to be logged")
	}
	if failed.level != "error" || failed.fields["error"] != cause {
		t.Fatalf("unexpected failure entry %+v", failed)
	}
	reqID, _ := failed.fields["request_id"].(string)
	if reqID == "" {
		t.Fatalf("failure entry should carry the request id: %+v", failed.fields)
	}

	access, ok := log.find("http request")
	if !ok || access.fields["request_id"] != reqID || access.fields["status"] != http.StatusInternalServerError {
		t.Fatalf("access log should share the request id, got %+v", access)
	}
}

func TestWriteInternalError_WithoutRequestLoggerStillResponds(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteInternalError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
