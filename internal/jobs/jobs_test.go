package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeBookings struct {
	reminders, expired int
}

func (f *fakeBookings) SendReminders(ctx context.Context) (int, error) {
	f.reminders++
	return 3, nil
}

func (f *fakeBookings) ExpireStalePending(ctx context.Context) (int, error) {
	f.expired++
	return 0, errors.New("db down")
}

type fakePurger struct{}

func (fakePurger) PurgeExpired(ctx context.Context) (int, error) { return 7, nil }

func newTestRunner(t *testing.T) (*Runner, *fakeBookings) {
	t.Helper()
	b := &fakeBookings{}
	r := NewRunner(nil, nil)
	if err := RegisterDefaults(r, b, fakePurger{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return r, b
}

func TestRunner_RunByName(t *testing.T) {
	r, b := newTestRunner(t)

	names := r.Names()
	if len(names) != 3 || names[0] != JobBookingReminders {
		t.Fatalf("unexpected names %v", names)
	}

	res, err := r.Run(context.Background(), JobBookingReminders)
	if err != nil || res.Processed != 3 || b.reminders != 1 {
		t.Fatalf("run: %+v %v", res, err)
	}
	if _, err := r.Run(context.Background(), JobExpirePending); err == nil {
		t.Fatalf("expected job error")
	}
	if _, err := r.Run(context.Background(), "nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestRunner_RecoversPanics(t *testing.T) {
	r := NewRunner(nil, nil)
	_ = r.Add("boom", "@hourly", func(ctx context.Context) (int, error) { panic("kaboom") })

	if _, err := r.Run(context.Background(), "boom"); err == nil {
		t.Fatalf("expected error from panic")
	}
	// el flag de running se libera
	if _, err := r.Run(context.Background(), "boom"); err == nil {
		t.Fatalf("expected error on second run too")
	}
}

func TestRunner_RejectsBadSpec(t *testing.T) {
	r := NewRunner(nil, nil)
	if err := r.Add("x", "every now and then", func(ctx context.Context) (int, error) { return 0, nil }); err == nil {
		t.Fatalf("expected bad spec error")
	}
}

func TestCronEndpoint(t *testing.T) {
	runner, _ := newTestRunner(t)

	do := func(secret, job, auth string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		RegisterRoutes(r, runner, secret)
		req := httptest.NewRequest(http.MethodPost, "/cron/"+job, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("", JobPurgeChallenges, "Bearer x"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("no secret: expected 503, got %d", rec.Code)
	}
	if rec := do("s3cret", JobPurgeChallenges, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no auth: expected 401, got %d", rec.Code)
	}
	if rec := do("s3cret", JobPurgeChallenges, "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad auth: expected 401, got %d", rec.Code)
	}
	if rec := do("s3cret", "unknown", "Bearer s3cret"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job: expected 404, got %d", rec.Code)
	}
	if rec := do("s3cret", JobExpirePending, "Bearer s3cret"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("failing job: expected 500, got %d", rec.Code)
	}

	rec := do("s3cret", JobPurgeChallenges, "Bearer s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body runResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Job != JobPurgeChallenges || body.Processed != 7 {
		t.Fatalf("unexpected body %+v", body)
	}
}
