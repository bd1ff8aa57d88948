package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"tailtribe/internal/platform/mailer"
)

type testRepo struct {
	byID map[string]Notification
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]Notification{}} }

func (r *testRepo) Create(ctx context.Context, n Notification) error {
	r.byID[n.ID] = n
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Notification, error) {
	n, ok := r.byID[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (r *testRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	out := make([]Notification, 0)
	for _, n := range r.byID {
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *testRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	n := r.byID[id]
	n.ReadAt = &at
	r.byID[id] = n
	return nil
}

func (r *testRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	c := 0
	for id, n := range r.byID {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			r.byID[id] = n
			c++
		}
	}
	return c, nil
}

type fakePusher struct {
	users []string
	types []string
}

func (p *fakePusher) Push(userID, eventType string, data any) {
	p.users = append(p.users, userID)
	p.types = append(p.types, eventType)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *fakeMailer) Configured() bool { return true }
func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}
func (m *fakeMailer) SendAsync(msg mailer.Message) { _ = m.Send(context.Background(), msg) }

type fakeEmails map[string]string

func (f fakeEmails) EmailOf(ctx context.Context, userID string) (string, error) {
	e, ok := f[userID]
	if !ok {
		return "", errors.New("unknown user")
	}
	return e, nil
}

func TestNotify_StoresPushesAndEmails(t *testing.T) {
	repo := newTestRepo()
	pusher := &fakePusher{}
	mail := &fakeMailer{}
	svc := NewService(repo, Options{
		Pusher:    pusher,
		Mailer:    mail,
		Emails:    fakeEmails{"u-1": "u1@example.be"},
		PublicURL: "https://tailtribe.be/",
	})
	ctx := context.Background()

	n, err := svc.Notify(ctx, Input{UserID: "u-1", Kind: KindBookingAccepted, Title: " Booking accepted ", Body: "ok", Link: "/bookings/b-1"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n.Title != "Booking accepted" || n.ReadAt != nil {
		t.Fatalf("unexpected notification %+v", n)
	}
	if len(pusher.users) != 1 || pusher.users[0] != "u-1" || pusher.types[0] != EventType {
		t.Fatalf("unexpected pushes %+v", pusher)
	}
	if len(mail.sent) != 1 || mail.sent[0].To != "u1@example.be" {
		t.Fatalf("unexpected mails %+v", mail.sent)
	}
	if want := "ok\n\nhttps://tailtribe.be/bookings/b-1"; mail.sent[0].Text != want {
		t.Fatalf("mail text = %q, want %q", mail.sent[0].Text, want)
	}

	// SkipEmail y usuarios sin email no mandan correo, pero sí se guardan
	if _, err := svc.Notify(ctx, Input{UserID: "u-1", Kind: KindNewMessage, Title: "New message", SkipEmail: true}); err != nil {
		t.Fatalf("notify skip email: %v", err)
	}
	if _, err := svc.Notify(ctx, Input{UserID: "u-2", Kind: KindNewMessage, Title: "New message"}); err != nil {
		t.Fatalf("notify unknown email: %v", err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected still 1 mail, got %d", len(mail.sent))
	}

	if _, err := svc.Notify(ctx, Input{UserID: "u-1", Kind: KindNewMessage}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing title: expected ErrInvalidInput, got %v", err)
	}
}

func TestMarkRead_OwnershipAndIdempotency(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, Options{})
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	a, _ := svc.Notify(ctx, Input{UserID: "u-1", Kind: KindBookingPaid, Title: "a"})
	svc.now = func() time.Time { return base.Add(time.Minute) }
	_, _ = svc.Notify(ctx, Input{UserID: "u-1", Kind: KindBookingPaid, Title: "b"})

	if _, err := svc.MarkRead(ctx, a.ID, "u-2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	got, err := svc.MarkRead(ctx, a.ID, "u-1")
	if err != nil || got.ReadAt == nil {
		t.Fatalf("mark read: %v %+v", err, got)
	}
	first := *got.ReadAt
	svc.now = func() time.Time { return base.Add(time.Hour) }
	again, _ := svc.MarkRead(ctx, a.ID, "u-1")
	if !again.ReadAt.Equal(first) {
		t.Fatalf("read_at should not move on second call")
	}

	unread, _ := svc.List(ctx, "u-1", true, 0)
	if len(unread) != 1 || unread[0].Title != "b" {
		t.Fatalf("unexpected unread %+v", unread)
	}

	n, err := svc.MarkAllRead(ctx, "u-1")
	if err != nil || n != 1 {
		t.Fatalf("mark all: n=%d err=%v", n, err)
	}
}
