package referrals

import (
	"context"
	"errors"
	"testing"
	"time"

	"tailtribe/internal/domain/notifications"
)

type testRepo struct {
	byReferred map[string]Referral
}

func newTestRepo() *testRepo { return &testRepo{byReferred: map[string]Referral{}} }

func (r *testRepo) Create(ctx context.Context, ref Referral) error {
	if _, ok := r.byReferred[ref.ReferredID]; ok {
		return ErrAlreadyReferred
	}
	r.byReferred[ref.ReferredID] = ref
	return nil
}

func (r *testRepo) Update(ctx context.Context, ref Referral) error {
	r.byReferred[ref.ReferredID] = ref
	return nil
}

func (r *testRepo) GetByReferred(ctx context.Context, id string) (Referral, error) {
	ref, ok := r.byReferred[id]
	if !ok {
		return Referral{}, ErrNotFound
	}
	return ref, nil
}

func (r *testRepo) ListByReferrer(ctx context.Context, id string) ([]Referral, error) {
	out := make([]Referral, 0)
	for _, ref := range r.byReferred {
		if ref.ReferrerID == id {
			out = append(out, ref)
		}
	}
	return out, nil
}

type fakeNotifier struct{ sent []notifications.Input }

func (n *fakeNotifier) Notify(ctx context.Context, in notifications.Input) (notifications.Notification, error) {
	n.sent = append(n.sent, in)
	return notifications.Notification{}, nil
}

type fakeCodes map[string]string

func (f fakeCodes) ReferralCodeOf(ctx context.Context, id string) (string, error) { return f[id], nil }

func TestRecord_RejectsSelfAndDuplicates(t *testing.T) {
	svc := NewService(newTestRepo(), Options{})
	ctx := context.Background()

	if err := svc.Record(ctx, "u-1", "u-1", "ABC"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("self referral: expected ErrInvalidInput, got %v", err)
	}
	if err := svc.Record(ctx, "u-1", "u-2", "abc"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, "u-3", "u-2", "XYZ"); !errors.Is(err, ErrAlreadyReferred) {
		t.Fatalf("expected ErrAlreadyReferred, got %v", err)
	}
}

func TestOnBookingCompleted_RewardsOnce(t *testing.T) {
	repo := newTestRepo()
	notif := &fakeNotifier{}
	svc := NewService(repo, Options{Notifier: notif, Codes: fakeCodes{"u-1": "CODE1234"}})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	// sin referral: no-op
	if err := svc.OnBookingCompleted(ctx, "nobody"); err != nil {
		t.Fatalf("no referral: %v", err)
	}

	_ = svc.Record(ctx, "u-1", "u-2", "CODE1234")
	_ = svc.Record(ctx, "u-1", "u-3", "CODE1234")

	if err := svc.OnBookingCompleted(ctx, "u-2"); err != nil {
		t.Fatalf("reward: %v", err)
	}
	if err := svc.OnBookingCompleted(ctx, "u-2"); err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if len(notif.sent) != 1 || notif.sent[0].UserID != "u-1" {
		t.Fatalf("expected exactly one notification to referrer, got %+v", notif.sent)
	}

	sum, err := svc.Summary(ctx, "u-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Code != "CODE1234" || sum.Rewarded != 1 || sum.Pending != 1 || sum.TotalRewardCents != DefaultRewardCents {
		t.Fatalf("unexpected summary %+v", sum)
	}

	ref, _ := repo.GetByReferred(ctx, "u-2")
	if ref.RewardedAt == nil || !ref.RewardedAt.Equal(fixed) {
		t.Fatalf("rewarded_at not set: %+v", ref)
	}
}
