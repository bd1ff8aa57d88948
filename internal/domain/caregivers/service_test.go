package caregivers

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRepo struct {
	byID map[string]Profile
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Profile{}}
}

func (r *testRepo) Upsert(ctx context.Context, p Profile) error {
	r.byID[p.UserID] = p
	return nil
}

func (r *testRepo) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	p, ok := r.byID[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *testRepo) Search(ctx context.Context, f SearchFilter) ([]Profile, error) {
	out := make([]Profile, 0)
	for _, p := range r.byID {
		if MatchesFilter(p, f) {
			out = append(out, p)
		}
	}
	return out, nil
}

func validInput() UpsertInput {
	return UpsertInput{
		City:            "Antwerpen",
		Country:         "be",
		Services:        []Offer{{Type: "dog_walking", RateCents: 1500}, {Type: ServiceBoarding, RateCents: 3500}},
		AcceptedSpecies: []string{"Dog", "dog", "cat"},
		MaxPets:         3,
	}
}

func TestUnitOf(t *testing.T) {
	if UnitOf(ServiceDogWalking) != UnitHour || UnitOf(ServicePetSitting) != UnitHour {
		t.Fatalf("walking and sitting are billed per hour")
	}
	if got := UnitOf(ServiceBoarding); got != UnitDay {
		t.Fatalf("boarding unit = %q, want day", got)
	}
	if UnitOf(ServiceDropIn) != UnitVisit || UnitOf(ServiceGrooming) != UnitVisit {
		t.Fatalf("drop-in and grooming are billed per visit")
	}
	if got := UnitOf("bathing"); got != "" {
		t.Fatalf("unknown service should have no unit, got %q", got)
	}
}

func TestUpsert_NormalizesAndKeepsVerified(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }

	p, err := svc.Upsert(context.Background(), "cg-1", validInput())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.Country != "BE" || len(p.AcceptedSpecies) != 2 || p.AcceptedSpecies[0] != "dog" {
		t.Fatalf("unexpected profile %+v", p)
	}

	if _, err := svc.SetVerified(context.Background(), "cg-1", true); err != nil {
		t.Fatalf("verify: %v", err)
	}

	svc.now = func() time.Time { return first.Add(time.Hour) }
	in := validInput()
	in.Bio = "Dierenvriend"
	p, err = svc.Upsert(context.Background(), "cg-1", in)
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if !p.Verified || !p.CreatedAt.Equal(first) || p.Bio != "Dierenvriend" {
		t.Fatalf("expected verified flag and created_at preserved, got %+v", p)
	}
}

func TestUpsert_Invalid(t *testing.T) {
	svc := NewService(newTestRepo())

	mutate := []func(*UpsertInput){
		func(in *UpsertInput) { in.Services = nil },
		func(in *UpsertInput) { in.Services = []Offer{{Type: "bathing", RateCents: 100}} },
		func(in *UpsertInput) { in.Services = []Offer{{Type: ServiceDropIn, RateCents: 0}} },
		func(in *UpsertInput) {
			in.Services = []Offer{{Type: ServiceDropIn, RateCents: 100}, {Type: ServiceDropIn, RateCents: 200}}
		},
		func(in *UpsertInput) { in.AcceptedSpecies = []string{"dragon"} },
		func(in *UpsertInput) { in.Country = "FR" },
		func(in *UpsertInput) { in.MaxPets = 11 },
	}
	for i, m := range mutate {
		in := validInput()
		m(&in)
		if _, err := svc.Upsert(context.Background(), "cg-1", in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestSearch_Filters(t *testing.T) {
	svc := NewService(newTestRepo())

	a := validInput()
	_, _ = svc.Upsert(context.Background(), "cg-a", a)

	b := validInput()
	b.City = "Utrecht"
	b.Country = "NL"
	b.Services = []Offer{{Type: ServiceGrooming, RateCents: 4000}}
	b.AcceptedSpecies = []string{"rabbit"}
	_, _ = svc.Upsert(context.Background(), "cg-b", b)

	check := func(f SearchFilter, want int) {
		t.Helper()
		got, err := svc.Search(context.Background(), f)
		if err != nil {
			t.Fatalf("search %+v: %v", f, err)
		}
		if len(got) != want {
			t.Fatalf("search %+v: expected %d, got %d", f, want, len(got))
		}
	}

	check(SearchFilter{}, 2)
	check(SearchFilter{City: "antwerpen"}, 1)
	check(SearchFilter{Country: "nl"}, 1)
	check(SearchFilter{Service: ServiceBoarding}, 1)
	check(SearchFilter{Species: "Rabbit"}, 1)
	check(SearchFilter{Service: ServiceGrooming, Species: "dog"}, 0)

	if _, err := svc.Search(context.Background(), SearchFilter{Service: "bathing"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown service, got %v", err)
	}
}
