package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tailtribe/internal/domain/bookings"
	"tailtribe/internal/domain/messaging"
	"tailtribe/internal/domain/notifications"
	"tailtribe/internal/domain/pets"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func booking(id string, start time.Time, hours int, status bookings.Status) bookings.Booking {
	return bookings.Booking{
		ID:          id,
		OwnerID:     "owner-1",
		CaregiverID: "cg-1",
		PetIDs:      []string{"pet-1"},
		StartAt:     start,
		EndAt:       start.Add(time.Duration(hours) * time.Hour),
		Status:      status,
		CreatedAt:   t0,
	}
}

func TestBookingRepo_CreateRejectsOverlapWithActiveOnly(t *testing.T) {
	ctx := context.Background()
	r := NewBookingRepo()

	if err := r.Create(ctx, booking("b1", t0, 2, bookings.StatusPaid)); err != nil {
		t.Fatalf("create b1: %v", err)
	}
	if err := r.Create(ctx, booking("b2", t0.Add(time.Hour), 2, bookings.StatusPending)); !errors.Is(err, bookings.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	// Back-to-back: [9,11) y [11,12) no se solapan.
	if err := r.Create(ctx, booking("b3", t0.Add(2*time.Hour), 1, bookings.StatusPending)); err != nil {
		t.Fatalf("adjacent booking should be accepted: %v", err)
	}
	if err := r.Create(ctx, booking("b4", t0.Add(-time.Hour), 2, bookings.StatusCancelled)); err != nil {
		t.Fatalf("inactive booking should not collide: %v", err)
	}
}

func TestBookingRepo_ConcurrentCreatesOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	r := NewBookingRepo()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.Create(ctx, booking(string(rune('a'+i)), t0, 3, bookings.StatusPending))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one booking, got %d", wins)
	}
}

func TestBookingRepo_ReturnedPetIDsAreCopies(t *testing.T) {
	ctx := context.Background()
	r := NewBookingRepo()
	_ = r.Create(ctx, booking("b1", t0, 1, bookings.StatusPending))

	got, _ := r.GetByID(ctx, "b1")
	got.PetIDs[0] = "mutated"
	again, _ := r.GetByID(ctx, "b1")
	if again.PetIDs[0] != "pet-1" {
		t.Fatalf("stored booking was mutated: %v", again.PetIDs)
	}

	if _, err := r.GetCompletion(ctx, "b1"); !errors.Is(err, bookings.ErrCompletionNotFound) {
		t.Fatalf("expected ErrCompletionNotFound, got %v", err)
	}
}

func TestBookingRepo_MarkCompletedOnlyFromPaid(t *testing.T) {
	ctx := context.Background()
	r := NewBookingRepo()
	_ = r.Create(ctx, booking("b1", t0, 1, bookings.StatusAccepted))

	b, _ := r.GetByID(ctx, "b1")
	c := bookings.ServiceCompletion{BookingID: "b1", CaregiverID: b.CaregiverID, Notes: "ok", CompletedAt: t0}
	if err := r.MarkCompleted(ctx, b, c); !errors.Is(err, bookings.ErrBadState) {
		t.Fatalf("expected ErrBadState for an unpaid booking, got %v", err)
	}
	if _, err := r.GetCompletion(ctx, "b1"); !errors.Is(err, bookings.ErrCompletionNotFound) {
		t.Fatalf("completion must not be written, got %v", err)
	}

	b.Status = bookings.StatusPaid
	_ = r.Update(ctx, b)
	if err := r.MarkCompleted(ctx, b, c); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	got, _ := r.GetByID(ctx, "b1")
	if got.Status != bookings.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if stored, err := r.GetCompletion(ctx, "b1"); err != nil || stored.Notes != "ok" {
		t.Fatalf("completion: %v %+v", err, stored)
	}

	if err := r.MarkCompleted(ctx, b, c); !errors.Is(err, bookings.ErrBadState) {
		t.Fatalf("second completion: expected ErrBadState, got %v", err)
	}
}

func TestPetRepo_CreateBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	r := NewPetRepo()
	_ = r.Create(ctx, pets.Pet{ID: "p1", OwnerUserID: "o"})

	err := r.CreateBatch(ctx, []pets.Pet{{ID: "p2", OwnerUserID: "o"}, {ID: "p1", OwnerUserID: "o"}})
	if err == nil {
		t.Fatalf("expected error for existing id")
	}
	if _, err := r.GetByID(ctx, "p2"); !errors.Is(err, pets.ErrNotFound) {
		t.Fatalf("p2 should not be stored, got %v", err)
	}
}

func TestMessagingRepo_ListMessagesKeepsLastInOrder(t *testing.T) {
	ctx := context.Background()
	r := NewMessagingRepo()
	conv := messaging.Conversation{ID: "c1", OwnerID: "o", CaregiverID: "cg", CreatedAt: t0}
	if err := r.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := r.CreateConversation(ctx, messaging.Conversation{ID: "c2", OwnerID: "o", CaregiverID: "cg"}); !errors.Is(err, messaging.ErrConversationExists) {
		t.Fatalf("expected ErrConversationExists, got %v", err)
	}

	for i, id := range []string{"m1", "m2", "m3"} {
		_ = r.CreateMessage(ctx, messaging.Message{ID: id, ConversationID: "c1", SenderID: "o", CreatedAt: t0.Add(time.Duration(i) * time.Minute)})
	}
	got, _ := r.ListMessages(ctx, "c1", 2)
	if len(got) != 2 || got[0].ID != "m2" || got[1].ID != "m3" {
		t.Fatalf("unexpected messages: %+v", got)
	}

	n, _ := r.MarkRead(ctx, "c1", "cg", t0)
	if n != 3 {
		t.Fatalf("expected 3 marked, got %d", n)
	}
	if n, _ := r.MarkRead(ctx, "c1", "o", t0); n != 0 {
		t.Fatalf("sender's own messages must not count, got %d", n)
	}
}

func TestNotificationRepo_ListAndMarkAll(t *testing.T) {
	ctx := context.Background()
	r := NewNotificationRepo()
	for i, id := range []string{"n1", "n2", "n3"} {
		_ = r.Create(ctx, notifications.Notification{ID: id, UserID: "u", CreatedAt: t0.Add(time.Duration(i) * time.Minute)})
	}
	_ = r.MarkRead(ctx, "n3", t0)

	unread, _ := r.ListByUser(ctx, "u", true, 10)
	if len(unread) != 2 || unread[0].ID != "n2" {
		t.Fatalf("expected newest unread first, got %+v", unread)
	}
	if n, _ := r.MarkAllRead(ctx, "u", t0); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
}
