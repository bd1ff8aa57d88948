package jwt

import (
	"context"
	"errors"
	"testing"
	"time"

	"tailtribe/internal/ports/auth"
)

func TestIssueAndVerify(t *testing.T) {
	svc, err := NewHMACService("secret", time.Hour, "tailtribe")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	tok, err := svc.Issue(auth.Claims{UserID: "u-1", Email: "ana@example.com", Role: auth.RoleCaregiver})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := svc.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.UserID != "u-1" || got.Email != "ana@example.com" || got.Role != auth.RoleCaregiver {
		t.Fatalf("unexpected claims %+v", got)
	}
}

func TestVerify_Expired(t *testing.T) {
	svc, _ := NewHMACService("secret", time.Hour, "tailtribe")
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	tok, err := svc.Issue(auth.Claims{UserID: "u-1", Role: auth.RoleOwner})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := svc.Verify(context.Background(), tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_WrongSecretOrIssuer(t *testing.T) {
	a, _ := NewHMACService("secret-a", time.Hour, "tailtribe")
	b, _ := NewHMACService("secret-b", time.Hour, "tailtribe")
	c, _ := NewHMACService("secret-a", time.Hour, "other")

	tok, _ := a.Issue(auth.Claims{UserID: "u-1", Role: auth.RoleOwner})

	if _, err := b.Verify(context.Background(), tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid with other secret, got %v", err)
	}
	if _, err := c.Verify(context.Background(), tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid with other issuer, got %v", err)
	}
}

func TestIssue_RejectsInvalidRole(t *testing.T) {
	svc, _ := NewHMACService("secret", time.Hour, "")
	if _, err := svc.Issue(auth.Claims{UserID: "u-1", Role: "root"}); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestNewHMACService_RequiresSecret(t *testing.T) {
	if _, err := NewHMACService("  ", time.Hour, ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
