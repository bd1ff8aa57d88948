package logger

import (
	"context"
	"errors"
	"testing"
)

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("debug"); got != Debug {
		t.Fatalf("expected debug, got %s", got)
	}
	if got := ParseLevel(" error "); got != Error {
		t.Fatalf("expected error with surrounding spaces, got %s", got)
	}
	if got := ParseLevel("WARNING"); got != Warn {
		t.Fatalf("expected warn alias, got %s", got)
	}
	// Vacío o desconocido: info.
	if got := ParseLevel(""); got != Info {
		t.Fatalf("expected info for empty level, got %s", got)
	}
	if got := ParseLevel("bogus"); got != Info {
		t.Fatalf("expected info for unknown level, got %s", got)
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("JSON") != FormatJSON {
		t.Fatalf("expected json format")
	}
	if ParseFormat("anything") != FormatText {
		t.Fatalf("expected text format by default")
	}
}

func TestToZapFields_SkipsEmptyKeysAndKeepsErrors(t *testing.T) {
	fields := toZapFields(map[string]any{
		"":      "dropped",
		"b":     2,
		"a":     "x",
		"error": errors.New("boom"),
	})
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[0].Key != "a" || fields[1].Key != "b" || fields[2].Key != "error" {
		t.Fatalf("expected sorted keys, got %s,%s,%s", fields[0].Key, fields[1].Key, fields[2].Key)
	}
}

func TestNop_WithReturnsUsableLogger(t *testing.T) {
	l := Nop().With(map[string]any{"request_id": "r-1"})
	l.Info("hello", map[string]any{"k": "v"})
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected a usable logger without one in context")
	}
	l := Nop().With(map[string]any{"request_id": "r-2"})
	if got := FromContext(IntoContext(context.Background(), l)); got != l {
		t.Fatalf("expected the stored logger back")
	}
}
