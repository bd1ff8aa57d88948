package messaging

import "testing"

func mustFilter(t *testing.T, in, want string, redacted bool) {
	t.Helper()
	got, gotRedacted := FilterContent(in)
	if got != want || gotRedacted != redacted {
		t.Fatalf("FilterContent(%q) = (%q, %v), want (%q, %v)", in, got, gotRedacted, want, redacted)
	}
}

func TestFilterContent_PlainTextUntouched(t *testing.T) {
	mustFilter(t, "Hi! Can you walk Max on Tuesday?", "Hi! Can you walk Max on Tuesday?", false)

	// Horas, fechas e importes no son teléfonos.
	mustFilter(t, "pick up at 14.30 on 01.05.2026", "pick up at 14.30 on 01.05.2026", false)
	mustFilter(t, "it costs 25 euro for 2 dogs", "it costs 25 euro for 2 dogs", false)
}

func TestFilterContent_HidesEmailsAndLinks(t *testing.T) {
	mustFilter(t, "mail me at jan.peeters@gmail.com please", "mail me at [hidden] please", true)
	mustFilter(t, "see https://example.org/profile", "see [hidden]", true)
	mustFilter(t, "check www.mijnhond.nl", "check [hidden]", true)
	mustFilter(t, "my site is tailwag.be ok", "my site is [hidden] ok", true)
}

func TestFilterContent_HidesBelgianAndDutchPhones(t *testing.T) {
	mustFilter(t, "call +32 470 12 34 56", "call [hidden]", true)
	mustFilter(t, "bel 0031 6 12345678", "bel [hidden]", true)
	mustFilter(t, "bel me op 06-12345678", "bel me op [hidden]", true)
	mustFilter(t, "gsm 0470/12.34.56", "gsm [hidden]", true)
	mustFilter(t, "vaste lijn 02 123 45 67", "vaste lijn [hidden]", true)
}

func TestFilterContent_HidesIBANs(t *testing.T) {
	mustFilter(t, "IBAN BE68 5390 0754 7034 thanks", "IBAN [hidden] thanks", true)
	mustFilter(t, "NL91ABNA0417164300", "[hidden]", true)
}
