package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tailtribe/internal/ports/payments"

	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test"

type fakeStripe struct {
	mu       sync.Mutex
	paths    []string
	forms    []map[string]string
	idemKeys []string
}

func (f *fakeStripe) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}

		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.forms = append(f.forms, form)
		f.idemKeys = append(f.idemKeys, r.Header.Get("Idempotency-Key"))
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/payment_intents":
			_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc","status":"requires_payment_method"}`))
		case "/v1/refunds":
			_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","status":"succeeded"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"no route"}}`))
		}
	}
}

func newTestGateway(t *testing.T) (*Gateway, *fakeStripe) {
	t.Helper()
	fake := &fakeStripe{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	g, err := New(Config{SecretKey: "sk_test_123", WebhookSecret: testWebhookSecret, BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return g, fake
}

func TestNew_RequiresKeys(t *testing.T) {
	if _, err := New(Config{SecretKey: "sk_test"}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCreateIntent_DestinationChargeWithFee(t *testing.T) {
	g, fake := newTestGateway(t)

	intent, err := g.CreateIntent(context.Background(), payments.IntentInput{
		BookingID:          "b-1",
		AmountCents:        2250,
		FeeCents:           338,
		Currency:           "EUR",
		DestinationAccount: "acct_42",
		IdempotencyKey:     "b-1",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret_abc" || intent.Status != "requires_payment_method" {
		t.Fatalf("unexpected intent %+v", intent)
	}

	form := fake.forms[0]
	want := map[string]string{
		"amount":                             "2250",
		"currency":                           "eur",
		"application_fee_amount":             "338",
		"transfer_data[destination]":         "acct_42",
		"metadata[booking_id]":               "b-1",
		"automatic_payment_methods[enabled]": "true",
	}
	for k, v := range want {
		if form[k] != v {
			t.Fatalf("form[%s] = %q, want %q (form=%v)", k, form[k], v, form)
		}
	}
	if fake.idemKeys[0] != "b-1" {
		t.Fatalf("idempotency key = %q", fake.idemKeys[0])
	}
}

func TestCreateIntent_WithoutDestinationKeepsFeeInMetadata(t *testing.T) {
	g, fake := newTestGateway(t)

	if _, err := g.CreateIntent(context.Background(), payments.IntentInput{
		BookingID:   "b-2",
		AmountCents: 1000,
		FeeCents:    150,
		Currency:    "eur",
	}); err != nil {
		t.Fatalf("create intent: %v", err)
	}

	form := fake.forms[0]
	if _, ok := form["application_fee_amount"]; ok {
		t.Fatalf("application fee must not be sent without destination")
	}
	if form["metadata[commission_cents]"] != "150" {
		t.Fatalf("expected commission in metadata, form=%v", form)
	}
}

func TestRefund_UsesIdempotencyKey(t *testing.T) {
	g, fake := newTestGateway(t)

	if err := g.Refund(context.Background(), "pi_123", "refund-b-1"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if fake.paths[0] != "/v1/refunds" || fake.forms[0]["payment_intent"] != "pi_123" || fake.idemKeys[0] != "refund-b-1" {
		t.Fatalf("unexpected refund request path=%s form=%v key=%s", fake.paths[0], fake.forms[0], fake.idemKeys[0])
	}
}

func signed(payload string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	}).Header
}

func TestParseWebhook_PaymentIntentEvents(t *testing.T) {
	g, _ := newTestGateway(t)

	payload := `{"id":"evt_1","object":"event","api_version":"2020-08-27","type":"payment_intent.payment_failed",
	"data":{"object":{"id":"pi_9","object":"payment_intent","metadata":{"booking_id":"b-9"},
	"last_payment_error":{"message":"Your card was declined."}}}}`

	ev, err := g.ParseWebhook([]byte(payload), signed(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != payments.EventPaymentFailed || ev.PaymentIntentID != "pi_9" || ev.BookingID != "b-9" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.FailureMessage != "Your card was declined." {
		t.Fatalf("failure message = %q", ev.FailureMessage)
	}
}

func TestParseWebhook_ChargeRefunded(t *testing.T) {
	g, _ := newTestGateway(t)

	payload := `{"id":"evt_2","object":"event","type":"charge.refunded",
	"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_7","metadata":{}}}}`

	ev, err := g.ParseWebhook([]byte(payload), signed(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.PaymentIntentID != "pi_7" {
		t.Fatalf("payment intent = %q", ev.PaymentIntentID)
	}
}

func TestParseWebhook_BadSignature(t *testing.T) {
	g, _ := newTestGateway(t)

	payload := `{"id":"evt_3","object":"event","type":"payment_intent.succeeded","data":{"object":{}}}`
	header := signed(payload)

	if _, err := g.ParseWebhook([]byte(strings.Replace(payload, "evt_3", "evt_4", 1)), header); !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("tampered payload: expected ErrInvalidSignature, got %v", err)
	}
	if _, err := g.ParseWebhook([]byte(payload), ""); !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("missing header: expected ErrInvalidSignature, got %v", err)
	}
}
