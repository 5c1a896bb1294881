package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	sid, err := mock.SendMessage(ctx, "12345", "Hello Test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sid == "" {
		t.Error("expected a message SID")
	}

	if len(mock.Sent()) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.Sent()))
	}
	if mock.Sent()[0].Body != "Hello Test" {
		t.Errorf("expected body %q, got %q", "Hello Test", mock.Sent()[0].Body)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("expected error without from number")
	}
}

func TestValidatorRejectsBadSignature(t *testing.T) {
	v := NewValidator("secret-token")
	params := map[string]string{"From": "whatsapp:+10000000001", "Body": "hola"}
	if v.Validate("https://example.com/webhook/twilio", params, "bogus") {
		t.Error("expected bogus signature to be rejected")
	}
}
