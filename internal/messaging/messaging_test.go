package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/models"
	"github.com/whatscommerce/whatscommerce/internal/twiliowhatsapp"
	"github.com/whatscommerce/whatscommerce/internal/whatsapp"
)

func TestTwilioServiceCanonicalization(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())

	got, err := s.ValidateAndCanonicalizeRecipient("whatsapp:+1 (000) 000-0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "10000000001" {
		t.Errorf("expected canonical digits, got %q", got)
	}

	if _, err := s.ValidateAndCanonicalizeRecipient(""); err == nil {
		t.Error("expected error for empty recipient")
	}
	if _, err := s.ValidateAndCanonicalizeRecipient("123"); err == nil {
		t.Error("expected error for too-short number")
	}
}

func TestTwilioServiceSendEmitsReceipt(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	s := NewTwilioService(mock)

	sid, err := s.SendMessage(context.Background(), "+10000000001", "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sid == "" {
		t.Error("expected a message SID")
	}

	select {
	case receipt := <-s.Receipts():
		if receipt.Status != models.MessageStatusSent || receipt.To != "10000000001" {
			t.Errorf("unexpected receipt: %+v", receipt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a sent receipt")
	}
}

func TestTwilioServiceStopRejectsSends(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.SendMessage(context.Background(), "+10000000001", "hola"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	// Stop is idempotent.
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestTwilioServiceEmitResponse(t *testing.T) {
	s := NewTwilioService(twiliowhatsapp.NewMockClient())
	s.EmitResponse(models.Response{From: "+10000000001", Body: "hola", Time: time.Now().Unix()})

	select {
	case resp := <-s.Responses():
		if resp.From != "+10000000001" || resp.Body != "hola" {
			t.Errorf("unexpected response: %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an inbound response")
	}
}

func TestWhatsAppServiceSend(t *testing.T) {
	mock := whatsapp.NewMockClient()
	s := NewWhatsAppService(mock)

	id, err := s.SendMessage(context.Background(), "+10000000001", "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected a message id")
	}
	if len(mock.Sent) != 1 {
		t.Errorf("expected 1 sent message, got %d", len(mock.Sent))
	}

	select {
	case receipt := <-s.Receipts():
		if receipt.Status != models.MessageStatusSent {
			t.Errorf("unexpected receipt: %+v", receipt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a sent receipt")
	}
}
