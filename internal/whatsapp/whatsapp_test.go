package whatsapp

import (
	"context"
	"testing"
)

func TestMockClientSendMessage(t *testing.T) {
	mock := NewMockClient()
	id, err := mock.SendMessage(context.Background(), "10000000001", "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected a message id")
	}
	if len(mock.Sent) != 1 || mock.Sent[0] != "hola" {
		t.Errorf("unexpected sent messages: %v", mock.Sent)
	}
}

func TestClientSendMessageValidation(t *testing.T) {
	c := &Client{}
	if _, err := c.SendMessage(context.Background(), "10000000001", "hola"); err == nil {
		t.Error("expected error for uninitialized client")
	}
}
