package messages

import (
	"strings"
	"testing"
)

func TestRenderSubstitutesParams(t *testing.T) {
	c := NewCatalog()
	msg, err := c.Render(KeyOrderConfirmed, map[string]string{"order_number": "123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(msg, "#123") {
		t.Errorf("expected order number in message, got %q", msg)
	}
}

func TestRenderUnknownKeyFails(t *testing.T) {
	c := NewCatalog()
	if _, err := c.Render("does_not_exist", nil); err == nil {
		t.Error("expected error for unknown template key")
	}
}

func TestRenderMissingParamLeavesPlaceholder(t *testing.T) {
	c := NewCatalog()
	msg, err := c.Render(KeyOrderConfirmed, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(msg, "{order_number}") {
		t.Errorf("expected literal placeholder to survive, got %q", msg)
	}
}

func TestSetOverridesTemplate(t *testing.T) {
	c := NewCatalog()
	if err := c.Set(KeyWelcome, "Hola {name}"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, err := c.Render(KeyWelcome, map[string]string{"name": "Ana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Hola Ana" {
		t.Errorf("expected override to apply, got %q", msg)
	}
}

func TestSetRejectsEmpty(t *testing.T) {
	c := NewCatalog()
	if err := c.Set("", "body"); err == nil {
		t.Error("expected error for empty key")
	}
	if err := c.Set(KeyWelcome, ""); err == nil {
		t.Error("expected error for empty template")
	}
}

func TestRestoreDefaults(t *testing.T) {
	c := NewCatalog()
	orig, _ := c.Render(KeyWelcome, nil)
	if err := c.Set(KeyWelcome, "custom"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.RestoreDefaults()
	got, err := c.Render(KeyWelcome, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != orig {
		t.Errorf("expected default restored, got %q", got)
	}
}
