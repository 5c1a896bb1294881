package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccountEmail(t *testing.T) {
	if got := accountEmail("+1 (000) 000-0001"); got != "whatsapp_10000000001@whatscommerce.local" {
		t.Errorf("unexpected account email %q", got)
	}
}

func TestFindOrCreateExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET lookup only, got %s", r.Method)
		}
		w.Write([]byte(`[{"id": 42, "email": "whatsapp_10000000001@whatscommerce.local", "username": "whatsapp_10000000001", "billing": {"phone": "+10000000001"}}]`))
	}))
	defer srv.Close()

	c, err := NewWooClient(WithBaseURL(srv.URL), WithCredentials("ck", "cs"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	acc, err := c.FindOrCreate(context.Background(), "+10000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.CustomerID != 42 || acc.IsNew {
		t.Errorf("expected existing customer 42, got %+v", acc)
	}
}

func TestFindOrCreateNew(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`[]`))
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 77, "email": "whatsapp_10000000002@whatscommerce.local", "username": "whatsapp_10000000002", "billing": {"phone": "+10000000002"}}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	c, err := NewWooClient(WithBaseURL(srv.URL), WithCredentials("ck", "cs"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	acc, err := c.FindOrCreate(context.Background(), "+10000000002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.CustomerID != 77 || !acc.IsNew {
		t.Errorf("expected new customer 77, got %+v", acc)
	}
}
