package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*WooClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewWooClient(
		WithBaseURL(srv.URL),
		WithCredentials("ck_test", "cs_test"),
		WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c, srv
}

func TestWooClientSearch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "ck_test" || pass != "cs_test" {
			t.Errorf("missing or wrong basic auth: %q %q", user, pass)
		}
		if got := r.URL.Query().Get("search"); got != "zapatos" {
			t.Errorf("expected search=zapatos, got %q", got)
		}
		if got := r.URL.Query().Get("per_page"); got != "5" {
			t.Errorf("expected per_page=5, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 10, "name": "Zapatos de cuero", "price": "59.99", "stock_quantity": 4, "permalink": "https://shop/p/10"},
			{"id": 11, "name": "Zapatos deportivos", "price": "39.50", "stock_quantity": null, "permalink": "https://shop/p/11"}
		]`))
	})

	products, err := c.Search(context.Background(), "zapatos", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].ID != 10 || products[0].Price != 59.99 || products[0].Stock != 4 {
		t.Errorf("first product decoded incorrectly: %+v", products[0])
	}
	if products[1].Stock != 0 {
		t.Errorf("null stock_quantity should map to 0, got %d", products[1].Stock)
	}
}

func TestWooClientGetNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.Get(context.Background(), 999)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWooClientServerErrorMapsToBackendUnavailable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Search(context.Background(), "x", 5)
	if !errors.Is(err, models.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestWooClientContextCancellation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Search(ctx, "x", 5)
	if !errors.Is(err, models.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable on cancelled context, got %v", err)
	}
}

func TestNewWooClientValidation(t *testing.T) {
	if _, err := NewWooClient(); err == nil {
		t.Error("expected error without base URL")
	}
	if _, err := NewWooClient(WithBaseURL("https://shop")); err == nil {
		t.Error("expected error without credentials")
	}
}
