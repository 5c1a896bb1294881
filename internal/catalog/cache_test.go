package catalog

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

func TestCacheKeys(t *testing.T) {
	if got := productKey(42); got != "product:42" {
		t.Errorf("unexpected product key %q", got)
	}
	if got := searchKey("zapatos", 5); got != "product_search:5:zapatos" {
		t.Errorf("unexpected search key %q", got)
	}
}

func TestCachedGatewayAgainstRedis(t *testing.T) {
	// This test requires a running Redis instance; set REDIS_ADDR to enable.
	addr := ""
	if v, ok := syscall.Getenv("REDIS_ADDR"); ok {
		addr = v
	}
	if addr == "" {
		t.Skip("env REDIS_ADDR not set")
	}
	rdb, err := InitRedis(addr, "")
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	inner := NewMockGateway(models.Product{ID: 1, Name: "Zapatos", Price: 10, Stock: 3})
	g := NewCachedGateway(inner, rdb, time.Minute)
	ctx := context.Background()
	rdb.Del(ctx, searchKey("zapatos", 5), productKey(1))

	if _, err := g.Search(ctx, "zapatos", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.Search(ctx, "zapatos", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Second call should be answered from cache without touching the inner gateway.
	if len(inner.SearchCalls) != 1 {
		t.Errorf("expected 1 inner search call, got %d", len(inner.SearchCalls))
	}
}
