package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/whatscommerce/whatscommerce/internal/catalog"
	"github.com/whatscommerce/whatscommerce/internal/models"
)

func testGateway() *catalog.MockGateway {
	return catalog.NewMockGateway(
		models.Product{ID: 1, Name: "Zapatos", Price: 10.50, Stock: 10},
		models.Product{ID: 2, Name: "Camisa", Price: 25.00, Stock: 1},
	)
}

func TestAddMergesQuantities(t *testing.T) {
	c := New()
	gw := testGateway()
	ctx := context.Background()

	if err := c.Add(ctx, gw, 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Add(ctx, gw, 1, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Quantity(1); got != 5 {
		t.Errorf("expected quantity 5, got %d", got)
	}
	if c.Len() != 1 {
		t.Errorf("expected a single merged line, got %d", c.Len())
	}
}

func TestAddRejectsExceedingStock(t *testing.T) {
	c := New()
	gw := testGateway()
	ctx := context.Background()

	if err := c.Add(ctx, gw, 1, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := c.Add(ctx, gw, 1, 3)
	if !errors.Is(err, models.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if got := c.Quantity(1); got != 8 {
		t.Errorf("failed add must leave quantity unchanged, got %d", got)
	}
}

func TestAddUnknownProduct(t *testing.T) {
	c := New()
	err := c.Add(context.Background(), testGateway(), 99, 1)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	c := New()
	gw := testGateway()
	ctx := context.Background()
	if err := c.Add(ctx, gw, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Remove(1) {
		t.Error("expected Remove to report true for present product")
	}
	if c.Remove(1) {
		t.Error("expected Remove to report false for absent product")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cart, got %d lines", c.Len())
	}
}

func TestClear(t *testing.T) {
	c := New()
	gw := testGateway()
	ctx := context.Background()
	if err := c.Add(ctx, gw, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Error("expected empty cart after Clear")
	}
}

func TestSnapshotIsRestartableAndLazy(t *testing.T) {
	c := New()
	gw := testGateway()
	ctx := context.Background()
	if err := c.Add(ctx, gw, 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Add(ctx, gw, 2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq := c.Snapshot(ctx, gw)
	for range 2 { // restartable: iterate the same sequence twice
		var lines []Line
		for line := range seq {
			lines = append(lines, line)
		}
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(lines))
		}
		if lines[0].Product.ID != 1 || lines[1].Product.ID != 2 {
			t.Error("snapshot must preserve insertion order")
		}
		if lines[0].LineTotal != 21.00 {
			t.Errorf("expected line total 21.00, got %v", lines[0].LineTotal)
		}
	}

	// Early break must not panic or consume the sequence.
	for range seq {
		break
	}
	if c.Len() != 2 {
		t.Error("snapshot must never mutate the cart")
	}
}

func TestSnapshotSkipsVanishedProducts(t *testing.T) {
	c := New()
	gw := testGateway()
	ctx := context.Background()
	if err := c.Add(ctx, gw, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Add(ctx, gw, 2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gw.Products = gw.Products[:1] // product 2 vanishes

	var count int
	for range c.Snapshot(ctx, gw) {
		count++
	}
	if count != 1 {
		t.Errorf("expected vanished product to be skipped, got %d lines", count)
	}
}

func TestJSONRoundTripPreservesOrder(t *testing.T) {
	c := New()
	gw := testGateway()
	ctx := context.Background()
	if err := c.Add(ctx, gw, 2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Add(ctx, gw, 1, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	restored := New()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := restored.Items()
	if len(items) != 2 || items[0].ProductID != 2 || items[1].ProductID != 1 {
		t.Errorf("round trip lost order: %+v", items)
	}
	if restored.Quantity(1) != 4 {
		t.Errorf("round trip lost quantity: %d", restored.Quantity(1))
	}
}
