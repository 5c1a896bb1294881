// Package cart implements the conversation-scoped shopping cart.
//
// A cart is an ordered mapping of product id to quantity. It lives inside a
// conversation's context document and is emptied on successful order
// creation or explicit cancellation.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"github.com/whatscommerce/whatscommerce/internal/catalog"
	"github.com/whatscommerce/whatscommerce/internal/models"
)

// Item is one product/quantity pair. Insertion order is preserved.
type Item struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Line is a rendered cart line produced by Snapshot.
type Line struct {
	Product   models.Product
	Quantity  int
	LineTotal float64
}

// Cart holds the not-yet-committed product selections of one conversation.
// It is not safe for concurrent use; the conversation engine serializes
// access per phone number.
type Cart struct {
	items []Item
}

// New creates an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add inserts quantity units of a product, merging with an existing line.
// It fails with models.ErrOutOfStock when the requested total (existing +
// new) exceeds the currently available stock, and with models.ErrNotFound
// when the product does not exist. On failure the cart is unchanged.
func (c *Cart) Add(ctx context.Context, gw catalog.Gateway, productID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}

	product, err := gw.Get(ctx, productID)
	if err != nil {
		slog.Warn("Cart.Add product lookup failed", "error", err, "product_id", productID)
		return err
	}

	requested := c.Quantity(productID) + quantity
	if requested > product.Stock {
		slog.Info("Cart.Add rejected for insufficient stock",
			"product_id", productID, "requested", requested, "stock", product.Stock)
		return fmt.Errorf("product %d: requested %d, stock %d: %w",
			productID, requested, product.Stock, models.ErrOutOfStock)
	}

	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity += quantity
			return nil
		}
	}
	c.items = append(c.items, Item{ProductID: productID, Quantity: quantity})
	return nil
}

// Remove deletes a product line. Returns false if the product was not present.
func (c *Cart) Remove(productID int64) bool {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Quantity returns the quantity of a product, or 0 if absent.
func (c *Cart) Quantity(productID int64) int {
	for _, it := range c.items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

// Len returns the number of distinct product lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// Items returns a copy of the cart's lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Snapshot produces a lazy, finite, restartable sequence of rendered lines
// for display. It never mutates the cart. Lines whose product can no longer
// be resolved are skipped; order assembly re-validates stock anyway.
func (c *Cart) Snapshot(ctx context.Context, gw catalog.Gateway) iter.Seq[Line] {
	items := c.Items()
	return func(yield func(Line) bool) {
		for _, it := range items {
			product, err := gw.Get(ctx, it.ProductID)
			if err != nil {
				slog.Warn("Cart.Snapshot skipping unresolvable line", "error", err, "product_id", it.ProductID)
				continue
			}
			line := Line{
				Product:   *product,
				Quantity:  it.Quantity,
				LineTotal: product.Price * float64(it.Quantity),
			}
			if !yield(line) {
				return
			}
		}
	}
}

// MarshalJSON encodes the cart as an ordered array of items.
func (c *Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.items)
}

// UnmarshalJSON decodes an ordered array of items.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to decode cart: %w", err)
	}
	c.items = items
	return nil
}
