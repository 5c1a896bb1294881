// Package orders converts a cart into a commerce backend order.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/whatscommerce/whatscommerce/internal/cart"
	"github.com/whatscommerce/whatscommerce/internal/catalog"
	"github.com/whatscommerce/whatscommerce/internal/commerce"
	"github.com/whatscommerce/whatscommerce/internal/models"
)

// Publisher receives order-created notifications. Publishing is best-effort:
// failures are logged, never surfaced to the user.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, order models.Order, phoneNumber string) error
}

// Assembly creates orders from carts. It never mutates the cart itself; the
// caller clears it only after success, so a transient backend failure can be
// retried without losing the user's selections.
type Assembly struct {
	backend   commerce.Backend
	catalog   catalog.Gateway
	publisher Publisher // optional
}

// NewAssembly creates an order assembly over the given backend and catalog.
// publisher may be nil.
func NewAssembly(backend commerce.Backend, gw catalog.Gateway, publisher Publisher) *Assembly {
	return &Assembly{backend: backend, catalog: gw, publisher: publisher}
}

// Create builds a backend order from the cart's lines. Each line is
// re-validated against current stock; a line whose product disappeared or is
// no longer sufficiently stocked is skipped, not fatal. Returns
// models.ErrEmptyCart when the cart has no lines.
func (a *Assembly) Create(ctx context.Context, customerID int64, c *cart.Cart, phoneNumber string) (models.Order, error) {
	if c.Len() == 0 {
		slog.Warn("Assembly.Create rejected empty cart", "customer_id", customerID)
		return models.Order{}, models.ErrEmptyCart
	}

	orderID, err := a.backend.CreateOrder(ctx, customerID)
	if err != nil {
		slog.Error("Assembly.Create failed to open order", "error", err, "customer_id", customerID)
		return models.Order{}, fmt.Errorf("failed to create order: %w", err)
	}

	added := 0
	for _, item := range c.Items() {
		product, err := a.catalog.Get(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				slog.Warn("Assembly.Create skipping vanished product", "order_id", orderID, "product_id", item.ProductID)
				continue
			}
			slog.Error("Assembly.Create stock re-check failed", "error", err, "order_id", orderID, "product_id", item.ProductID)
			return models.Order{}, fmt.Errorf("failed to re-check stock for product %d: %w", item.ProductID, err)
		}
		if product.Stock < item.Quantity {
			slog.Warn("Assembly.Create skipping understocked product",
				"order_id", orderID, "product_id", item.ProductID, "requested", item.Quantity, "stock", product.Stock)
			continue
		}
		if err := a.backend.AddLine(ctx, orderID, item.ProductID, item.Quantity); err != nil {
			slog.Error("Assembly.Create failed to add line", "error", err, "order_id", orderID, "product_id", item.ProductID)
			return models.Order{}, fmt.Errorf("failed to add order line: %w", err)
		}
		added++
	}
	if added == 0 {
		slog.Warn("Assembly.Create no sellable lines remained", "order_id", orderID, "customer_id", customerID)
		return models.Order{}, fmt.Errorf("no sellable lines remained: %w", models.ErrEmptyCart)
	}

	order, err := a.backend.Finalize(ctx, orderID)
	if err != nil {
		slog.Error("Assembly.Create failed to finalize order", "error", err, "order_id", orderID)
		return models.Order{}, fmt.Errorf("failed to finalize order: %w", err)
	}
	slog.Info("Assembly.Create order created", "order_id", order.ID, "customer_id", customerID, "total", order.Total, "lines", added)

	if a.publisher != nil {
		if err := a.publisher.PublishOrderCreated(ctx, order, phoneNumber); err != nil {
			slog.Error("Assembly.Create order event publish failed", "error", err, "order_id", order.ID)
		}
	}
	return order, nil
}

// LastOrder returns the customer's most recent order, or models.ErrNotFound.
func (a *Assembly) LastOrder(ctx context.Context, customerID int64) (*models.Order, error) {
	return a.backend.LastOrder(ctx, customerID)
}

// Summary renders an order for WhatsApp display.
func Summary(order models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Resumen del Pedido #%d*\n\n", order.ID)
	for _, line := range order.Lines {
		fmt.Fprintf(&b, "%s x%d - $%.2f\n", line.Name, line.Quantity, line.Total)
	}
	fmt.Fprintf(&b, "\n*Total:* $%.2f", order.Total)
	fmt.Fprintf(&b, "\n*Estado:* %s", order.Status)
	return b.String()
}

// CartSummary renders the current cart with its line totals.
func CartSummary(ctx context.Context, c *cart.Cart, gw catalog.Gateway) string {
	if c.Len() == 0 {
		return "El carrito está vacío"
	}
	var b strings.Builder
	b.WriteString("*Carrito Actual*\n\n")
	total := 0.0
	for line := range c.Snapshot(ctx, gw) {
		fmt.Fprintf(&b, "%s x%d - $%.2f\n", line.Product.Name, line.Quantity, line.LineTotal)
		total += line.LineTotal
	}
	fmt.Fprintf(&b, "\n*Total:* $%.2f", total)
	return b.String()
}
