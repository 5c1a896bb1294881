// Package commerce provides the commerce backend interface used for order
// creation, plus its WooCommerce REST implementation.
package commerce

import (
	"context"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// Backend is the narrow order-creation interface consumed by order assembly.
// The backend owns orders once created; callers keep only identifiers.
type Backend interface {
	// CreateOrder opens a new draft order for a customer and returns its id.
	CreateOrder(ctx context.Context, customerID int64) (int64, error)

	// AddLine appends a product/quantity line to an existing order.
	AddLine(ctx context.Context, orderID, productID int64, quantity int) error

	// Finalize computes totals, persists the order and returns its final form.
	Finalize(ctx context.Context, orderID int64) (models.Order, error)

	// LastOrder returns the customer's most recent order, or models.ErrNotFound.
	LastOrder(ctx context.Context, customerID int64) (*models.Order, error)
}
