// Package catalog provides the product catalog gateway consumed by the
// conversation engine: free-text search and per-product stock lookup.
package catalog

import (
	"context"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// Gateway is the narrow interface the rest of the system depends on.
// Implementations must bound their calls by the supplied context.
type Gateway interface {
	// Search returns up to limit products matching the free-text term.
	Search(ctx context.Context, term string, limit int) ([]models.Product, error)

	// Get returns one product by id, or models.ErrNotFound.
	Get(ctx context.Context, id int64) (*models.Product, error)
}
