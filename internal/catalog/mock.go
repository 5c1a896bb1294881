package catalog

import (
	"context"
	"strings"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// MockGateway implements Gateway over a fixed product list (for tests).
type MockGateway struct {
	Products []models.Product
	// SearchErr and GetErr, when set, are returned instead of results.
	SearchErr error
	GetErr    error
	// SearchCalls records the terms passed to Search.
	SearchCalls []string
}

var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a MockGateway with the given products.
func NewMockGateway(products ...models.Product) *MockGateway {
	return &MockGateway{Products: products}
}

func (m *MockGateway) Search(ctx context.Context, term string, limit int) ([]models.Product, error) {
	m.SearchCalls = append(m.SearchCalls, term)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	var out []models.Product
	for _, p := range m.Products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockGateway) Get(ctx context.Context, id int64) (*models.Product, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, p := range m.Products {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

// SetStock adjusts the stock of a product in place (test helper).
func (m *MockGateway) SetStock(id int64, stock int) {
	for i := range m.Products {
		if m.Products[i].ID == id {
			m.Products[i].Stock = stock
		}
	}
}
