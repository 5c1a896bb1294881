package commerce

import (
	"context"
	"fmt"
	"sync"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// MockBackend implements Backend in memory (for tests).
type MockBackend struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*models.Order
	// Prices resolves line totals per product id; unset products total 0.
	Prices map[int64]float64
	// CreateErr, AddLineErr and FinalizeErr, when set, force failures.
	CreateErr   error
	AddLineErr  error
	FinalizeErr error
	// Last holds the order returned by LastOrder; nil means ErrNotFound.
	Last *models.Order
}

var _ Backend = (*MockBackend)(nil)

// NewMockBackend creates an empty MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{nextID: 1000, orders: make(map[int64]*models.Order), Prices: make(map[int64]float64)}
}

func (m *MockBackend) CreateOrder(ctx context.Context, customerID int64) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.orders[m.nextID] = &models.Order{ID: m.nextID, Status: "pending"}
	return m.nextID, nil
}

func (m *MockBackend) AddLine(ctx context.Context, orderID, productID int64, quantity int) error {
	if m.AddLineErr != nil {
		return m.AddLineErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	lineTotal := m.Prices[productID] * float64(quantity)
	order.Lines = append(order.Lines, models.OrderLine{
		ProductID: productID, Quantity: quantity, Total: lineTotal,
	})
	return nil
}

func (m *MockBackend) Finalize(ctx context.Context, orderID int64) (models.Order, error) {
	if m.FinalizeErr != nil {
		return models.Order{}, m.FinalizeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return models.Order{}, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	order.Total = 0
	for _, l := range order.Lines {
		order.Total += l.Total
	}
	return *order, nil
}

func (m *MockBackend) LastOrder(ctx context.Context, customerID int64) (*models.Order, error) {
	if m.Last == nil {
		return nil, models.ErrNotFound
	}
	cp := *m.Last
	return &cp, nil
}

// Order returns a created order by id (test helper).
func (m *MockBackend) Order(orderID int64) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID]
}
