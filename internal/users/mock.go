package users

import (
	"context"
	"sync"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// MockDirectory implements Directory in memory (for tests).
type MockDirectory struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[string]models.UserAccount
	// Err, when set, is returned by FindOrCreate.
	Err error
}

var _ Directory = (*MockDirectory)(nil)

// NewMockDirectory creates an empty MockDirectory.
func NewMockDirectory() *MockDirectory {
	return &MockDirectory{nextID: 100, accounts: make(map[string]models.UserAccount)}
}

func (m *MockDirectory) FindOrCreate(ctx context.Context, phoneNumber string) (models.UserAccount, error) {
	if m.Err != nil {
		return models.UserAccount{}, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[phoneNumber]; ok {
		acc.IsNew = false
		return acc, nil
	}
	m.nextID++
	acc := models.UserAccount{UserID: m.nextID, CustomerID: m.nextID, IsNew: true, Phone: phoneNumber}
	m.accounts[phoneNumber] = acc
	return acc, nil
}
