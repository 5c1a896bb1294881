// Package conversation implements the WhatsCommerce conversation state machine.
//
// Every inbound message is handled under a per-phone lock: load the
// conversation record, dispatch on its state, and persist the outcome in a
// single save. Absence of a record is equivalent to the initial state with an
// empty context.
package conversation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/models"
	"github.com/whatscommerce/whatscommerce/internal/store"
)

// Manager loads and persists conversation records on top of a store.Store.
type Manager struct {
	store store.Store
}

// NewManager creates a Manager over the given store.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// Current returns the conversation record for a phone number. When no record
// exists yet it returns a fresh, unpersisted record in the initial state.
func (m *Manager) Current(phoneNumber string, now time.Time) (models.ConversationRecord, error) {
	rec, err := m.store.GetConversation(phoneNumber)
	if err != nil {
		slog.Error("Manager.Current failed to load conversation", "error", err, "phone", phoneNumber)
		return models.ConversationRecord{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	if rec == nil {
		return models.ConversationRecord{
			PhoneNumber: phoneNumber,
			State:       models.StateInitial,
			Context:     make(map[models.DataKey]string),
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil
	}
	if rec.Context == nil {
		rec.Context = make(map[models.DataKey]string)
	}
	return *rec, nil
}

// Save persists the record with an updated modification timestamp.
func (m *Manager) Save(rec models.ConversationRecord, now time.Time) error {
	if !models.IsValidState(rec.State) {
		return fmt.Errorf("refusing to save invalid state %q", rec.State)
	}
	rec.UpdatedAt = now
	if err := m.store.SaveConversation(rec); err != nil {
		slog.Error("Manager.Save failed", "error", err, "phone", rec.PhoneNumber, "state", rec.State)
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// phoneLocks hands out one mutex per phone number so messages from the same
// sender are processed strictly one at a time.
type phoneLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPhoneLocks() *phoneLocks {
	return &phoneLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *phoneLocks) get(phoneNumber string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[phoneNumber]
	if !ok {
		l = &sync.Mutex{}
		p.locks[phoneNumber] = l
	}
	return l
}
