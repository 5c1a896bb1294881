// Package store provides storage backends for WhatsCommerce conversation state.
//
// Three backends implement the same Store interface: an in-memory store for
// tests, an SQLite store for single-host deployments, and a PostgreSQL store.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// Store persists conversation records keyed by phone number and tracks
// processed inbound message ids for webhook deduplication.
type Store interface {
	// GetConversation returns the record for a phone number, or nil if none exists.
	GetConversation(phoneNumber string) (*models.ConversationRecord, error)

	// SaveConversation inserts or replaces the record for its phone number.
	SaveConversation(rec models.ConversationRecord) error

	// TouchConversation updates only the modification timestamp.
	TouchConversation(phoneNumber string, at time.Time) error

	DedupRepo

	// Close releases the underlying resources.
	Close() error
}

// InMemoryStore is a map-backed Store for tests and ephemeral runs.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.ConversationRecord
	inbound       map[string]DedupRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]models.ConversationRecord),
		inbound:       make(map[string]DedupRecord),
	}
}

func (s *InMemoryStore) GetConversation(phoneNumber string) (*models.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.conversations[phoneNumber]
	if !ok {
		return nil, nil
	}
	// Copy the context map so callers cannot mutate stored state in place.
	cp := rec
	if rec.Context != nil {
		cp.Context = make(map[models.DataKey]string, len(rec.Context))
		for k, v := range rec.Context {
			cp.Context[k] = v
		}
	}
	return &cp, nil
}

func (s *InMemoryStore) SaveConversation(rec models.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Context != nil {
		cp := make(map[models.DataKey]string, len(rec.Context))
		for k, v := range rec.Context {
			cp[k] = v
		}
		rec.Context = cp
	}
	s.conversations[rec.PhoneNumber] = rec
	slog.Debug("InMemoryStore.SaveConversation succeeded", "phone", rec.PhoneNumber, "state", rec.State)
	return nil
}

func (s *InMemoryStore) TouchConversation(phoneNumber string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.conversations[phoneNumber]
	if !ok {
		return nil
	}
	rec.UpdatedAt = at
	s.conversations[phoneNumber] = rec
	return nil
}

func (s *InMemoryStore) IsDuplicate(messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inbound[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(messageID, phoneNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.inbound[messageID]; ok {
		// Seen but never finished: the earlier attempt failed and the
		// transport is retrying. Let it through.
		return rec.ProcessedAt == nil, nil
	}
	s.inbound[messageID] = DedupRecord{MessageID: messageID, PhoneNumber: phoneNumber, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.inbound[messageID]
	if !ok {
		return nil
	}
	now := time.Now()
	rec.ProcessedAt = &now
	s.inbound[messageID] = rec
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
