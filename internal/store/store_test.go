package store

import (
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

func TestInMemoryStoreConversationRoundTrip(t *testing.T) {
	s := NewInMemoryStore()

	rec, err := s.GetConversation("+10000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatal("expected nil record for unseen phone number")
	}

	now := time.Now()
	saved := models.ConversationRecord{
		PhoneNumber: "+10000000001",
		State:       models.StateMenu,
		Context:     map[models.DataKey]string{models.DataKeyUserID: "7"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.SaveConversation(saved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetConversation("+10000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.State != models.StateMenu || got.Context[models.DataKeyUserID] != "7" {
		t.Errorf("conversation not stored or retrieved correctly: %+v", got)
	}

	// Mutating the returned context must not affect the stored copy.
	got.Context[models.DataKeyUserID] = "99"
	again, _ := s.GetConversation("+10000000001")
	if again.Context[models.DataKeyUserID] != "7" {
		t.Error("stored context mutated through returned record")
	}
}

func TestInMemoryStoreTouch(t *testing.T) {
	s := NewInMemoryStore()
	created := time.Now().Add(-time.Hour)
	rec := models.ConversationRecord{
		PhoneNumber: "+1", State: models.StateInitial, CreatedAt: created, UpdatedAt: created,
	}
	if err := s.SaveConversation(rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	later := time.Now()
	if err := s.TouchConversation("+1", later); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := s.GetConversation("+1")
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("expected updated_at %v, got %v", later, got.UpdatedAt)
	}
	if got.State != models.StateInitial {
		t.Error("touch must not change state")
	}
}

func TestInMemoryStoreDedup(t *testing.T) {
	s := NewInMemoryStore()
	first, err := s.RecordInbound("SM123", "+1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Error("first record should not be a duplicate")
	}
	retry, err := s.RecordInbound("SM123", "+1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !retry {
		t.Error("unprocessed message must be let through for retry")
	}
	dup, err := s.IsDuplicate("SM123")
	if err != nil || !dup {
		t.Errorf("expected SM123 to be known, got dup=%v err=%v", dup, err)
	}
	if err := s.MarkProcessed("SM123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	replay, err := s.RecordInbound("SM123", "+1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replay {
		t.Error("processed message must be reported as duplicate")
	}
}

func TestSQLiteStoreConversationRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "whatscommerce.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	defer s.Close()

	rec, err := s.GetConversation("+10000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatal("expected nil record for unseen phone number")
	}

	now := time.Now().UTC().Truncate(time.Second)
	saved := models.ConversationRecord{
		PhoneNumber: "+10000000001",
		State:       models.StateSearching,
		Context:     map[models.DataKey]string{models.DataKeyCart: `[{"product_id":3,"quantity":2}]`},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.SaveConversation(saved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetConversation("+10000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.State != models.StateSearching {
		t.Fatalf("conversation not stored correctly: %+v", got)
	}
	if got.Context[models.DataKeyCart] != saved.Context[models.DataKeyCart] {
		t.Errorf("context not preserved: %+v", got.Context)
	}

	// Upsert replaces state while keeping the key unique.
	saved.State = models.StateMenu
	saved.Context = nil
	if err := s.SaveConversation(saved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = s.GetConversation("+10000000001")
	if got.State != models.StateMenu || got.Context != nil {
		t.Errorf("upsert did not replace record: %+v", got)
	}
}

func TestSQLiteStoreDedup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "whatscommerce.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	defer s.Close()

	first, err := s.RecordInbound("SM900", "+1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Error("first record should not be a duplicate")
	}
	retry, err := s.RecordInbound("SM900", "+1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !retry {
		t.Error("unprocessed message must be let through for retry")
	}
	if err := s.MarkProcessed("SM900"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	replay, err := s.RecordInbound("SM900", "+1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replay {
		t.Error("processed message must be reported as duplicate")
	}
}

func TestPostgresStore(t *testing.T) {
	// This test requires a running PostgreSQL instance.
	// Set the DATABASE_URL environment variable for the connection string.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	pgStore.db.Exec("DELETE FROM conversations")

	now := time.Now().UTC().Truncate(time.Second)
	rec := models.ConversationRecord{
		PhoneNumber: "+10000000009", State: models.StatePayment, CreatedAt: now, UpdatedAt: now,
	}
	if err := pgStore.SaveConversation(rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := pgStore.GetConversation("+10000000009")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.State != models.StatePayment {
		t.Error("conversation not stored or retrieved correctly in Postgres")
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
