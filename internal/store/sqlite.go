// Package store provides storage backends for WhatsCommerce.
//
// This file implements the SQLite-backed conversation store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/whatscommerce/whatscommerce/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN (a file path).
// The parent directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetConversation(phoneNumber string) (*models.ConversationRecord, error) {
	query := `SELECT phone_number, state, context, created_at, updated_at
			  FROM conversations WHERE phone_number = ?`

	var rec models.ConversationRecord
	var contextJSON sql.NullString
	err := s.db.QueryRow(query, phoneNumber).Scan(
		&rec.PhoneNumber, &rec.State, &contextJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetConversation not found", "phone", phoneNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetConversation failed", "error", err, "phone", phoneNumber)
		return nil, fmt.Errorf("failed to load conversation for %s: %w", phoneNumber, err)
	}

	if contextJSON.Valid && contextJSON.String != "" {
		rec.Context = make(map[models.DataKey]string)
		if err := json.Unmarshal([]byte(contextJSON.String), &rec.Context); err != nil {
			slog.Error("SQLiteStore.GetConversation context unmarshal failed", "error", err, "phone", phoneNumber)
			// Continue with empty context rather than failing the request.
			rec.Context = make(map[models.DataKey]string)
		}
	}
	return &rec, nil
}

func (s *SQLiteStore) SaveConversation(rec models.ConversationRecord) error {
	contextJSON, err := marshalContext(rec.Context)
	if err != nil {
		slog.Error("SQLiteStore.SaveConversation context marshal failed", "error", err, "phone", rec.PhoneNumber)
		return err
	}

	query := `INSERT OR REPLACE INTO conversations (phone_number, state, context, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, rec.PhoneNumber, rec.State, contextJSON, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveConversation failed", "error", err, "phone", rec.PhoneNumber)
		return fmt.Errorf("failed to save conversation for %s: %w", rec.PhoneNumber, err)
	}
	slog.Debug("SQLiteStore.SaveConversation succeeded", "phone", rec.PhoneNumber, "state", rec.State)
	return nil
}

func (s *SQLiteStore) TouchConversation(phoneNumber string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE conversations SET updated_at = ? WHERE phone_number = ?`, at, phoneNumber)
	if err != nil {
		slog.Error("SQLiteStore.TouchConversation failed", "error", err, "phone", phoneNumber)
		return fmt.Errorf("failed to touch conversation for %s: %w", phoneNumber, err)
	}
	return nil
}

// Compile-time check that SQLiteStore implements DedupRepo.
var _ DedupRepo = (*SQLiteStore)(nil)

func (s *SQLiteStore) IsDuplicate(messageID string) (bool, error) {
	var id string
	err := s.db.QueryRow(`SELECT message_id FROM inbound_dedup WHERE message_id = ?`, messageID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) RecordInbound(messageID, phoneNumber string) (bool, error) {
	var processedAt sql.NullTime
	err := s.db.QueryRow(`SELECT processed_at FROM inbound_dedup WHERE message_id = ?`, messageID).Scan(&processedAt)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec(
			`INSERT OR IGNORE INTO inbound_dedup (message_id, phone_number, received_at) VALUES (?, ?, ?)`,
			messageID, phoneNumber, time.Now(),
		)
		if err != nil {
			return false, fmt.Errorf("record inbound failed: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	// Recorded but never marked processed: a failed attempt being retried.
	return !processedAt.Valid, nil
}

func (s *SQLiteStore) MarkProcessed(messageID string) error {
	_, err := s.db.Exec(`UPDATE inbound_dedup SET processed_at = ? WHERE message_id = ?`, time.Now(), messageID)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

// marshalContext serializes a context map, returning nil for empty contexts
// so the column stays NULL.
func marshalContext(ctx map[models.DataKey]string) (interface{}, error) {
	if len(ctx) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation context: %w", err)
	}
	return string(b), nil
}
