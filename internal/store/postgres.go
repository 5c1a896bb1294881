// Package store provides storage backends for WhatsCommerce.
//
// This file implements the PostgreSQL-backed conversation store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/whatscommerce/whatscommerce/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetConversation(phoneNumber string) (*models.ConversationRecord, error) {
	query := `SELECT phone_number, state, context, created_at, updated_at
			  FROM conversations WHERE phone_number = $1`

	var rec models.ConversationRecord
	var contextJSON sql.NullString
	err := s.db.QueryRow(query, phoneNumber).Scan(
		&rec.PhoneNumber, &rec.State, &contextJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetConversation not found", "phone", phoneNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetConversation failed", "error", err, "phone", phoneNumber)
		return nil, fmt.Errorf("failed to load conversation for %s: %w", phoneNumber, err)
	}

	if contextJSON.Valid && contextJSON.String != "" {
		rec.Context = make(map[models.DataKey]string)
		if err := json.Unmarshal([]byte(contextJSON.String), &rec.Context); err != nil {
			slog.Error("PostgresStore.GetConversation context unmarshal failed", "error", err, "phone", phoneNumber)
			rec.Context = make(map[models.DataKey]string)
		}
	}
	return &rec, nil
}

func (s *PostgresStore) SaveConversation(rec models.ConversationRecord) error {
	contextJSON, err := marshalContext(rec.Context)
	if err != nil {
		slog.Error("PostgresStore.SaveConversation context marshal failed", "error", err, "phone", rec.PhoneNumber)
		return err
	}

	query := `INSERT INTO conversations (phone_number, state, context, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (phone_number) DO UPDATE
			  SET state = EXCLUDED.state, context = EXCLUDED.context, updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, rec.PhoneNumber, rec.State, contextJSON, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveConversation failed", "error", err, "phone", rec.PhoneNumber)
		return fmt.Errorf("failed to save conversation for %s: %w", rec.PhoneNumber, err)
	}
	slog.Debug("PostgresStore.SaveConversation succeeded", "phone", rec.PhoneNumber, "state", rec.State)
	return nil
}

func (s *PostgresStore) TouchConversation(phoneNumber string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE conversations SET updated_at = $1 WHERE phone_number = $2`, at, phoneNumber)
	if err != nil {
		slog.Error("PostgresStore.TouchConversation failed", "error", err, "phone", phoneNumber)
		return fmt.Errorf("failed to touch conversation for %s: %w", phoneNumber, err)
	}
	return nil
}

// Compile-time check that PostgresStore implements DedupRepo.
var _ DedupRepo = (*PostgresStore)(nil)

func (s *PostgresStore) IsDuplicate(messageID string) (bool, error) {
	var id string
	err := s.db.QueryRow(`SELECT message_id FROM inbound_dedup WHERE message_id = $1`, messageID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) RecordInbound(messageID, phoneNumber string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT INTO inbound_dedup (message_id, phone_number, received_at) VALUES ($1, $2, $3)
		 ON CONFLICT (message_id) DO NOTHING`,
		messageID, phoneNumber, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record inbound rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var processedAt sql.NullTime
	err = s.db.QueryRow(`SELECT processed_at FROM inbound_dedup WHERE message_id = $1`, messageID).Scan(&processedAt)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	// Recorded but never marked processed: a failed attempt being retried.
	return !processedAt.Valid, nil
}

func (s *PostgresStore) MarkProcessed(messageID string) error {
	_, err := s.db.Exec(`UPDATE inbound_dedup SET processed_at = $1 WHERE message_id = $2`, time.Now(), messageID)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
