package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go-design-analyzer/pkg/models"
)

// AnalysisStore defines the persistence gateway for final analysis records.
// Writes are idempotent upserts keyed by the analyzed image ID so retries
// are always safe.
type AnalysisStore interface {
	// SaveRecord upserts the record for its image ID
	SaveRecord(ctx context.Context, record *models.AnalysisRecord) error

	// GetRecord retrieves a stored record by image ID
	GetRecord(ctx context.Context, imageID string) (*models.AnalysisRecord, error)

	// Close releases the underlying store
	Close() error
}

// SQLiteStore implements AnalysisStore on an embedded sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

const createTableStmt = `
CREATE TABLE IF NOT EXISTS analysis_records (
	image_id   TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	record     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// NewSQLiteStore opens (and if needed initializes) the store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(createTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveRecord upserts the record for its image ID. Re-persisting the same
// image replaces the previous record in place.
func (s *SQLiteStore) SaveRecord(ctx context.Context, record *models.AnalysisRecord) error {
	if record == nil || record.ImageID == "" {
		return fmt.Errorf("record must have an image ID")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_records (image_id, run_id, record, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET
			run_id     = excluded.run_id,
			record     = excluded.record,
			updated_at = excluded.updated_at`,
		record.ImageID, record.Metadata.RunID, string(payload), now, now)
	if err != nil {
		return fmt.Errorf("failed to persist record: %w", err)
	}
	return nil
}

// GetRecord retrieves a stored record by image ID
func (s *SQLiteStore) GetRecord(ctx context.Context, imageID string) (*models.AnalysisRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM analysis_records WHERE image_id = ?`, imageID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var record models.AnalysisRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, fmt.Errorf("failed to decode stored record: %w", err)
	}
	return &record, nil
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
