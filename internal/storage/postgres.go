package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/labqc-mcp-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL diagnostics store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or replaces the bundle for d.DocumentID.
func (s *PostgresStore) Save(ctx context.Context, d *domain.Diagnostics) error {
	r, err := toRow(d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO diagnostics (
			document_id, filename, lab_type, parse_score, decision, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_id) DO UPDATE SET
			filename = EXCLUDED.filename,
			lab_type = EXCLUDED.lab_type,
			parse_score = EXCLUDED.parse_score,
			decision = EXCLUDED.decision,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at
	`

	_, err = s.db.ExecContext(ctx, query,
		r.documentID, r.filename, r.labType, r.parseScore, r.decision, string(r.payload), r.createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save diagnostics: %w", err)
	}
	return nil
}

// Get retrieves the bundle for a document.
func (s *PostgresStore) Get(ctx context.Context, documentID string) (*domain.Diagnostics, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM diagnostics WHERE document_id = $1", documentID)

	d, err := scanDiagnostics(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get diagnostics: %w", err)
	}
	return d, nil
}

// List returns bundles newest first with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.Diagnostics, error) {
	query := `
		SELECT payload FROM diagnostics
		ORDER BY created_at DESC, document_id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics: %w", err)
	}
	defer rows.Close()

	var result []*domain.Diagnostics
	for rows.Next() {
		d, err := scanDiagnostics(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, d)
	}

	return result, rows.Err()
}

// Count returns the total number of stored bundles.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM diagnostics").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count diagnostics: %w", err)
	}
	return count, nil
}

// Delete removes the bundle for a document.
func (s *PostgresStore) Delete(ctx context.Context, documentID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM diagnostics WHERE document_id = $1", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete diagnostics: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(documentID)
	}
	return nil
}

// ExportJSON exports all bundles to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports bundles from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
