package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/labqc-mcp-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite diagnostics store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS diagnostics (
			document_id TEXT PRIMARY KEY,
			filename TEXT NOT NULL DEFAULT '',
			lab_type TEXT NOT NULL,
			parse_score REAL NOT NULL,
			decision TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_diagnostics_lab_type ON diagnostics(lab_type);
		CREATE INDEX IF NOT EXISTS idx_diagnostics_created_at ON diagnostics(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Save stores or replaces the bundle for d.DocumentID.
func (s *SQLiteStore) Save(ctx context.Context, d *domain.Diagnostics) error {
	r, err := toRow(d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO diagnostics (
			document_id, filename, lab_type, parse_score, decision, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			filename = excluded.filename,
			lab_type = excluded.lab_type,
			parse_score = excluded.parse_score,
			decision = excluded.decision,
			payload = excluded.payload,
			created_at = excluded.created_at
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
func (s *SQLiteStore) Get(ctx context.Context, documentID string) (*domain.Diagnostics, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM diagnostics WHERE document_id = ?", documentID)

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
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.Diagnostics, error) {
	query := `
		SELECT payload FROM diagnostics
		ORDER BY created_at DESC, document_id ASC
		LIMIT ? OFFSET ?
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM diagnostics").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count diagnostics: %w", err)
	}
	return count, nil
}

// Delete removes the bundle for a document.
func (s *SQLiteStore) Delete(ctx context.Context, documentID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM diagnostics WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("failed to delete diagnostics: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(documentID)
	}
	return nil
}

// ExportJSON exports all bundles to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports bundles from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
