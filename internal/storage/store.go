// Package storage persists diagnostics bundles so a document's quality
// record can be looked up after the pipeline has finished with it.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/labqc-mcp-server/internal/domain"
)

// ExportVersion is written into every JSON export.
const ExportVersion = "1.0"

// maxExportLimit is the maximum number of bundles exported at once.
const maxExportLimit = 1000000

// Store defines the interface for diagnostics persistence.
type Store interface {
	// Save stores a bundle keyed by its document id. An existing bundle
	// for the same document is replaced.
	Save(ctx context.Context, d *domain.Diagnostics) error

	// Get returns the bundle for a document, or domain.ErrNotFound.
	Get(ctx context.Context, documentID string) (*domain.Diagnostics, error)

	// List returns bundles newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.Diagnostics, error)

	// Count returns the total number of stored bundles.
	Count(ctx context.Context) (int64, error)

	// Delete removes a bundle, or returns domain.ErrNotFound.
	Delete(ctx context.Context, documentID string) error

	// ExportJSON writes every stored bundle to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads an export and saves bundles that are not stored yet.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// DiagnosticsExport represents the JSON export format.
type DiagnosticsExport struct {
	Version     string                `json:"version"`
	ExportedAt  time.Time             `json:"exported_at"`
	Count       int                   `json:"count"`
	Diagnostics []*domain.Diagnostics `json:"diagnostics"`
}

// row is the indexed projection of a bundle; the full bundle lives in payload.
type row struct {
	documentID string
	filename   string
	labType    string
	parseScore float64
	decision   string
	payload    []byte
	createdAt  int64
}

func toRow(d *domain.Diagnostics) (*row, error) {
	if d == nil || d.DocumentID == "" {
		return nil, domain.NewValidationError("document_id", "document id is required", nil)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	return &row{
		documentID: d.DocumentID,
		filename:   d.Filename,
		labType:    string(d.Detection.LabType),
		parseScore: d.Metrics.ParseScore,
		decision:   string(d.Gate.Decision),
		payload:    payload,
		createdAt:  d.CreatedAt.UnixNano(),
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDiagnostics(s scanner) (*domain.Diagnostics, error) {
	var payload []byte
	if err := s.Scan(&payload); err != nil {
		return nil, err
	}

	d := &domain.Diagnostics{}
	if err := json.Unmarshal(payload, d); err != nil {
		return nil, fmt.Errorf("failed to decode diagnostics: %w", err)
	}
	return d, nil
}

func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list diagnostics: %w", err)
	}
	if all == nil {
		all = []*domain.Diagnostics{}
	}

	export := &DiagnosticsExport{
		Version:     ExportVersion,
		ExportedAt:  time.Now().UTC(),
		Count:       len(all),
		Diagnostics: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export DiagnosticsExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, d := range export.Diagnostics {
		if d == nil || d.DocumentID == "" {
			skipped++
			continue
		}

		_, err := s.Get(ctx, d.DocumentID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if err := s.Save(ctx, d); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

func notFound(documentID string) error {
	return fmt.Errorf("diagnostics %q: %w", documentID, domain.ErrNotFound)
}
