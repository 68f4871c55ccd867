// Package snapshot persists package documents in PostgreSQL as JSONB rows.
// The table is the durable source of truth; search replicas bulk-load it at
// boot and then follow the Kafka event stream.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/pkg/errors"
	"github.com/packdex/search-platform/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS package_documents (
    package    TEXT PRIMARY KEY,
    document   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// loadBatchSize bounds how many rows one LoadAll query page returns.
const loadBatchSize = 500

// Store reads and writes package document snapshots.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "snapshot-store"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}
	return nil
}

// Upsert stores a document, replacing any previous snapshot of the package.
func (s *Store) Upsert(ctx context.Context, doc *search.PackageDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", doc.Package, err)
	}
	const q = `
		INSERT INTO package_documents (package, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (package)
		DO UPDATE SET document = EXCLUDED.document, updated_at = now()`
	if _, err := s.db.DB.ExecContext(ctx, q, doc.Package, data); err != nil {
		return fmt.Errorf("%w: upserting %s: %v", errors.ErrStoreUnavailable, doc.Package, err)
	}
	return nil
}

// Delete removes a package snapshot. Deleting an absent package is not an
// error.
func (s *Store) Delete(ctx context.Context, name string) error {
	const q = `DELETE FROM package_documents WHERE package = $1`
	if _, err := s.db.DB.ExecContext(ctx, q, name); err != nil {
		return fmt.Errorf("%w: deleting %s: %v", errors.ErrStoreUnavailable, name, err)
	}
	return nil
}

// Get returns the snapshot of one package.
func (s *Store) Get(ctx context.Context, name string) (*search.PackageDocument, error) {
	const q = `SELECT document FROM package_documents WHERE package = $1`
	var data []byte
	err := s.db.DB.QueryRowContext(ctx, q, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", errors.ErrPackageNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", errors.ErrStoreUnavailable, name, err)
	}
	var doc search.PackageDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", name, err)
	}
	return &doc, nil
}

// LoadAll streams every stored document in batches, invoking fn per batch.
// It is used by search replicas to populate the in-memory index at boot.
func (s *Store) LoadAll(ctx context.Context, fn func(docs []*search.PackageDocument) error) (int, error) {
	const q = `
		SELECT package, document FROM package_documents
		WHERE package > $1
		ORDER BY package
		LIMIT $2`

	total := 0
	after := ""
	for {
		rows, err := s.db.DB.QueryContext(ctx, q, after, loadBatchSize)
		if err != nil {
			return total, fmt.Errorf("%w: loading snapshot batch: %v", errors.ErrStoreUnavailable, err)
		}
		batch, scanned, last, err := s.scanBatch(rows)
		if err != nil {
			return total, err
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return total, err
			}
			total += len(batch)
		}
		after = last
		if scanned < loadBatchSize {
			s.logger.Info("snapshot load complete", "packages", total)
			return total, nil
		}
	}
}

func (s *Store) scanBatch(rows *sql.Rows) ([]*search.PackageDocument, int, string, error) {
	defer rows.Close()
	var batch []*search.PackageDocument
	var last string
	scanned := 0
	for rows.Next() {
		var name string
		var data []byte
		if err := rows.Scan(&name, &data); err != nil {
			return nil, scanned, "", fmt.Errorf("scanning snapshot row: %w", err)
		}
		scanned++
		last = name
		var doc search.PackageDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			// A corrupt row must not block the whole boot.
			s.logger.Warn("skipping corrupt snapshot row", "package", name, "error", err)
			continue
		}
		batch = append(batch, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, scanned, "", fmt.Errorf("iterating snapshot rows: %w", err)
	}
	return batch, scanned, last, nil
}

// Count returns the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT count(*) FROM package_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting snapshots: %v", errors.ErrStoreUnavailable, err)
	}
	return n, nil
}
