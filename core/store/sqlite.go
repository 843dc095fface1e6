package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/cache"
	"github.com/quillmark/driftanchor/core/errors"
)

// DriverName returns the database/sql driver name the store was built
// with.
func DriverName() string {
	return driverName
}

// DriverType identifies the underlying SQLite implementation: "purego"
// for modernc.org/sqlite, "cgo" for mattn/go-sqlite3.
func DriverType() string {
	return driverType
}

// schema is applied on every open. Timestamps are unix nanoseconds so
// creation order is a plain integer sort.
const schema = `
CREATE TABLE IF NOT EXISTS anchors (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anchors_fingerprint ON anchors(fingerprint);
`

// SQLiteStore is the standard Store implementation. Recently read
// selectors are kept in an LRU so repeated lookups skip the JSON parse.
type SQLiteStore struct {
	db    *sql.DB
	cache *cache.SelectorCache
}

var _ Store = (*SQLiteStore)(nil)

// Open opens the anchor database at path, creating it and applying the
// schema if needed. Use ":memory:" for an in-memory store.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening anchor database: %w", err)
	}

	// A single connection keeps :memory: databases coherent across the
	// pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying anchor schema: %w", err)
	}

	return &SQLiteStore{
		db:    db,
		cache: cache.NewDefaultSelectorCache(),
	}, nil
}

// Save inserts or replaces the anchor under its selector ID.
func (s *SQLiteStore) Save(ctx context.Context, fingerprint string, sel *anchor.MultiSelector) error {
	if sel == nil {
		return errors.NewValidation("selector", "is nil")
	}
	if sel.ID == "" {
		return errors.NewValidation("selector.id", "is empty")
	}
	if fingerprint == "" {
		return errors.NewValidation("fingerprint", "is empty")
	}
	if errs := anchor.Validate(sel); len(errs) > 0 {
		return errors.NewValidation("selector", errs[0].Error())
	}

	payload, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("encoding anchor %s: %w", sel.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO anchors (id, fingerprint, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			payload     = excluded.payload,
			created_at  = excluded.created_at`,
		sel.ID, fingerprint, string(payload), sel.CreatedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("saving anchor %s: %w", sel.ID, err)
	}

	// Drop any cached copy instead of priming the cache with the
	// caller's pointer. The next Get re-reads the stored form.
	s.cache.Remove(sel.ID)
	return nil
}

// Get returns the anchor with the given selector ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*anchor.MultiSelector, error) {
	if sel, ok := s.cache.Get(id); ok {
		return sel, nil
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM anchors WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewAnchorNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading anchor %s: %w", id, err)
	}

	sel := &anchor.MultiSelector{}
	if err := json.Unmarshal([]byte(payload), sel); err != nil {
		return nil, fmt.Errorf("decoding anchor %s: %w", id, err)
	}

	s.cache.Put(id, sel)
	return sel, nil
}

// List returns every stored anchor in creation order.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fingerprint, payload FROM anchors ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing anchors: %w", err)
	}
	return scanRecords(rows)
}

// ListByDocument returns the anchors created against the snapshot with
// the given fingerprint, in creation order.
func (s *SQLiteStore) ListByDocument(ctx context.Context, fingerprint string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fingerprint, payload FROM anchors WHERE fingerprint = ? ORDER BY created_at, id`,
		fingerprint)
	if err != nil {
		return nil, fmt.Errorf("listing anchors for document: %w", err)
	}
	return scanRecords(rows)
}

// Delete removes the anchor with the given selector ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM anchors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting anchor %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting anchor %s: %w", id, err)
	}
	if n == 0 {
		return errors.NewAnchorNotFound(id)
	}

	s.cache.Remove(id)
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.cache.Clear()
	return s.db.Close()
}

// CacheStats reports hit and miss counters for the selector cache.
func (s *SQLiteStore) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			id          string
			fingerprint string
			payload     string
		)
		if err := rows.Scan(&id, &fingerprint, &payload); err != nil {
			return nil, fmt.Errorf("scanning anchor row: %w", err)
		}

		sel := &anchor.MultiSelector{}
		if err := json.Unmarshal([]byte(payload), sel); err != nil {
			return nil, fmt.Errorf("decoding anchor %s: %w", id, err)
		}
		records = append(records, Record{Selector: sel, Fingerprint: fingerprint})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading anchor rows: %w", err)
	}
	return records, nil
}
