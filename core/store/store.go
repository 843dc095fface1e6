// Package store persists anchors between sessions. The Store interface
// is the repository boundary used by the CLI and the watcher; SQLiteStore
// is the standard implementation, keeping selector JSON in a single
// database file keyed by selector ID alongside the fingerprint of the
// document snapshot each anchor was created against.
package store

import (
	"context"

	"github.com/quillmark/driftanchor/core/anchor"
)

// Record is one stored anchor together with the fingerprint of the
// document snapshot it was created against.
type Record struct {
	Selector    *anchor.MultiSelector
	Fingerprint string
}

// Store is the anchor repository. Implementations must be safe for
// concurrent use. Selectors returned by a Store may be shared between
// callers; treat them as read-only.
type Store interface {
	// Save inserts the anchor, or replaces the stored anchor with the
	// same selector ID.
	Save(ctx context.Context, fingerprint string, sel *anchor.MultiSelector) error

	// Get returns the anchor with the given selector ID. The error
	// unwraps to ErrAnchorNotFound when no such anchor exists.
	Get(ctx context.Context, id string) (*anchor.MultiSelector, error)

	// List returns every stored anchor in creation order.
	List(ctx context.Context) ([]Record, error)

	// ListByDocument returns the anchors created against the snapshot
	// with the given fingerprint, in creation order.
	ListByDocument(ctx context.Context, fingerprint string) ([]Record, error)

	// Delete removes an anchor. The error unwraps to ErrAnchorNotFound
	// when no such anchor exists.
	Delete(ctx context.Context, id string) error

	// Close releases the store's resources.
	Close() error
}
