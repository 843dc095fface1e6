// Package document defines the abstract document model the anchoring
// engine consumes: ordered text-bearing leaves, structural path lookup,
// and a flattened text stream with offset mapping. Concrete models
// (in-memory trees, parsed HTML or XML) adapt their node types to the
// interfaces here; the engine never touches a live DOM.
package document

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/quillmark/driftanchor/core/anchor"
)

// Leaf is a handle to one text-bearing leaf of a document. Implementations
// must be comparable: two Leaf values are equal exactly when they denote
// the same leaf of the same snapshot.
type Leaf interface {
	// Text returns the leaf's text content.
	Text() string
}

// Model is one document snapshot. It is read-only for the duration of an
// anchoring or resolution pass; concurrent resolution against the same
// snapshot is safe.
type Model interface {
	// Leaves returns all text-bearing leaves in document order.
	Leaves() []Leaf

	// PathTo returns the structural path from the root to the given leaf.
	// The leaf must belong to this snapshot.
	PathTo(leaf Leaf) (anchor.Path, error)

	// ResolvePath walks a structural path from the root and returns the
	// addressed leaf. The returned error unwraps to ErrNodeNotFound when
	// the path no longer resolves.
	ResolvePath(path anchor.Path) (Leaf, error)
}

// Fingerprinter is an optional interface for models that can cheaply
// identify their content. Equal fingerprints assert interchangeable
// snapshots; flattening caches key on it. Mutable models should not
// implement it.
type Fingerprinter interface {
	Fingerprint() string
}

// FingerprintBytes computes a BLAKE3 content fingerprint over raw
// document bytes. Parse-once adapters hash their source with it.
func FingerprintBytes(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Position is a point in a document: a leaf and a rune offset within the
// leaf's text. Offset may equal the leaf's rune length, addressing the
// point just past its last character.
type Position struct {
	Leaf   Leaf
	Offset int
}

// Span is a half-open text range [Start, End) in leaf-local coordinates.
// Start and End may sit in different leaves; End must not precede Start
// in document order.
type Span struct {
	Start Position
	End   Position
}
