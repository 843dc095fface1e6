// Package resolve creates anchors for text spans and restores them against
// later snapshots of the same document.
//
// # Creation
//
// Builder captures a span as a MultiSelector holding three independent
// descriptors: a structural path with leaf-local offsets, absolute offsets
// into the flattened document text, and the bare text with wide context
// windows for approximate matching.
//
// # Restoration
//
// Engine tries the three tiers in fixed priority order and stops at the
// first success: structural (fast, brittle to tree changes), position
// (survives reshuffling that preserves the flattened text), fuzzy
// (approximate search, survives small edits). Total failure is an ordinary
// outcome reported as a value, never a panic: anchored text really does
// get deleted.
//
// # Batching
//
// Restoring many anchors against one snapshot should go through ResolveAll,
// which flattens the document once and reuses the offset index for the whole
// batch. Per-selector results are identical to one-at-a-time resolution.
package resolve

import (
	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
)

// ResolvedSpan is a successfully restored span: start and end positions in
// the target snapshot, the tier that produced them, and whether context
// verification raised a soft warning (the exact text matched but its
// surroundings drifted).
type ResolvedSpan struct {
	Start document.Position
	End   document.Position
	Tier  anchor.Tier

	// ContextWarning is set by the structural and position tiers when the
	// stored context windows no longer match the document. The span itself
	// is still trusted; context equality is advisory there.
	ContextWarning bool
}

// RestorationOutcome is the result of running the full tier chain for one
// selector. Tier is TierFailed and Span is nil when every tier failed.
type RestorationOutcome struct {
	Span *ResolvedSpan
	Tier anchor.Tier
}

// Restored reports whether any tier produced a span.
func (o RestorationOutcome) Restored() bool {
	return o.Span != nil && o.Tier != anchor.TierFailed
}
