// Package anchor defines the portable selector model for re-locating text
// spans in mutable tree-structured documents.
//
// A selector describes a span of text independently of any particular
// document snapshot, so that the span can be found again after the document
// has been edited, reflowed, or partially regenerated. Because no single
// description survives every kind of change, a span is captured three ways
// at once and the descriptions are tried in order of decreasing precision
// at restoration time.
//
// # Selector Tiers
//
// The three selectors answer the same question with different trade-offs:
//
//   - StructuralSelector: an indexed-sibling path from the document root to
//     the leaf holding the span, plus in-leaf offsets. Fast to resolve and
//     exact, but brittle when nodes are inserted or removed above the leaf.
//   - PositionSelector: absolute character offsets into the flattened
//     document text. Survives structural reshuffling that preserves text
//     order, but brittle to edits before the span.
//   - FuzzySelector: the span text plus wide context windows, matched
//     approximately. Slow, but survives paraphrasing and content drift.
//
// A MultiSelector aggregates all three with a cheap content hash used for
// deduplication before any expensive resolution work.
//
// # Paths
//
// A structural path is an ordered list of (kind, index) steps from the root
// to a leaf, where index is the 1-based position among same-kind siblings.
// Text leaves use the kind "#text". Paths have a compact string form,
//
//	article[1]/p[2]/#text[1]
//
// parseable with ParsePath. The concept is deliberately markup-agnostic: the
// same path addresses a node in an HTML DOM, an XML tree, or any ordered
// tree the host exposes.
//
// # Wire Format
//
// Selectors are created once, are immutable thereafter, and round-trip
// through JSON unchanged so external repositories can persist and sync them
// without understanding their contents. Field names in the JSON form are
// part of the contract.
//
// All offsets in this package are character (rune) offsets, not byte
// offsets. Context windows are likewise counted in runes.
package anchor
