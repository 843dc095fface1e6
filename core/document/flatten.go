package document

import "sort"

// LeafSpan records where one leaf's text sits in the flattened stream:
// the half-open rune range [Start, End).
type LeafSpan struct {
	Leaf  Leaf
	Start int
	End   int
}

// Flattened is the concatenation of a document's leaf texts in document
// order, with an index mapping absolute rune offsets back to leaves. It
// is built by one linear walk and is immutable afterwards, so one
// Flattened may serve many resolutions concurrently.
//
// All offsets are rune offsets. Leaves with empty text contribute
// nothing to the stream and are not indexed.
type Flattened struct {
	runes []rune
	spans []LeafSpan
	index map[Leaf]int
}

// Flatten builds the flattened text stream for one document snapshot.
func Flatten(m Model) *Flattened {
	leaves := m.Leaves()
	f := &Flattened{index: make(map[Leaf]int, len(leaves))}
	for _, leaf := range leaves {
		text := leaf.Text()
		if text == "" {
			continue
		}
		start := len(f.runes)
		f.runes = append(f.runes, []rune(text)...)
		f.index[leaf] = len(f.spans)
		f.spans = append(f.spans, LeafSpan{Leaf: leaf, Start: start, End: len(f.runes)})
	}
	return f
}

// Len returns the rune length of the flattened text.
func (f *Flattened) Len() int {
	return len(f.runes)
}

// Text returns the full flattened text.
func (f *Flattened) Text() string {
	return string(f.runes)
}

// Runes returns the flattened text as runes. Callers must not modify the
// returned slice.
func (f *Flattened) Runes() []rune {
	return f.runes
}

// Slice returns the text at [start, end). The second return is false
// when the range falls outside the document.
func (f *Flattened) Slice(start, end int) (string, bool) {
	if start < 0 || end < start || end > len(f.runes) {
		return "", false
	}
	return string(f.runes[start:end]), true
}

// Before returns up to width runes of text ending at offset. The window
// is truncated at the document start.
func (f *Flattened) Before(offset, width int) string {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.runes) {
		offset = len(f.runes)
	}
	start := offset - width
	if start < 0 {
		start = 0
	}
	return string(f.runes[start:offset])
}

// After returns up to width runes of text starting at offset. The window
// is truncated at the document end.
func (f *Flattened) After(offset, width int) string {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.runes) {
		offset = len(f.runes)
	}
	end := offset + width
	if end > len(f.runes) {
		end = len(f.runes)
	}
	return string(f.runes[offset:end])
}

// PositionAt maps an absolute offset to a leaf-local position, biased
// toward span starts: an offset on a leaf boundary lands at offset 0 of
// the following leaf. Valid for 0 <= offset <= Len(); offset == Len()
// lands just past the last leaf's text.
func (f *Flattened) PositionAt(offset int) (Position, bool) {
	if offset < 0 || offset > len(f.runes) || len(f.spans) == 0 {
		return Position{}, false
	}
	i := sort.Search(len(f.spans), func(i int) bool { return f.spans[i].End > offset })
	if i == len(f.spans) {
		last := f.spans[len(f.spans)-1]
		return Position{Leaf: last.Leaf, Offset: last.End - last.Start}, true
	}
	s := f.spans[i]
	return Position{Leaf: s.Leaf, Offset: offset - s.Start}, true
}

// EndPositionAt maps an absolute offset to a leaf-local position, biased
// toward span ends: an offset on a leaf boundary lands just past the
// preceding leaf's text, keeping a span's end inside the leaf the span
// ends in.
func (f *Flattened) EndPositionAt(offset int) (Position, bool) {
	if offset < 0 || offset > len(f.runes) || len(f.spans) == 0 {
		return Position{}, false
	}
	i := sort.Search(len(f.spans), func(i int) bool { return f.spans[i].End >= offset })
	if i == len(f.spans) {
		i = len(f.spans) - 1
	}
	s := f.spans[i]
	return Position{Leaf: s.Leaf, Offset: offset - s.Start}, true
}

// Offset maps a leaf-local position to its absolute offset in the
// flattened text. The second return is false when the leaf is not part
// of the flattened document or the local offset is out of range.
func (f *Flattened) Offset(p Position) (int, bool) {
	i, ok := f.index[p.Leaf]
	if !ok {
		return 0, false
	}
	s := f.spans[i]
	if p.Offset < 0 || p.Offset > s.End-s.Start {
		return 0, false
	}
	return s.Start + p.Offset, true
}
