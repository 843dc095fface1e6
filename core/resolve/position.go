package resolve

import (
	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/core/errors"
)

// ResolvePosition restores a span by its absolute rune offsets into the
// flattened document text. It survives structural reshuffling that keeps
// the flattened text intact up to the span, but any insertion or deletion
// before the span shifts the offsets and fails the text check.
func (e *Engine) ResolvePosition(m document.Model, sel *anchor.PositionSelector) (*ResolvedSpan, error) {
	return e.resolvePosition(e.flatten(m), sel)
}

func (e *Engine) resolvePosition(flat *document.Flattened, sel *anchor.PositionSelector) (*ResolvedSpan, error) {
	got, ok := flat.Slice(sel.StartOffset, sel.EndOffset)
	if !ok {
		return nil, errors.NewTextMismatch("flattened text", sel.Text, "")
	}
	if got != sel.Text {
		return nil, errors.NewTextMismatch("flattened text", sel.Text, got)
	}

	warning := flatWindowDrifted(flat, sel.StartOffset, sel.TextBefore, true) ||
		flatWindowDrifted(flat, sel.EndOffset, sel.TextAfter, false)

	start, ok := flat.PositionAt(sel.StartOffset)
	if !ok {
		return nil, errors.NewTextMismatch("flattened text", sel.Text, "")
	}
	end, ok := flat.EndPositionAt(sel.EndOffset)
	if !ok {
		return nil, errors.NewTextMismatch("flattened text", sel.Text, "")
	}

	return &ResolvedSpan{
		Start:          start,
		End:            end,
		Tier:           anchor.TierPosition,
		ContextWarning: warning,
	}, nil
}

// flatWindowDrifted compares a stored context window against the flattened
// text at the stored window's own length.
func flatWindowDrifted(flat *document.Flattened, offset int, stored string, before bool) bool {
	if stored == "" {
		return false
	}
	width := len([]rune(stored))

	var got string
	if before {
		got = flat.Before(offset, width)
	} else {
		got = flat.After(offset, width)
	}
	return got != stored
}
