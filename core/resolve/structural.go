package resolve

import (
	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/core/errors"
)

// ResolveStructural restores a span by walking the stored path from the
// document root and verifying the leaf text at the stored offsets. Exact
// text equality is the hard requirement; the context windows are advisory
// and only set ContextWarning on the returned span.
func (e *Engine) ResolveStructural(m document.Model, sel *anchor.StructuralSelector) (*ResolvedSpan, error) {
	leaf, err := m.ResolvePath(sel.Path)
	if err != nil {
		return nil, err
	}

	leafRunes := []rune(leaf.Text())
	if sel.StartOffset < 0 || sel.EndOffset > len(leafRunes) || sel.StartOffset > sel.EndOffset {
		return nil, errors.NewTextMismatch("structural leaf", sel.Text, "")
	}

	got := string(leafRunes[sel.StartOffset:sel.EndOffset])
	if got != sel.Text {
		return nil, errors.NewTextMismatch("structural leaf", sel.Text, got)
	}

	warning := leafWindowDrifted(leafRunes, sel.StartOffset, sel.TextBefore, true) ||
		leafWindowDrifted(leafRunes, sel.EndOffset, sel.TextAfter, false)

	return &ResolvedSpan{
		Start:          document.Position{Leaf: leaf, Offset: sel.StartOffset},
		End:            document.Position{Leaf: leaf, Offset: sel.EndOffset},
		Tier:           anchor.TierStructural,
		ContextWarning: warning,
	}, nil
}

// leafWindowDrifted compares a stored leaf-local context window against the
// leaf's current text. The comparison uses the stored window's own length,
// so windows clipped at a leaf boundary at capture time still match.
func leafWindowDrifted(leafRunes []rune, offset int, stored string, before bool) bool {
	if stored == "" {
		return false
	}
	width := len([]rune(stored))

	var got string
	if before {
		start := offset - width
		if start < 0 {
			start = 0
		}
		got = string(leafRunes[start:offset])
	} else {
		end := offset + width
		if end > len(leafRunes) {
			end = len(leafRunes)
		}
		got = string(leafRunes[offset:end])
	}
	return got != stored
}
