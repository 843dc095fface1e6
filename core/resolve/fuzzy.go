package resolve

import (
	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/core/errors"
	"github.com/quillmark/driftanchor/core/textmatch"
)

// ResolveFuzzy restores a span by approximate search over the flattened
// document text. Candidates are scanned in document order and the first
// whose averaged context similarity reaches the selector's threshold wins.
// Unlike the other tiers, insufficient context similarity is a hard
// failure: an uncorroborated fuzzy match on repeated text is too likely to
// be the wrong occurrence.
func (e *Engine) ResolveFuzzy(m document.Model, sel *anchor.FuzzySelector) (*ResolvedSpan, error) {
	return e.resolveFuzzy(e.flatten(m), sel)
}

func (e *Engine) resolveFuzzy(flat *document.Flattened, sel *anchor.FuzzySelector) (*ResolvedSpan, error) {
	patternLen := len([]rune(sel.Text))
	if patternLen == 0 {
		return nil, errors.NewNoMatch(sel.Text)
	}

	budget := int(float64(patternLen) * e.maxErrorRate)
	matches := textmatch.Search(flat.Runes(), sel.Text, budget)
	if len(matches) == 0 {
		return nil, errors.NewNoMatch(sel.Text)
	}

	threshold := sel.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = anchor.DefaultThreshold
	}

	bestSim := 0.0
	for _, match := range matches {
		sim := e.contextSimilarity(flat, match, sel)
		if sim >= threshold {
			start, ok := flat.PositionAt(match.Start)
			if !ok {
				continue
			}
			end, ok := flat.EndPositionAt(match.End)
			if !ok {
				continue
			}
			return &ResolvedSpan{
				Start: start,
				End:   end,
				Tier:  anchor.TierFuzzy,
			}, nil
		}
		if sim > bestSim {
			bestSim = sim
		}
	}

	return nil, errors.NewContextDissimilar(bestSim, threshold)
}

// contextSimilarity scores a candidate match against the selector's stored
// context windows: edit-distance similarity of the before windows and of
// the after windows, averaged. Windows are extracted at the stored
// windows' own lengths, so a selector captured near a document edge is
// not penalized for the missing text.
func (e *Engine) contextSimilarity(flat *document.Flattened, match textmatch.Match, sel *anchor.FuzzySelector) float64 {
	beforeWidth := len([]rune(sel.TextBefore))
	afterWidth := len([]rune(sel.TextAfter))

	before := flat.Before(match.Start, beforeWidth)
	after := flat.After(match.End, afterWidth)

	simBefore := textmatch.Similarity(before, sel.TextBefore)
	simAfter := textmatch.Similarity(after, sel.TextAfter)
	return (simBefore + simAfter) / 2
}
