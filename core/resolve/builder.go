package resolve

import (
	"time"

	"github.com/google/uuid"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/core/errors"
)

// BuilderConfig contains anchor creation options. Zero values fall back to
// the package defaults in core/anchor.
type BuilderConfig struct {
	// ContextWindow is the context window width in runes for the structural
	// and position selectors.
	ContextWindow int

	// FuzzyWindow is the wider context window width in runes for the fuzzy
	// selector.
	FuzzyWindow int

	// Threshold is the context-similarity threshold stored in the fuzzy
	// selector.
	Threshold float64
}

// DefaultBuilderConfig returns the default creation options.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		ContextWindow: anchor.DefaultContextWindow,
		FuzzyWindow:   anchor.DefaultFuzzyWindow,
		Threshold:     anchor.DefaultThreshold,
	}
}

// Builder creates MultiSelectors for spans of one document snapshot. It
// flattens the document once at construction and reuses the offset index
// for every span built from the same snapshot.
type Builder struct {
	model  document.Model
	flat   *document.Flattened
	config BuilderConfig
}

// NewBuilder creates a Builder for the given snapshot.
func NewBuilder(m document.Model, config BuilderConfig) *Builder {
	if config.ContextWindow <= 0 {
		config.ContextWindow = anchor.DefaultContextWindow
	}
	if config.FuzzyWindow <= 0 {
		config.FuzzyWindow = anchor.DefaultFuzzyWindow
	}
	if config.Threshold <= 0 || config.Threshold > 1 {
		config.Threshold = anchor.DefaultThreshold
	}

	return &Builder{
		model:  m,
		flat:   document.Flatten(m),
		config: config,
	}
}

// NewDefaultBuilder creates a Builder with default creation options.
func NewDefaultBuilder(m document.Model) *Builder {
	return NewBuilder(m, DefaultBuilderConfig())
}

// Build captures the given span as a MultiSelector. The span's positions
// must refer to text leaves of the builder's snapshot, and the span must
// contain at least one rune. Violations fail with an InvalidSpan error.
func (b *Builder) Build(span document.Span) (*anchor.MultiSelector, error) {
	absStart, ok := b.flat.Offset(span.Start)
	if !ok {
		return nil, errors.NewInvalidSpan("start position not in document", span.Start.Offset, span.End.Offset)
	}
	absEnd, ok := b.flat.Offset(span.End)
	if !ok {
		return nil, errors.NewInvalidSpan("end position not in document", span.Start.Offset, span.End.Offset)
	}
	if absEnd < absStart {
		return nil, errors.NewInvalidSpan("end precedes start", absStart, absEnd)
	}
	if absEnd == absStart {
		return nil, errors.NewInvalidSpan("span is empty", absStart, absEnd)
	}

	text, ok := b.flat.Slice(absStart, absEnd)
	if !ok {
		return nil, errors.NewInvalidSpan("span outside document text", absStart, absEnd)
	}

	sel := &anchor.MultiSelector{
		ID: uuid.NewString(),
		Position: &anchor.PositionSelector{
			StartOffset: absStart,
			EndOffset:   absEnd,
			Text:        text,
			TextBefore:  b.flat.Before(absStart, b.config.ContextWindow),
			TextAfter:   b.flat.After(absEnd, b.config.ContextWindow),
		},
		Fuzzy: &anchor.FuzzySelector{
			Text:       text,
			TextBefore: b.flat.Before(absStart, b.config.FuzzyWindow),
			TextAfter:  b.flat.After(absEnd, b.config.FuzzyWindow),
			Threshold:  b.config.Threshold,
		},
		ContentHash: anchor.ContentHash(text),
		CreatedAt:   time.Now().UTC(),
	}

	// A single root-to-leaf path cannot express a span that crosses leaf
	// boundaries; such spans carry only the position and fuzzy selectors.
	if span.Start.Leaf == span.End.Leaf {
		structural, err := b.buildStructural(span, text)
		if err != nil {
			return nil, err
		}
		sel.Structural = structural
	}

	return sel, nil
}

// BuildAt captures the span [start, end) in absolute rune offsets over the
// flattened document text.
func (b *Builder) BuildAt(start, end int) (*anchor.MultiSelector, error) {
	startPos, ok := b.flat.PositionAt(start)
	if !ok {
		return nil, errors.NewInvalidSpan("start offset out of range", start, end)
	}
	endPos, ok := b.flat.EndPositionAt(end)
	if !ok {
		return nil, errors.NewInvalidSpan("end offset out of range", start, end)
	}
	return b.Build(document.Span{Start: startPos, End: endPos})
}

// Flattened exposes the builder's flattened snapshot, so callers that
// located a span by searching the flattened text can reuse the index.
func (b *Builder) Flattened() *document.Flattened {
	return b.flat
}

// buildStructural captures the structural selector for a leaf-local span.
// Its context windows are leaf-local: they verify the text's position
// inside the leaf, not in the whole document.
func (b *Builder) buildStructural(span document.Span, text string) (*anchor.StructuralSelector, error) {
	path, err := b.model.PathTo(span.Start.Leaf)
	if err != nil {
		return nil, errors.Wrap(err, "structural path")
	}

	leafRunes := []rune(span.Start.Leaf.Text())
	start, end := span.Start.Offset, span.End.Offset

	beforeStart := start - b.config.ContextWindow
	if beforeStart < 0 {
		beforeStart = 0
	}
	afterEnd := end + b.config.ContextWindow
	if afterEnd > len(leafRunes) {
		afterEnd = len(leafRunes)
	}

	return &anchor.StructuralSelector{
		Path:        path.Clone(),
		StartOffset: start,
		EndOffset:   end,
		Text:        text,
		TextBefore:  string(leafRunes[beforeStart:start]),
		TextAfter:   string(leafRunes[end:afterEnd]),
	}, nil
}
