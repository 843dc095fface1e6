package anchor

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Default capture parameters. Builders use these unless configured
// otherwise; they are part of the persisted format only insofar as the
// window strings themselves are stored.
const (
	// DefaultContextWindow is the context window width, in runes, captured
	// around a span for the structural and position selectors.
	DefaultContextWindow = 30

	// DefaultFuzzyWindow is the wider context window width, in runes, for
	// the fuzzy selector. Approximate matching needs more surrounding text
	// to disambiguate repeated phrases.
	DefaultFuzzyWindow = 50

	// DefaultThreshold is the minimum acceptable context similarity for a
	// fuzzy match, on a 0.0-1.0 scale.
	DefaultThreshold = 0.8
)

// Tier identifies which resolution strategy produced (or failed to produce)
// a restored span.
type Tier string

// Tier constants, in priority order.
const (
	TierStructural Tier = "structural"
	TierPosition   Tier = "position"
	TierFuzzy      Tier = "fuzzy"
	TierFailed     Tier = "failed"
)

// validTiers is the set of valid tiers.
var validTiers = map[Tier]bool{
	TierStructural: true,
	TierPosition:   true,
	TierFuzzy:      true,
	TierFailed:     true,
}

// IsValid returns true if the tier is valid.
func (t Tier) IsValid() bool {
	return validTiers[t]
}

// StructuralSelector locates a span by a deterministic path from the
// document root to a single text leaf, with offsets inside that leaf.
//
// The path is stable under insertions after the addressed node at every
// level, but unstable under insertions before it; the position and fuzzy
// selectors exist to cover that gap.
type StructuralSelector struct {
	// Path is the indexed-sibling path from the root to the leaf.
	Path Path `json:"path"`

	// StartOffset is the rune offset of the span start within the leaf text.
	StartOffset int `json:"startOffset"`

	// EndOffset is the rune offset one past the span end within the leaf
	// text. EndOffset >= StartOffset always holds.
	EndOffset int `json:"endOffset"`

	// Text is the exact span text, cached for verification at resolve time.
	Text string `json:"text"`

	// TextBefore is the leaf-local context window preceding the span.
	TextBefore string `json:"textBefore"`

	// TextAfter is the leaf-local context window following the span.
	TextAfter string `json:"textAfter"`
}

// Length returns the span length in runes.
func (s *StructuralSelector) Length() int {
	return s.EndOffset - s.StartOffset
}

// PositionSelector locates a span by absolute character offsets into the
// flattened document text (the concatenation of all text leaves in document
// order). It is computed independently of the structural path, so it
// survives path changes that preserve the overall text.
type PositionSelector struct {
	// StartOffset is the absolute rune offset of the span start in the
	// flattened document text.
	StartOffset int `json:"startOffset"`

	// EndOffset is the absolute rune offset one past the span end.
	EndOffset int `json:"endOffset"`

	// Text is the exact span text, cached for verification.
	Text string `json:"text"`

	// TextBefore is the flattened-text context window preceding the span.
	TextBefore string `json:"textBefore"`

	// TextAfter is the flattened-text context window following the span.
	TextAfter string `json:"textAfter"`
}

// Length returns the span length in runes.
func (s *PositionSelector) Length() int {
	return s.EndOffset - s.StartOffset
}

// FuzzySelector locates a span by its text alone, matched approximately
// against the flattened document, with wide context windows used to pick
// the intended occurrence and to reject weak matches.
type FuzzySelector struct {
	// Text is the span text to search for.
	Text string `json:"text"`

	// TextBefore is the wide context window preceding the span.
	TextBefore string `json:"textBefore"`

	// TextAfter is the wide context window following the span.
	TextAfter string `json:"textAfter"`

	// Threshold is the minimum averaged context similarity (0.0-1.0) a
	// candidate match must reach. Below it the match is rejected outright.
	Threshold float64 `json:"threshold"`
}

// MultiSelector aggregates the three selector tiers for one span, plus a
// cheap content hash for deduplication.
//
// A MultiSelector is an immutable value: it is created once from a live
// document snapshot and never modified afterwards. Resolution only reads
// it, and a failed resolution does not invalidate it.
type MultiSelector struct {
	// ID is a unique identifier assigned at creation, used as the storage
	// key by external repositories.
	ID string `json:"id,omitempty"`

	// Structural is the tier-1 selector. It is absent when the span crosses
	// leaf boundaries, which a single root-to-leaf path cannot express.
	Structural *StructuralSelector `json:"structural,omitempty"`

	// Position is the tier-2 selector.
	Position *PositionSelector `json:"position"`

	// Fuzzy is the tier-3 selector.
	Fuzzy *FuzzySelector `json:"fuzzy"`

	// ContentHash is a non-cryptographic rolling hash of the span text,
	// for fast equality and deduplication checks. Never a security boundary.
	ContentHash uint32 `json:"contentHash"`

	// CreatedAt records when the selector was built.
	CreatedAt time.Time `json:"createdAt"`
}

// Text returns the span text the selector was built from.
func (m *MultiSelector) Text() string {
	if m.Position != nil {
		return m.Position.Text
	}
	if m.Fuzzy != nil {
		return m.Fuzzy.Text
	}
	if m.Structural != nil {
		return m.Structural.Text
	}
	return ""
}

// SameContent reports whether two selectors were built from identical span
// text, using the content hash as a fast pre-check.
func (m *MultiSelector) SameContent(other *MultiSelector) bool {
	if m.ContentHash != other.ContentHash {
		return false
	}
	return m.Text() == other.Text()
}

// ValidationError represents a selector validation error with context.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// newValidationError creates a new ValidationError.
func newValidationError(path, message string) error {
	return &ValidationError{Path: path, Message: message}
}

// ValidateStructural validates a StructuralSelector and returns all
// validation errors.
func ValidateStructural(s *StructuralSelector) []error {
	var errs []error

	if len(s.Path) == 0 {
		errs = append(errs, newValidationError("structural.path", "path is required"))
	}
	for i, step := range s.Path {
		if step.Kind == "" {
			errs = append(errs, newValidationError(
				fmt.Sprintf("structural.path[%d]", i), "kind is required"))
		}
		if step.Index < 1 {
			errs = append(errs, newValidationError(
				fmt.Sprintf("structural.path[%d]", i), "index must be 1-based"))
		}
	}
	if s.StartOffset < 0 {
		errs = append(errs, newValidationError("structural.startOffset",
			"StartOffset cannot be negative"))
	}
	if s.EndOffset < s.StartOffset {
		errs = append(errs, newValidationError("structural.endOffset",
			"EndOffset cannot be before StartOffset"))
	}
	if got := utf8.RuneCountInString(s.Text); got != s.EndOffset-s.StartOffset {
		errs = append(errs, newValidationError("structural.text",
			fmt.Sprintf("text length %d does not match offsets [%d,%d)",
				got, s.StartOffset, s.EndOffset)))
	}

	return errs
}

// ValidatePosition validates a PositionSelector and returns all validation
// errors.
func ValidatePosition(s *PositionSelector) []error {
	var errs []error

	if s.StartOffset < 0 {
		errs = append(errs, newValidationError("position.startOffset",
			"StartOffset cannot be negative"))
	}
	if s.EndOffset < s.StartOffset {
		errs = append(errs, newValidationError("position.endOffset",
			"EndOffset cannot be before StartOffset"))
	}
	if got := utf8.RuneCountInString(s.Text); got != s.EndOffset-s.StartOffset {
		errs = append(errs, newValidationError("position.text",
			fmt.Sprintf("text length %d does not match offsets [%d,%d)",
				got, s.StartOffset, s.EndOffset)))
	}

	return errs
}

// ValidateFuzzy validates a FuzzySelector and returns all validation errors.
func ValidateFuzzy(s *FuzzySelector) []error {
	var errs []error

	if s.Text == "" {
		errs = append(errs, newValidationError("fuzzy.text", "text is required"))
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		errs = append(errs, newValidationError("fuzzy.threshold",
			"Threshold must be between 0 and 1"))
	}

	return errs
}

// Validate validates a MultiSelector and returns all validation errors.
func Validate(m *MultiSelector) []error {
	var errs []error

	if m.Position == nil {
		errs = append(errs, newValidationError("position", "position selector is required"))
	} else {
		errs = append(errs, ValidatePosition(m.Position)...)
	}

	if m.Fuzzy == nil {
		errs = append(errs, newValidationError("fuzzy", "fuzzy selector is required"))
	} else {
		errs = append(errs, ValidateFuzzy(m.Fuzzy)...)
	}

	if m.Structural != nil {
		errs = append(errs, ValidateStructural(m.Structural)...)
	}

	if m.Text() != "" && m.ContentHash != ContentHash(m.Text()) {
		errs = append(errs, newValidationError("contentHash",
			"ContentHash does not match text"))
	}

	return errs
}

// IsValid returns true if the selector has no validation errors.
func IsValid(m *MultiSelector) bool {
	return len(Validate(m)) == 0
}
