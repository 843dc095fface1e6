// Package errors provides standardized error types and helpers for the Driftanchor codebase.
package errors

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Sentinel errors for common cases
var (
	// ErrInvalidSpan indicates a span that cannot be anchored (empty,
	// inverted, or outside the document)
	ErrInvalidSpan = errors.New("invalid span")
	// ErrNodeNotFound indicates a structural path that no longer resolves
	ErrNodeNotFound = errors.New("node not found")
	// ErrTextMismatch indicates stored text absent at the recorded location
	ErrTextMismatch = errors.New("text mismatch")
	// ErrNoMatch indicates no approximate match anywhere in the document
	ErrNoMatch = errors.New("no match")
	// ErrContextDissimilar indicates matches whose surroundings all fall
	// below the similarity threshold
	ErrContextDissimilar = errors.New("context too dissimilar")
	// ErrAnchorNotFound indicates a stored anchor was not found
	ErrAnchorNotFound = errors.New("anchor not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// clipLen bounds quoted document text in error messages.
const clipLen = 40

func clip(s string) string {
	if utf8.RuneCountInString(s) <= clipLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:clipLen]) + "..."
}

// InvalidSpanError represents a span that cannot be turned into an anchor
type InvalidSpanError struct {
	Reason string // Why the span was rejected
	Start  int    // Start offset of the offending span, if known
	End    int    // End offset of the offending span, if known
	Err    error  // Underlying error, if any
}

func (e *InvalidSpanError) Error() string {
	if e.End > e.Start {
		return fmt.Sprintf("invalid span [%d,%d): %s", e.Start, e.End, e.Reason)
	}
	return fmt.Sprintf("invalid span: %s", e.Reason)
}

func (e *InvalidSpanError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidSpan
}

// NodeNotFoundError represents a structural path walk that failed
type NodeNotFoundError struct {
	Path   string // Full path being walked
	Detail string // The step that failed, or other detail
	Err    error  // Underlying error, if any
}

func (e *NodeNotFoundError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("node not found at %s: %s", e.Path, e.Detail)
	}
	return fmt.Sprintf("node not found at %s", e.Path)
}

func (e *NodeNotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNodeNotFound
}

// TextMismatchError represents stored text not matching the document
type TextMismatchError struct {
	Where string // Location that was checked (path or offset range)
	Want  string // Text the anchor recorded
	Got   string // Text actually found there
	Err   error  // Underlying error, if any
}

func (e *TextMismatchError) Error() string {
	return fmt.Sprintf("text mismatch at %s: want %q, got %q", e.Where, clip(e.Want), clip(e.Got))
}

func (e *TextMismatchError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrTextMismatch
}

// NoMatchError represents a fuzzy search that found no candidates
type NoMatchError struct {
	Text string // Text that was searched for
	Err  error  // Underlying error, if any
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no match for %q", clip(e.Text))
}

func (e *NoMatchError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNoMatch
}

// ContextDissimilarError represents fuzzy candidates rejected on context
type ContextDissimilarError struct {
	Similarity float64 // Best context similarity observed
	Threshold  float64 // Threshold the similarity had to reach
	Err        error   // Underlying error, if any
}

func (e *ContextDissimilarError) Error() string {
	return fmt.Sprintf("context too dissimilar: best similarity %.2f below threshold %.2f",
		e.Similarity, e.Threshold)
}

func (e *ContextDissimilarError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrContextDissimilar
}

// AnchorNotFoundError represents a missing stored anchor
type AnchorNotFoundError struct {
	ID  string // Identifier of the anchor
	Err error  // Underlying error, if any
}

func (e *AnchorNotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("anchor not found: %s", e.ID)
	}
	return "anchor not found"
}

func (e *AnchorNotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrAnchorNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "JSON", "HTML", "path")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewInvalidSpan creates an InvalidSpanError
func NewInvalidSpan(reason string, start, end int) *InvalidSpanError {
	return &InvalidSpanError{
		Reason: reason,
		Start:  start,
		End:    end,
	}
}

// NewNodeNotFound creates a NodeNotFoundError
func NewNodeNotFound(path, detail string) *NodeNotFoundError {
	return &NodeNotFoundError{
		Path:   path,
		Detail: detail,
	}
}

// NewTextMismatch creates a TextMismatchError
func NewTextMismatch(where, want, got string) *TextMismatchError {
	return &TextMismatchError{
		Where: where,
		Want:  want,
		Got:   got,
	}
}

// NewNoMatch creates a NoMatchError
func NewNoMatch(text string) *NoMatchError {
	return &NoMatchError{
		Text: text,
	}
}

// NewContextDissimilar creates a ContextDissimilarError
func NewContextDissimilar(similarity, threshold float64) *ContextDissimilarError {
	return &ContextDissimilarError{
		Similarity: similarity,
		Threshold:  threshold,
	}
}

// NewAnchorNotFound creates an AnchorNotFoundError
func NewAnchorNotFound(id string) *AnchorNotFoundError {
	return &AnchorNotFoundError{
		ID: id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
