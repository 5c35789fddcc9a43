// Package errors defines the error types returned by the Huff compiler.
//
// Every error produced by the pipeline carries enough source context to point
// at the exact offending line and column. The core never prints or colors
// anything itself; callers that want styled output can run any error through
// the Formatter in this package.
package errors

import (
	"fmt"
	"strings"
)

// Kind identifies which phase of the pipeline an error belongs to and what
// class of failure it is.
type Kind string

const (
	// LexError indicates a malformed token: an unterminated string or
	// comment, an invalid character, or a malformed numeric literal.
	LexError Kind = "lex error"

	// ParseError indicates a structural grammar violation.
	ParseError Kind = "parse error"

	// UnresolvedReference indicates a name that was used but never defined,
	// or defined more than once in the merged import closure.
	UnresolvedReference Kind = "unresolved reference"

	// RecursionLimitExceeded indicates unbounded macro expansion.
	RecursionLimitExceeded Kind = "recursion limit exceeded"

	// LiteralTooLarge indicates a literal wider than the widest push opcode
	// can carry.
	LiteralTooLarge Kind = "literal too large"

	// ArgumentArityMismatch indicates a macro invoked with a number of
	// arguments that does not match its definition.
	ArgumentArityMismatch Kind = "argument arity mismatch"

	// OffsetResolutionDivergence indicates the offset fixed point failed to
	// converge within the iteration bound.
	OffsetResolutionDivergence Kind = "offset resolution divergence"
)

// SourceLocation represents a position in source code.
type SourceLocation struct {
	Filename string
	Line     int    // 1-based line number
	Column   int    // 1-based column number
	Source   string // The line of source code
}

// String returns a formatted string representation of the source location.
func (s SourceLocation) String() string {
	if s.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", s.Filename, s.Line, s.Column)
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// IsZero returns true if the location has not been set.
func (s SourceLocation) IsZero() bool {
	return s.Line == 0 && s.Column == 0
}

// FriendlyError is an interface for errors that have a human friendly message
// in addition to the lower level default error message.
type FriendlyError interface {
	Error() string
	FriendlyErrorMessage() string
}

// CompileError is the error type shared by all pipeline phases.
type CompileError struct {
	Kind      Kind
	Message   string
	Location  SourceLocation
	EndColumn int
	Note      string
}

// New creates a CompileError of the given kind.
func New(kind Kind, location SourceLocation, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	}
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if !e.Location.IsZero() || e.Location.Filename != "" {
		fmt.Fprintf(&b, " (%s)", e.Location.String())
	}
	return b.String()
}

// FriendlyErrorMessage returns a human-friendly error message.
func (e *CompileError) FriendlyErrorMessage() string {
	formatter := NewFormatter(false)
	return formatter.Format(e.ToFormatted())
}

// ToFormatted converts to the FormattedError type for display.
func (e *CompileError) ToFormatted() *FormattedError {
	fe := &FormattedError{
		Kind:      string(e.Kind),
		Message:   e.Message,
		Filename:  e.Location.Filename,
		Line:      e.Location.Line,
		Column:    e.Location.Column,
		EndColumn: e.EndColumn,
		Note:      e.Note,
	}
	if e.Location.Source != "" {
		fe.SourceLines = []SourceLineEntry{
			{Number: e.Location.Line, Text: e.Location.Source, IsMain: true},
		}
	}
	return fe
}

// CompileErrors holds multiple compile errors collected from one target.
type CompileErrors struct {
	Errors []*CompileError
}

// Error implements the error interface.
func (e *CompileErrors) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

// FriendlyErrorMessage returns a human-friendly message for all errors.
func (e *CompileErrors) FriendlyErrorMessage() string {
	if len(e.Errors) == 0 {
		return ""
	}
	var formatted []*FormattedError
	for _, err := range e.Errors {
		formatted = append(formatted, err.ToFormatted())
	}
	formatter := NewFormatter(false)
	return formatter.FormatMultiple(formatted)
}

// Add adds a compile error to the collection.
func (e *CompileErrors) Add(err *CompileError) {
	e.Errors = append(e.Errors, err)
}

// Count returns the number of errors.
func (e *CompileErrors) Count() int {
	return len(e.Errors)
}

// HasErrors returns true if there are any errors.
func (e *CompileErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// ToError returns the errors as a single error, or nil if empty.
func (e *CompileErrors) ToError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return e
}

// Unwrap returns the underlying errors for use with errors.Is/As.
func (e *CompileErrors) Unwrap() []error {
	result := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		result[i] = err
	}
	return result
}
