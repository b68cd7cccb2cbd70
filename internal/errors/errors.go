package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the phpref engine
type ErrorType string

const (
	// Indexing errors
	ErrorTypeIndexing ErrorType = "indexing"
	ErrorTypeParse    ErrorType = "parse"

	// Refactoring errors
	ErrorTypeRefactor ErrorType = "refactor"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeFileTooLarge ErrorType = "file_too_large"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// ErrAlreadyIndexing is returned when a workspace scan is requested while
// another scan holds the guard. Overlapping scans are never run.
var ErrAlreadyIndexing = errors.New("workspace scan already in progress")

// ParseError marks a file whose source failed to parse. Scanning skips the
// file; multi-file refactors exclude it from the candidate set.
type ParseError struct {
	FilePath   string
	Underlying error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failure in %s: %v", e.FilePath, e.Underlying)
}

func (e *ParseError) Unwrap() error { return e.Underlying }

// NewParseError creates a parse failure error for a file.
func NewParseError(path string, err error) *ParseError {
	return &ParseError{FilePath: path, Underlying: err}
}

// IsParseFailure reports whether err is (or wraps) a ParseError.
func IsParseFailure(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// RefactorError is a refusal from a single-target operation: no edits were
// produced and the reason is surfaced to the caller rather than thrown.
type RefactorError struct {
	Operation string
	Reason    string
}

func (e *RefactorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

// NewRefactorError creates a refusal for a refactoring operation.
func NewRefactorError(op, reason string) *RefactorError {
	return &RefactorError{Operation: op, Reason: reason}
}

// IndexingError represents an error during the indexing process
type IndexingError struct {
	Type        ErrorType
	FilePath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewIndexingError creates a new indexing error with context
func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{
		Type:       ErrorTypeIndexing,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error
func (e *IndexingError) WithFile(path string) *IndexingError {
	e.FilePath = path
	return e
}

// WithRecoverable marks the error as recoverable
func (e *IndexingError) WithRecoverable(recoverable bool) *IndexingError {
	e.Recoverable = recoverable
	return e
}

func (e *IndexingError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s error during %s (%s): %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s error during %s: %v", e.Type, e.Operation, e.Underlying)
}

func (e *IndexingError) Unwrap() error { return e.Underlying }
