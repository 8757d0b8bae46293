package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the structural code index
type ErrorType string

const (
	// Indexing errors
	ErrorTypeExtraction ErrorType = "extraction"

	// Snapshot lifecycle errors
	ErrorTypeIndexUnavailable  ErrorType = "index_unavailable"
	ErrorTypeSchemaMismatch    ErrorType = "schema_mismatch"
	ErrorTypeRebuildInProgress ErrorType = "rebuild_in_progress"

	// Query errors
	ErrorTypeUnknownComponentType ErrorType = "unknown_component_type"
	ErrorTypeNotFound             ErrorType = "not_found"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// Sentinels for errors.Is branching in handlers.
var (
	ErrIndexUnavailable  = errors.New("index unavailable")
	ErrRebuildInProgress = errors.New("rebuild already in progress")
	ErrNotFound          = errors.New("not found")
)

// ExtractionError represents a per-file failure during extraction.
// Extraction errors are always recoverable at the build level: the file is
// recorded and skipped, the build continues.
type ExtractionError struct {
	Type       ErrorType
	FilePath   string
	Dialect    string
	Underlying error
	Timestamp  time.Time
}

// NewExtractionError creates a new extraction error with file context
func NewExtractionError(path, dialect string, err error) *ExtractionError {
	return &ExtractionError{
		Type:       ErrorTypeExtraction,
		FilePath:   path,
		Dialect:    dialect,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed for %s: %v", e.Dialect, e.FilePath, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *ExtractionError) Unwrap() error {
	return e.Underlying
}

// IndexUnavailableError means no snapshot has been built or loaded yet.
type IndexUnavailableError struct {
	Type      ErrorType
	Path      string
	Timestamp time.Time
}

// NewIndexUnavailableError creates a new index-unavailable error
func NewIndexUnavailableError(path string) *IndexUnavailableError {
	return &IndexUnavailableError{
		Type:      ErrorTypeIndexUnavailable,
		Path:      path,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *IndexUnavailableError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("no index available at %s; run a rebuild first", e.Path)
	}
	return "no index available; run a rebuild first"
}

// Is matches the ErrIndexUnavailable sentinel
func (e *IndexUnavailableError) Is(target error) bool {
	return target == ErrIndexUnavailable
}

// SchemaMismatchError means a persisted document was written by an
// incompatible version and must be rebuilt.
type SchemaMismatchError struct {
	Type      ErrorType
	Path      string
	Got       int
	Want      int
	Timestamp time.Time
}

// NewSchemaMismatchError creates a new schema-mismatch error
func NewSchemaMismatchError(path string, got, want int) *SchemaMismatchError {
	return &SchemaMismatchError{
		Type:      ErrorTypeSchemaMismatch,
		Path:      path,
		Got:       got,
		Want:      want,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("index at %s has schema version %d, expected %d; rebuild required",
		e.Path, e.Got, e.Want)
}

// RebuildInProgressError is returned by non-blocking rebuild requests when a
// build is already running.
type RebuildInProgressError struct {
	Type      ErrorType
	Timestamp time.Time
}

// NewRebuildInProgressError creates a new rebuild-in-progress error
func NewRebuildInProgressError() *RebuildInProgressError {
	return &RebuildInProgressError{
		Type:      ErrorTypeRebuildInProgress,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *RebuildInProgressError) Error() string {
	return "rebuild already in progress"
}

// Is matches the ErrRebuildInProgress sentinel
func (e *RebuildInProgressError) Is(target error) bool {
	return target == ErrRebuildInProgress
}

// UnknownComponentTypeError reports a kind filter that names no known kind.
type UnknownComponentTypeError struct {
	Type      ErrorType
	Requested string
	Valid     []string
	Timestamp time.Time
}

// NewUnknownComponentTypeError creates a new unknown-component-type error
func NewUnknownComponentTypeError(requested string, valid []string) *UnknownComponentTypeError {
	return &UnknownComponentTypeError{
		Type:      ErrorTypeUnknownComponentType,
		Requested: requested,
		Valid:     valid,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *UnknownComponentTypeError) Error() string {
	return fmt.Sprintf("unknown component type %q (valid: %v)", e.Requested, e.Valid)
}

// NotFoundError reports a lookup that matched nothing.
type NotFoundError struct {
	Type      ErrorType
	What      string
	Query     string
	Timestamp time.Time
}

// NewNotFoundError creates a new not-found error
func NewNotFoundError(what, query string) *NotFoundError {
	return &NotFoundError{
		Type:      ErrorTypeNotFound,
		What:      what,
		Query:     query,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.What, e.Query)
}

// Is matches the ErrNotFound sentinel
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError collects per-file warnings from a build.
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error, dropping nils
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
