package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeDecode represents malformed or unsupported export records
	ErrorTypeDecode ErrorType = "decode"
	// ErrorTypeGraph represents graph store errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeSource represents export file errors
	ErrorTypeSource ErrorType = "source"
	// ErrorTypePipeline represents stage ordering and orchestration errors
	ErrorTypePipeline ErrorType = "pipeline"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Base exposes the embedded BaseError to errors.As through wrapper types.
func (e *BaseError) Base() *BaseError {
	return e
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Decode Errors

// ErrUnknownMeaning is returned when a link carries a Meaning code outside the semantics table
type ErrUnknownMeaning struct {
	*BaseError
	Meaning int
}

func NewUnknownMeaning(meaning int) *ErrUnknownMeaning {
	return &ErrUnknownMeaning{
		BaseError: NewBaseError(ErrorTypeDecode, fmt.Sprintf("unknown link meaning: %d", meaning), nil),
		Meaning:   meaning,
	}
}

// ErrUnknownKind is returned when a thought carries an unsupported Kind
type ErrUnknownKind struct {
	*BaseError
	RecordID string
	Kind     int
}

func NewUnknownKind(recordID string, kind int) *ErrUnknownKind {
	return &ErrUnknownKind{
		BaseError: NewBaseError(ErrorTypeDecode, fmt.Sprintf("unknown thought kind %d on %s", kind, recordID), nil),
		RecordID:  recordID,
		Kind:      kind,
	}
}

// ErrMissingTypeDefinition is returned when a record references a TypeId that
// no earlier stage has registered
type ErrMissingTypeDefinition struct {
	*BaseError
	RecordID string
	TypeID   string
}

func NewMissingTypeDefinition(recordID, typeID string) *ErrMissingTypeDefinition {
	return &ErrMissingTypeDefinition{
		BaseError: NewBaseError(ErrorTypePipeline, fmt.Sprintf("type %s referenced by %s is not defined", typeID, recordID), nil),
		RecordID:  recordID,
		TypeID:    typeID,
	}
}

// ErrDecodeValidation is returned when a record fails a structural check
type ErrDecodeValidation struct {
	*BaseError
	RecordID string
	Field    string
	Reason   string
}

func NewDecodeValidation(recordID, field, reason string, err error) *ErrDecodeValidation {
	return &ErrDecodeValidation{
		BaseError: NewBaseError(ErrorTypeDecode, fmt.Sprintf("invalid record %q: %s %s", recordID, field, reason), err),
		RecordID:  recordID,
		Field:     field,
		Reason:    reason,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrWriteAdapter is returned when the store rejects a statement
type ErrWriteAdapter struct {
	*BaseError
	Statement string
}

func NewWriteAdapter(statement string, err error) *ErrWriteAdapter {
	return &ErrWriteAdapter{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("statement %s rejected", statement), err),
		Statement: statement,
	}
}

// Source Errors

// ErrSourceNotFound is returned when no export file matches a logical source name
type ErrSourceNotFound struct {
	*BaseError
	Name    string
	Pattern string
}

func NewSourceNotFound(name, pattern string) *ErrSourceNotFound {
	return &ErrSourceNotFound{
		BaseError: NewBaseError(ErrorTypeSource, fmt.Sprintf("no export file for %q (pattern %s)", name, pattern), nil),
		Name:      name,
		Pattern:   pattern,
	}
}

// Pipeline Errors

// ErrStageFailed wraps the fatal error that aborted an import stage
type ErrStageFailed struct {
	*BaseError
	Stage string
}

func NewStageFailed(stage string, err error) *ErrStageFailed {
	return &ErrStageFailed{
		BaseError: NewBaseError(ErrorTypePipeline, fmt.Sprintf("stage %s failed", stage), err),
		Stage:     stage,
	}
}

// ErrImportInProgress is returned when a second import is requested while one runs
var ErrImportInProgress = NewBaseError(ErrorTypePipeline, "an import is already running", nil)

// ErrOutsideExportDir is returned when a requested directory escapes the export root
var ErrOutsideExportDir = NewBaseError(ErrorTypeSource, "directory is outside the export root", nil)

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type baseCarrier interface {
	Base() *BaseError
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if carrier, ok := err.(baseCarrier); ok && carrier.Base().Type == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsRecoverable reports whether err is attributable to a single record and
// may be skipped when the stage allows it. Only validation failures qualify.
func IsRecoverable(err error) bool {
	var validation *ErrDecodeValidation
	return stderrors.As(err, &validation)
}
