// Package errors provides structured error handling for scanexport operations.
// It defines error codes and the error types raised while reading, decoding
// and exporting scan reports, together with helpers to classify them.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Document errors. These are isolated to the source they occur in.
	CodeSchema        ErrorCode = "SCHEMA"
	CodeMalformed     ErrorCode = "MALFORMED"
	CodeMissingField  ErrorCode = "MISSING_FIELD"
	CodeSourceRead    ErrorCode = "SOURCE_READ"
	CodeFileNotFound  ErrorCode = "FILE_NOT_FOUND"
	CodeNoSourceMatch ErrorCode = "NO_SOURCE_MATCH"

	// Sink errors. These always abort a batch.
	CodeSinkWrite ErrorCode = "SINK_WRITE"
	CodeSinkFlush ErrorCode = "SINK_FLUSH"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeConflict           ErrorCode = "CONFLICT"

	// Live scan errors.
	CodeScanFailed ErrorCode = "SCAN_FAILED"
)

// SchemaError reports a document that is not valid XML or does not have the
// shape of a scanner report.
type SchemaError struct {
	Code    ErrorCode
	Message string
	Source  string
	Field   string
	Cause   error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field: %s)", msg, e.Field)
	}
	if e.Source != "" {
		msg = fmt.Sprintf("%s (source: %s)", msg, e.Source)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// WithSource returns a copy of the error attributed to the given source.
func (e *SchemaError) WithSource(source string) *SchemaError {
	c := *e
	c.Source = source
	return &c
}

// NewSchemaError creates a schema error for a missing or misshapen field.
func NewSchemaError(code ErrorCode, message, field string) *SchemaError {
	return &SchemaError{
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// WrapSchemaError wraps a decoder error as a schema error.
func WrapSchemaError(code ErrorCode, message string, err error) *SchemaError {
	return &SchemaError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// SourceError reports a document source that could not be read.
type SourceError struct {
	Code    ErrorCode
	Message string
	Source  string
	Cause   error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("[%s] %s (source: %s): %v", e.Code, e.Message, e.Source, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Cause
}

// SinkError reports a failure of the output destination. A sink error is
// always fatal for the batch that hit it.
type SinkError struct {
	Code    ErrorCode
	Message string
	Sink    string
	Cause   error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	if e.Sink != "" {
		return fmt.Sprintf("[%s] %s (sink: %s): %v", e.Code, e.Message, e.Sink, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SinkError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// ScanError represents a failure of a live nmap run.
type ScanError struct {
	Code    ErrorCode
	Message string
	Targets []string
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if len(e.Targets) > 0 {
		return fmt.Sprintf("[%s] %s (targets: %v): %v", e.Code, e.Message, e.Targets, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WrapScanError wraps an error raised by the scanner.
func WrapScanError(code ErrorCode, message string, targets []string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Targets: targets,
		Cause:   err,
	}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message string, err error) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return schemaErr.Code
	}
	var sourceErr *SourceError
	if errors.As(err, &sourceErr) {
		return sourceErr.Code
	}
	var sinkErr *SinkError
	if errors.As(err, &sinkErr) {
		return sinkErr.Code
	}
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Code
	}
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Code
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsSchemaError reports whether err is a document shape or syntax error.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// IsSourceError reports whether err is a source read failure.
func IsSourceError(err error) bool {
	var sourceErr *SourceError
	return errors.As(err, &sourceErr)
}

// IsSinkError reports whether err is an output sink failure.
func IsSinkError(err error) bool {
	var sinkErr *SinkError
	return errors.As(err, &sinkErr)
}

// IsSkippable reports whether err only affects the source it came from.
func IsSkippable(err error) bool {
	return IsSchemaError(err) || IsSourceError(err)
}

// AttachSource attributes a schema error that has no source yet to source.
// Any other error is returned unchanged.
func AttachSource(err error, source string) error {
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) && schemaErr.Source == "" {
		return schemaErr.WithSource(source)
	}
	return err
}

// IsFatal determines if an error should stop a batch.
func IsFatal(err error) bool {
	if IsSinkError(err) {
		return true
	}
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// Common error creation functions

// ErrMissingField creates a schema error for a mandatory field that is absent.
func ErrMissingField(field string) *SchemaError {
	return NewSchemaError(CodeMissingField, "Required field missing", field)
}

// ErrMalformed wraps a decoder failure.
func ErrMalformed(err error) *SchemaError {
	return WrapSchemaError(CodeMalformed, "Document is not a valid scan report", err)
}

// ErrSourceRead creates an error for a source that could not be read.
func ErrSourceRead(source string, err error) *SourceError {
	code := CodeSourceRead
	if errors.Is(err, fs.ErrNotExist) {
		code = CodeFileNotFound
	}
	return &SourceError{
		Code:    code,
		Message: "Failed to read source",
		Source:  source,
		Cause:   err,
	}
}

// ErrSinkWrite creates an error for a failed write to an output sink.
func ErrSinkWrite(sink string, err error) *SinkError {
	return &SinkError{
		Code:    CodeSinkWrite,
		Message: "Failed to write output",
		Sink:    sink,
		Cause:   err,
	}
}

// ErrSinkFlush creates an error for a failed flush or commit of an output sink.
func ErrSinkFlush(sink string, err error) *SinkError {
	return &SinkError{
		Code:    CodeSinkFlush,
		Message: "Failed to flush output",
		Sink:    sink,
		Cause:   err,
	}
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}

// ErrDatabaseConnection creates an error for a failed database connection.
// The cause is kept for logging but never printed, since it may carry the DSN.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", err)
}
