// Package errors defines the categorized error model for the service.
//
// The categories follow the processing pipeline: malformed input,
// undetectable table structure, external completion-service failures,
// oversized payloads, missing configuration, reconciliation faults and
// internal bugs. Every error carries an optional suggestion and a
// context map for diagnostics.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors.
type ErrorCategory string

const (
	CategoryInput          ErrorCategory = "input"
	CategoryTable          ErrorCategory = "table"
	CategoryExtraction     ErrorCategory = "extraction"
	CategoryExternal       ErrorCategory = "external"
	CategoryPayload        ErrorCategory = "payload"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories.
type ErrorCode string

const (
	// Input errors
	CodeMalformedPayload ErrorCode = "malformed_payload"
	CodeBadEncoding      ErrorCode = "bad_encoding"
	CodeUnreadableFile   ErrorCode = "unreadable_file"
	CodeRequestTooLarge  ErrorCode = "request_too_large"

	// Table errors
	CodeNoStructure   ErrorCode = "no_structure"
	CodeNoHeaderRow   ErrorCode = "no_header_row"
	CodeEmptySheet    ErrorCode = "empty_sheet"
	CodeUnknownSystem ErrorCode = "unknown_system"

	// Extraction errors
	CodeNumberExtraction ErrorCode = "number_extraction"
	CodeRowExtraction    ErrorCode = "row_extraction"

	// External service errors
	CodeServiceTimeout      ErrorCode = "service_timeout"
	CodeServiceStatus       ErrorCode = "service_status"
	CodeUnparseableResponse ErrorCode = "unparseable_response"

	// Payload errors
	CodePayloadTooLarge ErrorCode = "payload_too_large"

	// Configuration errors
	CodeMissingCredentials ErrorCode = "missing_credentials"
	CodeInvalidOption      ErrorCode = "invalid_option"

	// Reconciliation errors
	CodeMatchingFailed ErrorCode = "matching_failed"
	CodeIndexFailed    ErrorCode = "index_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconcilerError is the base error type for all application errors.
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error.
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryInput:
		return 2
	case CategoryTable, CategoryExtraction:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	case CategoryExternal, CategoryPayload:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error.
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError.
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// InputError creates an error for malformed request or file input.
// Input errors surface immediately; nothing is partially processed.
func InputError(code ErrorCode, detail string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMalformedPayload:
		message = fmt.Sprintf("malformed request payload: %s", detail)
		suggestion = "check the request body structure against the API documentation"
	case CodeBadEncoding:
		message = fmt.Sprintf("invalid base64 content: %s", detail)
		suggestion = "ensure fileBase64 contains valid base64 without data-URI prefixes"
	case CodeUnreadableFile:
		message = fmt.Sprintf("unreadable spreadsheet file: %s", detail)
		suggestion = "verify the file is a valid xlsx, xls or csv export"
	case CodeRequestTooLarge:
		message = fmt.Sprintf("request body exceeds the limit: %s", detail)
		suggestion = "split the workbook or raise the server body limit"
	default:
		message = fmt.Sprintf("input error: %s", detail)
		suggestion = "check the input and try again"
	}

	return build(err, CategoryInput, code, message, suggestion).
		WithContext("detail", detail)
}

// TableError creates an error for table structure detection failures.
// Unsupported tables yield empty results per sheet, not hard failures.
func TableError(code ErrorCode, sheet string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeNoStructure:
		message = fmt.Sprintf("no table structure detected in sheet %q", sheet)
		suggestion = "enable llmExtract for irregular tables"
	case CodeNoHeaderRow:
		message = fmt.Sprintf("no recognizable header row in sheet %q", sheet)
		suggestion = "check the system registry labels for this export format"
	case CodeEmptySheet:
		message = fmt.Sprintf("sheet %q contains no rows", sheet)
		suggestion = "remove empty sheets from the workbook"
	case CodeUnknownSystem:
		message = fmt.Sprintf("could not identify the source system for sheet %q", sheet)
		suggestion = "name the file after its system or register its header labels"
	default:
		message = fmt.Sprintf("table error in sheet %q", sheet)
		suggestion = "check the sheet layout"
	}

	return build(err, CategoryTable, code, message, suggestion).
		WithContext("sheet", sheet)
}

// ExternalError creates an error for completion-service failures.
// These abort the affected batch and are never retried automatically.
func ExternalError(code ErrorCode, endpoint string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeServiceTimeout:
		message = fmt.Sprintf("completion service timed out: %s", endpoint)
		suggestion = "check service availability; the batch was not retried"
	case CodeServiceStatus:
		message = fmt.Sprintf("completion service returned a non-success status: %s", endpoint)
		suggestion = "check credentials and quota for the completion service"
	case CodeUnparseableResponse:
		message = "completion service response contained no parseable JSON"
		suggestion = "inspect the raw response; the affected batch was aborted"
	default:
		message = fmt.Sprintf("external service error: %s", endpoint)
		suggestion = "check the external service and try again"
	}

	return build(err, CategoryExternal, code, message, suggestion).
		WithContext("endpoint", endpoint)
}

// PayloadError creates an error for oversized completion payloads.
// Silent truncation would corrupt extraction, so this is a hard failure.
func PayloadError(size, limit int) *ReconcilerError {
	message := fmt.Sprintf("serialized payload is %d characters after compression, limit is %d", size, limit)
	return New(CategoryPayload, CodePayloadTooLarge, message).
		WithSuggestion("raise llmMaxChars or lower llmMaxRows").
		WithContext("size", size).
		WithContext("limit", limit)
}

// ConfigurationError creates an error for missing or invalid configuration.
func ConfigurationError(code ErrorCode, setting string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMissingCredentials:
		message = fmt.Sprintf("required credential is not configured: %s", setting)
		suggestion = "set the credential in the environment or config file before starting"
	case CodeInvalidOption:
		message = fmt.Sprintf("invalid configuration option: %s", setting)
		suggestion = "check the option value against the documented set"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(err, CategoryConfiguration, code, message, suggestion).
		WithContext("setting", setting)
}

// ReconciliationError creates an error for matching and indexing faults.
func ReconciliationError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMatchingFailed:
		message = fmt.Sprintf("matching failed during %s", operation)
		suggestion = "check document number quality in the act"
	case CodeIndexFailed:
		message = fmt.Sprintf("index construction failed during %s", operation)
		suggestion = "verify the system export has the expected columns"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	return build(err, CategoryReconciliation, code, message, suggestion).
		WithContext("operation", operation)
}

// InternalError creates an internal error.
func InternalError(operation string, err error) *ReconcilerError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	return build(err, CategoryInternal, CodeUnexpectedError, message,
		"this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

func build(err error, category ErrorCategory, code ErrorCode, message, suggestion string) *ReconcilerError {
	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, category, code, message)
	} else {
		result = New(category, code, message)
	}
	return result.WithSuggestion(suggestion)
}

// IsReconcilerError checks if an error is a ReconcilerError.
func IsReconcilerError(err error) bool {
	_, ok := err.(*ReconcilerError)
	return ok
}

// AsReconcilerError extracts a ReconcilerError from an error chain.
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}

// HasCategory reports whether err belongs to the given category.
func HasCategory(err error, category ErrorCategory) bool {
	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr.Category == category
	}
	return false
}

// FormatForResponse renders err as a single ASCII-safe string for the
// request boundary. Non-ASCII runes are escaped rather than dropped so
// error detail survives 7-bit transports.
func FormatForResponse(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	for _, r := range err.Error() {
		if r < 0x80 {
			b.WriteRune(r)
		} else {
			fmt.Fprintf(&b, "\\u%04x", r)
		}
	}
	return b.String()
}
