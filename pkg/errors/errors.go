// Package errors provides a structured error system for l2refresh with error codes, categories, and context.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for l2refresh operations.
type ErrorCode string

const (
	// Configuration and startup errors. These stop the process before any sampling starts.
	ErrCodeInvalidConfig        ErrorCode = "INVALID_CONFIG"
	ErrCodeUnimplementedFeature ErrorCode = "UNIMPLEMENTED_FEATURE"
	ErrCodePathNotFound         ErrorCode = "PATH_NOT_FOUND"
	ErrCodeNoInputPaths         ErrorCode = "NO_INPUT_PATHS"

	// Per-file errors. Recorded against the file, the batch continues.
	ErrCodeEmptyFile ErrorCode = "EMPTY_FILE"
	ErrCodeIO        ErrorCode = "IO_ERROR"

	// Operation errors
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInput         ErrorCategory = "input"
	CategoryFile          ErrorCategory = "file"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// RefreshError represents a structured error with context and metadata.
type RefreshError struct {
	Code     ErrorCode         `json:"code"`
	Category ErrorCategory     `json:"category"`
	Message  string            `json:"message"`
	Context  map[string]string `json:"context,omitempty"`
	Cause    error             `json:"-"`

	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *RefreshError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *RefreshError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RefreshError with the same code.
func (e *RefreshError) Is(target error) bool {
	if t, ok := target.(*RefreshError); ok {
		return e.Code == t.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *RefreshError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%q", k, e.Context[k]))
		}
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("RefreshError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *RefreshError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new error with default values.
func NewError(code ErrorCode, message string) *RefreshError {
	return &RefreshError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Context:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// Wrap creates a new error with the given cause.
func Wrap(code ErrorCode, message string, cause error) *RefreshError {
	return NewError(code, message).WithCause(cause)
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeUnimplementedFeature:
		return CategoryConfiguration
	case ErrCodePathNotFound, ErrCodeNoInputPaths:
		return CategoryInput
	case ErrCodeEmptyFile, ErrCodeIO:
		return CategoryFile
	case ErrCodeOperationCanceled:
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsFatal reports whether an error must stop the process before sampling.
// File-category errors are recorded per file and never fatal.
func IsFatal(err error) bool {
	switch GetCategory(GetCode(err)) {
	case CategoryConfiguration, CategoryInput:
		return true
	default:
		return false
	}
}

// GetCode extracts the error code from err, or ErrCodeInternalError when err
// carries no RefreshError.
func GetCode(err error) ErrorCode {
	var re *RefreshError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ErrCodeInternalError
}

// HasCode reports whether err is a RefreshError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var re *RefreshError
	return stderrors.As(err, &re) && re.Code == code
}

// WithContext adds contextual information to an error
func (e *RefreshError) WithContext(key, value string) *RefreshError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *RefreshError) WithComponent(component string) *RefreshError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *RefreshError) WithOperation(operation string) *RefreshError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *RefreshError) WithCause(cause error) *RefreshError {
	e.Cause = cause
	return e
}

// GetRecommendation returns a user-friendly recommendation for fixing the error
func (e *RefreshError) GetRecommendation() string {
	recommendations := map[ErrorCode]string{
		ErrCodeInvalidConfig: "Check the configuration file syntax and the command line flags.",
		ErrCodeUnimplementedFeature: "Randomized per-file read caps are not available yet. " +
			"Drop --random-max-reads and use --max-reads instead.",
		ErrCodePathNotFound: "Verify the path exists and is readable by the current user.",
		ErrCodeNoInputPaths: "No file qualified for sampling. " +
			"Check the glob pattern and remember that files of 100 bytes or less are skipped.",
		ErrCodeEmptyFile: "Zero-length files cannot be mapped and are skipped.",
		ErrCodeIO:        "Check file permissions and the health of the underlying pool.",
	}
	if rec, ok := recommendations[e.Code]; ok {
		return rec
	}
	return "Please check the error message for details."
}
