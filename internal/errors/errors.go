// Package errors provides structured error handling for recon engine operations.
// It defines error codes, error types, and utilities for creating and handling
// errors with target and operation context.
package errors

import (
	"fmt"
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
	CodeInternal      ErrorCode = "INTERNAL"

	// Network and probing errors.
	CodeNetworkUnreachable ErrorCode = "NETWORK_UNREACHABLE"
	CodeHostUnreachable    ErrorCode = "HOST_UNREACHABLE"
	CodeConnectionReset    ErrorCode = "CONNECTION_RESET"
	CodePortClosed         ErrorCode = "PORT_CLOSED"
	CodeScanFailed         ErrorCode = "SCAN_FAILED"
	CodeScanNotFound       ErrorCode = "SCAN_NOT_FOUND"
	CodeTargetInvalid      ErrorCode = "TARGET_INVALID"

	// Deep-scan adapter errors.
	CodeAdapterUnavailable ErrorCode = "ADAPTER_UNAVAILABLE"
	CodeAdapterOutput      ErrorCode = "ADAPTER_OUTPUT"

	// Event publication errors.
	CodePublishFailed ErrorCode = "PUBLISH_FAILED"
)

// ScanError represents an error that occurred during scan orchestration.
type ScanError struct {
	Code      ErrorCode
	Message   string
	Target    string
	Operation string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// ProbeError represents an error from a single port or liveness probe.
type ProbeError struct {
	Code    ErrorCode
	Message string
	Target  string
	Port    int
	Cause   error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Port > 0 {
		return fmt.Sprintf("[%s] %s (%s:%d)", e.Code, e.Message, e.Target, e.Port)
	}
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// NewProbeError creates a new probe error.
func NewProbeError(code ErrorCode, message, target string, port int) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Target:  target,
		Port:    port,
	}
}

// WrapProbeError wraps an existing error as a probe error.
func WrapProbeError(code ErrorCode, message, target string, port int, err error) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Target:  target,
		Port:    port,
		Cause:   err,
	}
}

// AdapterError represents deep-scan adapter errors.
type AdapterError struct {
	Code    ErrorCode
	Message string
	Utility string
	Cause   error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	if e.Utility != "" {
		return fmt.Sprintf("[%s] %s (utility: %s)", e.Code, e.Message, e.Utility)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// NewAdapterError creates a new adapter error.
func NewAdapterError(code ErrorCode, message string) *AdapterError {
	return &AdapterError{
		Code:    code,
		Message: message,
	}
}

// WrapAdapterError wraps an existing error as an adapter error.
func WrapAdapterError(code ErrorCode, message string, err error) *AdapterError {
	return &AdapterError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// PublishError represents event publication errors. Publication is
// best-effort, so these are logged rather than propagated.
type PublishError struct {
	Code      ErrorCode
	Message   string
	EventType string
	Cause     error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	if e.EventType != "" {
		return fmt.Sprintf("[%s] %s (event: %s)", e.Code, e.Message, e.EventType)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *PublishError) Unwrap() error {
	return e.Cause
}

// WrapPublishError wraps an existing error as a publish error.
func WrapPublishError(message, eventType string, err error) *PublishError {
	return &PublishError{
		Code:      CodePublishFailed,
		Message:   message,
		EventType: eventType,
		Cause:     err,
	}
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

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ScanError:
		return e.Code
	case *ProbeError:
		return e.Code
	case *AdapterError:
		return e.Code
	case *PublishError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable determines if an error indicates a transient condition that is
// worth retrying. Connection refusals are definitive and are not retryable.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeNetworkUnreachable, CodeHostUnreachable, CodeConnectionReset:
		return true
	default:
		return false
	}
}

// IsFatal determines if an error indicates a condition that should stop
// the owning scan rather than degrade it.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeConfiguration, CodeTargetInvalid, CodeInternal:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidTarget creates an error for invalid scan targets.
func ErrInvalidTarget(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, "Invalid target specification", target)
}

// ErrHostUnreachable creates an error for unreachable hosts.
func ErrHostUnreachable(target string) *ScanError {
	return NewScanErrorWithTarget(CodeHostUnreachable, "Host is unreachable", target)
}

// ErrScanNotFound creates an error for unknown scan identifiers.
func ErrScanNotFound(scanID string) *ScanError {
	return NewScanError(CodeScanNotFound, fmt.Sprintf("No scan registered with id %s", scanID))
}

// ErrScanCanceled creates an error representing cooperative cancellation.
func ErrScanCanceled(target string) *ScanError {
	return NewScanErrorWithTarget(CodeCanceled, "Scan canceled", target)
}
