package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a specific error type for better error handling
type ErrorCode string

const (
	// Configuration errors
	ErrCodeSettingsLoad    ErrorCode = "SETTINGS_LOAD_FAILED"
	ErrCodeSettingsInvalid ErrorCode = "SETTINGS_INVALID"

	// Generation errors
	ErrCodeTemplateRead    ErrorCode = "TEMPLATE_READ_FAILED"
	ErrCodeTemplateRender  ErrorCode = "TEMPLATE_RENDER_FAILED"
	ErrCodeNoServices      ErrorCode = "NO_SERVICES"
	ErrCodeDuplicateDomain ErrorCode = "DUPLICATE_DOMAIN"

	// Orchestration errors
	ErrCodeDeployFailed ErrorCode = "DEPLOY_FAILED"
	ErrCodeAccessGrant  ErrorCode = "ACCESS_GRANT_FAILED"
	ErrCodeSpecLoad     ErrorCode = "SPEC_LOAD_FAILED"

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// GeneratorError represents a structured error with context
type GeneratorError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *GeneratorError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *GeneratorError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error code
func (e *GeneratorError) Is(target error) bool {
	if t, ok := target.(*GeneratorError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithMetadata adds metadata to the error
func (e *GeneratorError) WithMetadata(key string, value interface{}) *GeneratorError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewError creates a new GeneratorError
func NewError(code ErrorCode, component, message string) *GeneratorError {
	return &GeneratorError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WrapError wraps an existing error with GeneratorError structure
func WrapError(err error, code ErrorCode, component, message string) *GeneratorError {
	if err == nil {
		return nil
	}

	return &GeneratorError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
		Details:   err.Error(),
	}
}

// Common error constructors for frequently used errors

// NewTemplateReadError creates an error for an unreadable preamble template.
// This is fatal at generation time; there is no retry layer.
func NewTemplateReadError(path string, cause error) *GeneratorError {
	return WrapError(
		cause,
		ErrCodeTemplateRead,
		"assembler",
		fmt.Sprintf("Failed to read preamble template %s", path),
	).WithMetadata("template_path", path)
}

// NewDuplicateDomainError creates an error for a routing map that binds the
// same domain twice
func NewDuplicateDomainError(domain string) *GeneratorError {
	return NewError(
		ErrCodeDuplicateDomain,
		"frontend",
		fmt.Sprintf("Domain %q is bound to more than one backend", domain),
	).WithMetadata("domain", domain)
}

// NewNoServicesError creates an error for an empty routing spec
func NewNoServicesError() *GeneratorError {
	return NewError(
		ErrCodeNoServices,
		"generator",
		"Routing spec references no services",
	)
}

// NewDeployError creates an error for a failed replica deployment
func NewDeployError(service string, cause error) *GeneratorError {
	return WrapError(
		cause,
		ErrCodeDeployFailed,
		"orchestrator",
		fmt.Sprintf("Failed to deploy proxy service %s", service),
	).WithMetadata("service", service)
}

// NewAccessGrantError creates an error for a failed reachability grant
func NewAccessGrantError(from, to string, cause error) *GeneratorError {
	return WrapError(
		cause,
		ErrCodeAccessGrant,
		"orchestrator",
		fmt.Sprintf("Failed to grant %s access to %s", from, to),
	).WithMetadata("from", from).WithMetadata("to", to)
}

// Helper functions

// IsGeneratorError checks if an error is a GeneratorError
func IsGeneratorError(err error) bool {
	var genErr *GeneratorError
	return errors.As(err, &genErr)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var genErr *GeneratorError
	if errors.As(err, &genErr) {
		return genErr.Code
	}
	return ErrCodeInternal
}
