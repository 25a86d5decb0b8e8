package shared

import "errors"

// Error codes shared by every layer. The HTTP layer maps them to status codes.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeConflict      = "CONFLICT"
	CodeRenderFailed  = "RENDER_FAILED"
	CodeRenderTimeout = "RENDER_TIMEOUT"
	CodeStore         = "STORE_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, ErrNotFound) matches any not-found error.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput  = NewDomainError(CodeValidation, "Invalid input provided")
	ErrUnauthorized  = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrConflict      = NewDomainError(CodeConflict, "Resource is busy, retry later")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// NewValidationError reports missing or malformed input. Never retried.
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewAuthError reports an invalid or expired token or an inactive account.
func NewAuthError(message string) *DomainError {
	return NewDomainError(CodeUnauthorized, message)
}

// NewNotFoundError reports a record that is absent or outside the caller's clinic.
func NewNotFoundError(resource string) *DomainError {
	return NewDomainError(CodeNotFound, resource+" not found")
}

// NewRenderError reports a PDF render that failed after all attempts.
func NewRenderError(code, message string, cause error) *DomainError {
	if code == "" {
		code = CodeRenderFailed
	}
	return &DomainError{Code: code, Message: message, Cause: cause}
}

// NewStoreError wraps a persistence failure.
func NewStoreError(op string, cause error) *DomainError {
	return &DomainError{Code: CodeStore, Message: "store: " + op + " failed", Cause: cause}
}

// IsNotFound reports whether err is a not-found domain error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
