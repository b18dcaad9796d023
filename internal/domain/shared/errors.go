package shared

import "errors"

// Error codes shared by every bounded context
const (
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidState           = "INVALID_STATE"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeConflict               = "CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeLockTimeout            = "LOCK_TIMEOUT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
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
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrValidationFailed    = NewDomainError(CodeValidationFailed, "Validation failed")
	ErrConflict            = NewDomainError(CodeConflict, "Resource already exists")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
	ErrLockTimeout         = NewDomainError(CodeLockTimeout, "Timed out waiting for a lock")
)

// HasCode reports whether err wraps a DomainError with the given code
func HasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND domain error
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsInvalidState reports whether err is an INVALID_STATE domain error
func IsInvalidState(err error) bool {
	return HasCode(err, CodeInvalidState)
}

// IsValidationFailed reports whether err is a VALIDATION_FAILED domain error
func IsValidationFailed(err error) bool {
	return HasCode(err, CodeValidationFailed)
}

// IsConflict reports whether err is a CONFLICT domain error
func IsConflict(err error) bool {
	return HasCode(err, CodeConflict)
}
