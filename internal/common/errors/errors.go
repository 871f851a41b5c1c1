package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrDuplicateMembership = errors.New("duplicate membership")
	ErrValidation          = errors.New("validation failed")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrInternalError       = errors.New("internal error")
)

// Code classifies an AppError for callers that map errors onto a
// transport-specific status.
type Code int

const (
	CodeInternal Code = iota
	CodeNotFound
	CodePermissionDenied
	CodeDuplicate
	CodeValidation
	CodeRateLimited
)

func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "not_found"
	case CodePermissionDenied:
		return "permission_denied"
	case CodeDuplicate:
		return "duplicate"
	case CodeValidation:
		return "validation"
	case CodeRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code Code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NotFound(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Err:     ErrNotFound,
	}
}

func PermissionDenied(message string) *AppError {
	return &AppError{
		Code:    CodePermissionDenied,
		Message: message,
		Err:     ErrPermissionDenied,
	}
}

func DuplicateMembership(message string) *AppError {
	return &AppError{
		Code:    CodeDuplicate,
		Message: message,
		Err:     ErrDuplicateMembership,
	}
}

func Validation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Err:     ErrValidation,
	}
}

func RateLimited(message string) *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: message,
		Err:     ErrRateLimited,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Err:     err,
	}
}

func codeOf(err error) (Code, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return CodeInternal, false
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := codeOf(err); ok {
		return code == CodeNotFound
	}
	return errors.Is(err, ErrNotFound)
}

func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := codeOf(err); ok {
		return code == CodePermissionDenied
	}
	return errors.Is(err, ErrPermissionDenied)
}

func IsDuplicateMembership(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := codeOf(err); ok {
		return code == CodeDuplicate
	}
	return errors.Is(err, ErrDuplicateMembership)
}

func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := codeOf(err); ok {
		return code == CodeValidation
	}
	return errors.Is(err, ErrValidation)
}

func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := codeOf(err); ok {
		return code == CodeRateLimited
	}
	return errors.Is(err, ErrRateLimited)
}
