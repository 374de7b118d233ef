package weight

import (
	"errors"
	"fmt"
)

// ErrorCode classifies gateway failures so callers can map them to a
// transport-level response without string matching.
type ErrorCode string

const (
	ErrCodeConfig     ErrorCode = "CONFIG"
	ErrCodeValidation ErrorCode = "VALIDATION"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeStore      ErrorCode = "STORE"
	ErrCodePublish    ErrorCode = "PUBLISH"
)

// GatewayError carries a classification code alongside the underlying cause.
type GatewayError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func NewConfigError(err error, message string) error {
	return &GatewayError{Code: ErrCodeConfig, Message: message, Err: err}
}

func NewValidationError(format string, args ...interface{}) error {
	return &GatewayError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) error {
	return &GatewayError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewStoreError(err error, message string) error {
	return &GatewayError{Code: ErrCodeStore, Message: message, Err: err}
}

func NewPublishError(err error, message string) error {
	return &GatewayError{Code: ErrCodePublish, Message: message, Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Code == code
	}
	return false
}

func IsConfig(err error) bool     { return hasCode(err, ErrCodeConfig) }
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }
func IsNotFound(err error) bool   { return hasCode(err, ErrCodeNotFound) }
func IsStore(err error) bool      { return hasCode(err, ErrCodeStore) }
func IsPublish(err error) bool    { return hasCode(err, ErrCodePublish) }
