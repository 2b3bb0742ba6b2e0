package workflow

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes workflow operation failures.
type ErrorCode string

const (
	// ErrCodeInvalidPoll indicates a poll request with a bad shape
	// (fewer than two options). Reported synchronously, never retried.
	ErrCodeInvalidPoll ErrorCode = "INVALID_POLL"

	// ErrCodeNotFound indicates no instance exists for the given id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeEvaluationResolved indicates a verdict arrived after the
	// evaluation turned terminal.
	ErrCodeEvaluationResolved ErrorCode = "EVALUATION_RESOLVED"
)

// Error is a typed workflow failure with structured fields.
type Error struct {
	Code       ErrorCode
	Message    string
	InstanceID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.InstanceID != "" {
		return fmt.Sprintf("%s: %s (instance=%s)", e.Code, e.Message, e.InstanceID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is (or wraps) a workflow Error with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Code == code
	}
	return false
}

// NewInvalidPoll creates an INVALID_POLL error.
func NewInvalidPoll(message string) *Error {
	return &Error{Code: ErrCodeInvalidPoll, Message: message}
}

// NewNotFound creates a NOT_FOUND error for an instance id.
func NewNotFound(id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: "no such instance", InstanceID: id}
}

// NewEvaluationResolved creates an EVALUATION_RESOLVED error.
func NewEvaluationResolved(id string) *Error {
	return &Error{Code: ErrCodeEvaluationResolved, Message: "evaluation already resolved", InstanceID: id}
}
