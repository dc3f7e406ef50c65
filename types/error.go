package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Agent invocation error codes
const (
	ErrAgentTransient ErrorCode = "AGENT_TRANSIENT"
	ErrAgentPermanent ErrorCode = "AGENT_PERMANENT"
	ErrCallTimeout    ErrorCode = "CALL_TIMEOUT"
	ErrCircuitOpen    ErrorCode = "CIRCUIT_OPEN"
)

// Routing error codes
const (
	ErrNoAgentAvailable ErrorCode = "NO_AGENT_AVAILABLE"
	ErrAgentNotFound    ErrorCode = "AGENT_NOT_FOUND"
	ErrUnknownIntent    ErrorCode = "UNKNOWN_INTENT"
)

// Workflow error codes
const (
	ErrInvalidWorkflow   ErrorCode = "INVALID_WORKFLOW"
	ErrCyclicDependency  ErrorCode = "CYCLIC_DEPENDENCY"
	ErrUnknownDependency ErrorCode = "UNKNOWN_DEPENDENCY"
	ErrDuplicateTask     ErrorCode = "DUPLICATE_TASK"
	ErrWorkflowTimeout   ErrorCode = "WORKFLOW_TIMEOUT"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Agent     string    `json:"agent,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithAgent sets the agent identifier the error originated from.
func (e *Error) WithAgent(agent string) *Error {
	e.Agent = agent
	return e
}

// NewTransient creates a transient agent error (timeout, connection failure).
// Transient errors are retryable at the workflow level.
func NewTransient(agent, message string) *Error {
	return &Error{Code: ErrAgentTransient, Message: message, Agent: agent, Retryable: true}
}

// NewPermanent creates a permanent agent error (invalid request, rejected by
// the endpoint). Permanent errors are not retryable.
func NewPermanent(agent, message string) *Error {
	return &Error{Code: ErrAgentPermanent, Message: message, Agent: agent}
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsTransient reports whether the error is a transient agent failure.
func IsTransient(err error) bool {
	return GetErrorCode(err) == ErrAgentTransient
}

// IsPermanent reports whether the error is a permanent agent failure.
func IsPermanent(err error) bool {
	return GetErrorCode(err) == ErrAgentPermanent
}
