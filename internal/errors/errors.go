package errors

import (
	stderrors "errors"
	"fmt"
)

// Error type constants
const (
	ValidationError    = "VALIDATION_ERROR"
	RequiredFieldEmpty = "REQUIRED_FIELD_EMPTY"
	FieldTooLong       = "FIELD_TOO_LONG"
	InvalidDigits      = "INVALID_DIGITS"
	InvalidEnumValue   = "INVALID_ENUM_VALUE"
	UnknownField       = "UNKNOWN_FIELD"
	MissingParameter   = "MISSING_PARAMETER"
	StepExecutionError = "STEP_EXECUTION_ERROR"
	FormFillError      = "FORM_FILL_ERROR"
	ClassifiedError    = "CLASSIFIED_ERROR"
	UnknownOutcome     = "UNKNOWN_OUTCOME"
	ScreenNotFound     = "SCREEN_NOT_FOUND"
	ConnectionFailed   = "CONNECTION_FAILED"
)

// RunError is a structured error reported to CLI, HTTP and MCP callers.
type RunError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Step      int    `json:"step,omitempty"`
	Retryable bool   `json:"retryable"`
	Hint      string `json:"hint,omitempty"`
	Err       error  `json:"-"`
}

func (e *RunError) Error() string {
	switch {
	case e.Step != 0:
		return fmt.Sprintf("[%s] step %d: %s", e.Type, e.Step, e.Message)
	case e.Field != "":
		return fmt.Sprintf("[%s] field %s: %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// IsType reports whether err wraps a RunError of the given type.
func IsType(err error, typ string) bool {
	var re *RunError
	if stderrors.As(err, &re) {
		return re.Type == typ
	}
	return false
}

// TypeOf returns the RunError type wrapped by err, or "" if there is none.
func TypeOf(err error) string {
	var re *RunError
	if stderrors.As(err, &re) {
		return re.Type
	}
	return ""
}

func NewValidationError(msg, hint string) *RunError {
	return &RunError{Type: ValidationError, Message: msg, Hint: hint}
}

func NewFieldError(typ, field, msg string) *RunError {
	return &RunError{Type: typ, Field: field, Message: msg}
}

// NewStepError wraps a session failure that happened while executing a step.
func NewStepError(step int, cause error) *RunError {
	return &RunError{
		Type:    StepExecutionError,
		Step:    step,
		Message: fmt.Sprintf("error executing step %d: %v", step, cause),
		Err:     cause,
	}
}
