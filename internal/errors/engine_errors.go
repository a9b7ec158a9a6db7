package errors

import (
	"fmt"
)

// ErrorCategory classifies engine failures into the three families the
// runner branches on: recoverable input conditions, policy rejections,
// and fatal contract violations.
type ErrorCategory string

const (
	// Fatal errors abort the offending strategy's evaluation for the tick
	ErrorCategoryFatal    ErrorCategory = "FATAL"
	ErrorCategoryContract ErrorCategory = "CONTRACT"
	ErrorCategoryConfig   ErrorCategory = "CONFIG"

	// Recoverable input conditions: drop the signal/tick, keep running
	ErrorCategoryData       ErrorCategory = "DATA"
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	ErrorCategoryIndicator  ErrorCategory = "INDICATOR"

	// External collaborator failures
	ErrorCategoryGateway ErrorCategory = "GATEWAY"
	ErrorCategoryTimeout ErrorCategory = "TIMEOUT"
)

// EngineError is a categorized error with component/operation context.
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
}

func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether the error indicates a broken invariant rather
// than a market condition. Fatal errors must never be swallowed.
func (e *EngineError) IsFatal() bool {
	switch e.Category {
	case ErrorCategoryFatal, ErrorCategoryContract, ErrorCategoryConfig:
		return true
	}
	return false
}

// IsRecoverable reports whether the error is an expected input condition
// that callers handle by dropping the affected signal or tick.
func (e *EngineError) IsRecoverable() bool {
	switch e.Category {
	case ErrorCategoryData, ErrorCategoryValidation, ErrorCategoryIndicator:
		return true
	}
	return false
}

// New creates a categorized engine error.
func New(category ErrorCategory, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap attaches engine context to an existing error. Returns nil for nil.
func Wrap(err error, category ErrorCategory, component, operation string) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// Newf creates a categorized engine error with a formatted message.
func Newf(category ErrorCategory, component, operation, format string, args ...interface{}) *EngineError {
	return New(category, component, operation, fmt.Sprintf(format, args...))
}

// NewDataError reports a malformed or insufficient market-data window.
func NewDataError(component, operation, message string) *EngineError {
	return New(ErrorCategoryData, component, operation, message)
}

// NewContractError reports a violated component contract, e.g. a strategy
// returning a signal for an instrument it was not asked about.
func NewContractError(component, operation, message string) *EngineError {
	return New(ErrorCategoryContract, component, operation, message)
}

// NewConfigError reports an invalid configuration value.
func NewConfigError(component, operation, message string) *EngineError {
	return New(ErrorCategoryConfig, component, operation, message)
}

// NewGatewayError wraps an execution-boundary failure.
func NewGatewayError(component, operation string, err error) *EngineError {
	return Wrap(err, ErrorCategoryGateway, component, operation)
}

// IsFatal reports whether err is a fatal EngineError.
func IsFatal(err error) bool {
	if ee, ok := err.(*EngineError); ok {
		return ee.IsFatal()
	}
	return false
}

// Category extracts the category of an EngineError, or FATAL for any
// uncategorized error.
func Category(err error) ErrorCategory {
	if ee, ok := err.(*EngineError); ok {
		return ee.Category
	}
	return ErrorCategoryFatal
}
