// Package errors provides the structured error system for CasePrep cache
// components, with error codes, counter kinds, and context.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a failure mode of the cache or its durable tier.
type ErrorCode string

const (
	// Key errors - the only caller-visible failures.
	ErrCodeInvalidKeyPart ErrorCode = "INVALID_KEY_PART"

	// Durable tier errors - counted and swallowed at the persistence boundary.
	ErrCodeStorageRead   ErrorCode = "STORAGE_READ"
	ErrCodeStorageWrite  ErrorCode = "STORAGE_WRITE"
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeCompression   ErrorCode = "COMPRESSION"
	ErrCodeParse         ErrorCode = "PARSE"
	ErrCodeNetwork       ErrorCode = "NETWORK"
)

// Kind maps an error code onto one of the four statistics error counters.
type Kind string

const (
	KindStorage     Kind = "storage"
	KindCompression Kind = "compression"
	KindParse       Kind = "parse"
	KindNetwork     Kind = "network"
)

// CacheError is a structured error with code, component context, and cause.
type CacheError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is matches two CacheErrors by code.
func (e *CacheError) Is(target error) bool {
	var ce *CacheError
	if errors.As(target, &ce) {
		return e.Code == ce.Code
	}
	return false
}

// New creates a CacheError with the given code and message.
func New(code ErrorCode, message string) *CacheError {
	return &CacheError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap creates a CacheError around an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *CacheError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// WithComponent sets the component that produced the error.
func (e *CacheError) WithComponent(component string) *CacheError {
	e.Component = component
	return e
}

// WithOperation sets the operation that produced the error.
func (e *CacheError) WithOperation(operation string) *CacheError {
	e.Operation = operation
	return e
}

// KindOf classifies an error into a statistics counter kind. Unrecognized
// errors count as storage failures, the broadest durable-tier category.
func KindOf(err error) Kind {
	var ce *CacheError
	if errors.As(err, &ce) {
		switch ce.Code {
		case ErrCodeCompression:
			return KindCompression
		case ErrCodeParse:
			return KindParse
		case ErrCodeNetwork:
			return KindNetwork
		}
	}
	return KindStorage
}

// IsQuotaExceeded reports whether err indicates the durable tier rejected a
// write for lack of capacity.
func IsQuotaExceeded(err error) bool {
	var ce *CacheError
	return errors.As(err, &ce) && ce.Code == ErrCodeQuotaExceeded
}

// IsInvalidKeyPart reports whether err came from encoding a malformed key.
func IsInvalidKeyPart(err error) bool {
	var ce *CacheError
	return errors.As(err, &ce) && ce.Code == ErrCodeInvalidKeyPart
}
