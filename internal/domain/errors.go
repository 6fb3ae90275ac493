package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code and message, so wrapped copies of
// a sentinel still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeMalformedInput = "MALFORMED_INPUT"
	ErrCodeServiceError   = "SERVICE_ERROR"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Input errors
var (
	ErrMalformedDocument   = NewDomainError(ErrCodeMalformedInput, "unsupported or corrupt document")
	ErrUnsupportedDocument = NewDomainError(ErrCodeMalformedInput, "only PDF documents are supported")
)

// Not found errors
var (
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
)

// Service errors
var (
	ErrServiceUnavailable = NewDomainError(ErrCodeServiceError, "external service call failed")
	ErrEmptyCompletion    = NewDomainError(ErrCodeServiceError, "generation returned no choices")
)

// Stage names a step of the ingestion or answer pipeline
type Stage string

const (
	StageArchive  Stage = "archive"
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StageIndex    Stage = "index"
	StageRoute    Stage = "route"
	StageRewrite  Stage = "rewrite"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
)

// StageError reports which pipeline stage failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the failing stage. A nil err stays nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// ServiceFailure marks err as a failed call to an external capability.
func ServiceFailure(message string, err error) error {
	return NewDomainErrorWithCause(ErrCodeServiceError, ErrServiceUnavailable.Message, fmt.Errorf("%s: %w", message, err))
}

// FailedStage returns the stage recorded in err's chain, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// ErrorCode returns the code of the first DomainError in err's chain,
// ErrCodeInternalError otherwise.
func ErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}
