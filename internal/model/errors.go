package model

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of failure categories exposed to callers.
// Transport-level mapping lives in internal/server; nothing else may invent
// codes.
type ErrorCode string

const (
	ErrSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
	ErrAllSourcesFailed  ErrorCode = "ALL_SOURCES_FAILED"
	ErrTimeout           ErrorCode = "TIMEOUT"
	ErrRateLimit         ErrorCode = "RATE_LIMIT"
	ErrQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"
	ErrValidation        ErrorCode = "VALIDATION_ERROR"
	ErrInternal          ErrorCode = "INTERNAL_ERROR"
)

// PipelineError tags an error with the stage it occurred in and its code.
type PipelineError struct {
	Stage Stage
	Code  ErrorCode
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed at %s", e.Code, e.Stage)
	}
	return fmt.Sprintf("%s at %s: %v", e.Code, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError builds a tagged pipeline error.
func NewPipelineError(stage Stage, code ErrorCode, err error) *PipelineError {
	return &PipelineError{Stage: stage, Code: code, Err: err}
}

// CodeOf extracts the error code from an error chain, defaulting to
// INTERNAL_ERROR for untagged errors.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrInternal
}

// StageOf extracts the failing stage from an error chain, if tagged.
func StageOf(err error) (Stage, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage, true
	}
	return "", false
}
