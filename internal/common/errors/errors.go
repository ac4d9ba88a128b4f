// Package errors provides standardized error handling for the analysis pipeline.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeReviewFetchFailed  ErrorCode = "REVIEW_FETCH_FAILED"
	ErrCodeNoReviewsFound     ErrorCode = "NO_REVIEWS_FOUND"
	ErrCodeGenAIUnavailable   ErrorCode = "GENAI_UNAVAILABLE"
	ErrCodeResponseParse      ErrorCode = "RESPONSE_PARSE_FAILED"
	ErrCodeAnalysisInProgress ErrorCode = "ANALYSIS_IN_PROGRESS"
	ErrCodeAnalysisFailed     ErrorCode = "ANALYSIS_FAILED"
	ErrCodePlacesAPI          ErrorCode = "PLACES_API_ERROR"
	ErrCodeGeocodingFailed    ErrorCode = "GEOCODING_FAILED"
	ErrCodeUnexpected         ErrorCode = "UNEXPECTED_ERROR"
)

// Pipeline stages carried on terminal errors so callers can distinguish
// "can't get data" from "can't summarize it".
const (
	StageReviewFetch = "review_fetch"
	StageAnalysis    = "analysis"
	StageUnexpected  = "unexpected"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is supports errors.Is matching on the code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the error code from any error, mapping unknown errors
// to the catch-all code.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Code
	}
	return ErrCodeUnexpected
}

// Normalize wraps an arbitrary error into a StandardError with the
// catch-all code. Existing StandardErrors pass through untouched.
func Normalize(err error, stage string) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		if stdErr.Stage == "" {
			stdErr.Stage = stage
		}
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeUnexpected,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Stage:     stage,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable input validation error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewReviewFetchFailedError creates a retryable review fetch error.
func NewReviewFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeReviewFetchFailed,
		Message:   "Failed to fetch reviews from the places API",
		Details:   err.Error(),
		Stage:     StageReviewFetch,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoReviewsFoundError creates a non-retryable empty result error.
func NewNoReviewsFoundError(placeID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoReviewsFound,
		Message:   "No reviews found for this restaurant",
		Details:   fmt.Sprintf("placeId: %s", placeID),
		Stage:     StageReviewFetch,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenAIUnavailableError signals that every model configuration was
// exhausted. Callers degrade to the fallback analyzer instead of failing.
func NewGenAIUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenAIUnavailable,
		Message:   "All generative model configurations exhausted",
		Details:   details,
		Stage:     StageAnalysis,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseParseError creates an error for unusable model output. Like
// GENAI_UNAVAILABLE it triggers the fallback path, never a caller-visible failure.
func NewResponseParseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseParse,
		Message:   "Model responded but output was not usable JSON",
		Details:   details,
		Stage:     StageAnalysis,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisInProgressError creates the concurrent-session guard error.
func NewAnalysisInProgressError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisInProgress,
		Message:   "Analysis already in progress",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisFailedError creates a terminal analysis-stage error.
func NewAnalysisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisFailed,
		Message:   "Failed to analyze reviews",
		Details:   err.Error(),
		Stage:     StageAnalysis,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlacesAPIError creates an error for a non-OK places API status.
func NewPlacesAPIError(status, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePlacesAPI,
		Message:   fmt.Sprintf("Places API error: %s", status),
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGeocodingFailedError creates an error for a failed address lookup.
func NewGeocodingFailedError(address string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGeocodingFailed,
		Message:   "Failed to geocode address",
		Details:   fmt.Sprintf("address: %s, error: %s", address, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnexpectedError creates the catch-all error.
func NewUnexpectedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnexpected,
		Message:   "Unexpected error during analysis",
		Details:   err.Error(),
		Stage:     StageUnexpected,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
