package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// AnalysisError represents a failure anywhere in the extraction pipeline, with
// enough context to decide whether it may be retried against another provider
type AnalysisError struct {
	Type       ErrorType `json:"type"`
	Op         string    `json:"op,omitempty"`
	Message    string    `json:"message"`
	DocumentID string    `json:"document_id,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Err        error     `json:"-"`
}

// ErrorType represents the categories of pipeline errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeNotFound
	ErrorTypeExtraction
	ErrorTypeInvalidResponse
	ErrorTypeConfiguration
	ErrorTypeValidation
	ErrorTypeProvider
)

// Error implements the error interface
func (e *AnalysisError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeExtraction:
		return "EXTRACTION_ERROR"
	case ErrorTypeInvalidResponse:
		return "INVALID_RESPONSE"
	case ErrorTypeConfiguration:
		return "CONFIGURATION_ERROR"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeProvider:
		return "PROVIDER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsRetryable reports whether an error of this type qualifies for the
// provider fallback hop
func (et ErrorType) IsRetryable() bool {
	switch et {
	case ErrorTypeInvalidResponse, ErrorTypeProvider:
		return true
	default:
		return false
	}
}

func newError(errorType ErrorType, op, message string, err error) *AnalysisError {
	return &AnalysisError{
		Type:    errorType,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NotFound reports a missing document or page
func NotFound(op, documentID string) *AnalysisError {
	e := newError(ErrorTypeNotFound, op, fmt.Sprintf("document not found: %s", documentID), nil)
	e.DocumentID = documentID
	return e
}

// Extraction reports that text extraction or OCR failed
func Extraction(op, message string, err error) *AnalysisError {
	return newError(ErrorTypeExtraction, op, message, err)
}

// InvalidResponse reports an LLM response that could not be parsed
func InvalidResponse(op, message string, err error) *AnalysisError {
	return newError(ErrorTypeInvalidResponse, op, message, err)
}

// Configuration reports a startup-time misconfiguration
func Configuration(op, message string) *AnalysisError {
	return newError(ErrorTypeConfiguration, op, message, nil)
}

// Validation reports a malformed request
func Validation(op, message string) *AnalysisError {
	return newError(ErrorTypeValidation, op, message, nil)
}

// Provider reports a failed call to an LLM backend
func Provider(op, provider string, err error) *AnalysisError {
	e := newError(ErrorTypeProvider, op, fmt.Sprintf("provider %s failed", provider), err)
	e.Provider = provider
	return e
}

// WithDocument adds document information to an existing AnalysisError
func (e *AnalysisError) WithDocument(documentID string) *AnalysisError {
	e.DocumentID = documentID
	return e
}

// TypeOf returns the ErrorType carried anywhere in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var ae *AnalysisError
	if stderrors.As(err, &ae) {
		return ae.Type
	}
	return ErrorTypeUnknown
}

// IsNotFound reports whether err is a NotFound error
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }

// IsExtraction reports whether err is an extraction error
func IsExtraction(err error) bool { return TypeOf(err) == ErrorTypeExtraction }

// IsInvalidResponse reports whether err is an invalid LLM response
func IsInvalidResponse(err error) bool { return TypeOf(err) == ErrorTypeInvalidResponse }

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool { return TypeOf(err) == ErrorTypeConfiguration }

// IsValidation reports whether err is a request validation error
func IsValidation(err error) bool { return TypeOf(err) == ErrorTypeValidation }

// IsRetryable reports whether err may be retried once against an alternate
// provider. Timeouts count as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return TypeOf(err).IsRetryable()
}
