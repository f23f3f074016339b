package services

import "errors"

// ErrorKind classifies extraction failures so callers can tell a failed
// network hop from a reply that could not be decoded.
type ErrorKind string

const (
	// ErrKindTransport covers network or file-read failures before the LLM
	// API produced a response.
	ErrKindTransport ErrorKind = "transport"
	// ErrKindUpstream covers non-success responses from the LLM API. The
	// raw error body is carried in Details verbatim for diagnosis.
	ErrKindUpstream ErrorKind = "upstream"
	// ErrKindParse covers successful replies whose content was not
	// recoverable as a JSON array.
	ErrKindParse ErrorKind = "parse"
	// ErrKindEmptyResult covers a parse that succeeded but yielded zero
	// questions. An empty quiz is a failed extraction, not a valid result.
	ErrKindEmptyResult ErrorKind = "empty_result"
)

// ExtractionError is the error type returned by the extraction pipeline.
type ExtractionError struct {
	Kind    ErrorKind
	Message string
	Details string
}

func (e *ExtractionError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func newExtractionError(kind ErrorKind, message, details string) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: message, Details: details}
}

// KindOf returns the extraction error kind, or ok=false for any other error.
func KindOf(err error) (ErrorKind, bool) {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}
