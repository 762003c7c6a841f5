package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchErrorKind classifies terminal fetch failures.
type FetchErrorKind string

// Fetch failure kinds.
const (
	// FetchExhausted means every attempt failed with a server-side error.
	FetchExhausted FetchErrorKind = "exhausted"
	// FetchNonRetryable means the failure was not eligible for retry.
	FetchNonRetryable FetchErrorKind = "non_retryable"
)

// FetchError is returned by the retrying fetch client.
type FetchError struct {
	Kind     FetchErrorKind
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s after %d attempt(s)): %v", e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-success HTTP status from the remote fetch service.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// IsServerError reports whether err carries a 5xx StatusError.
func IsServerError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.Code >= 500 && statusErr.Code <= 599
}

// IsExhausted reports whether err is a FetchError of kind FetchExhausted.
func IsExhausted(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Kind == FetchExhausted
}

// ExtractionError is raised when a job detail page cannot be read.
type ExtractionError struct {
	URL  string
	Step string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.URL, e.Step, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ContactResolutionError describes a failed contact source. It never leaves
// the resolver; it is logged and converted to sentinel values.
type ContactResolutionError struct {
	Source string
	Step   string
	Err    error
}

func (e *ContactResolutionError) Error() string {
	return fmt.Sprintf("contact source %s: %s: %v", e.Source, e.Step, e.Err)
}

func (e *ContactResolutionError) Unwrap() error {
	return e.Err
}

// SinkError wraps a failed append to a named sink.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
