// Package syncerr defines the error kinds raised while synchronizing
// draw and retailer data from external sources.
package syncerr

import "fmt"

// NetworkError is an unreachable source, a timeout or a non-success status.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("network: %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("network: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SourceFormatError means a page or payload did not have the expected structure.
type SourceFormatError struct {
	Source string
	Reason string
	Err    error
}

func (e *SourceFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source format: %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("source format: %s: %s", e.Source, e.Reason)
}

func (e *SourceFormatError) Unwrap() error { return e.Err }

// ValidationError means a parsed record violates a domain invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ConflictError is a disagreement between two sources about the same record.
type ConflictError struct {
	Key    string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s: %s", e.Key, e.Reason)
}

// ParseError is a missing or malformed field in community post text.
type ParseError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse: %s: %s", e.Field, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func Network(url string, status int, err error) error {
	return &NetworkError{URL: url, Status: status, Err: err}
}

func Format(source, reason string, err error) error {
	return &SourceFormatError{Source: source, Reason: reason, Err: err}
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func Conflict(key, format string, args ...any) error {
	return &ConflictError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

func Parse(field, reason string, err error) error {
	return &ParseError{Field: field, Reason: reason, Err: err}
}
