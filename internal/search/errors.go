package search

import "fmt"

// ValidationError rejects a malformed request before any upstream work runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamTimeout marks a retrieval branch that exceeded its deadline.
type UpstreamTimeout struct {
	Branch string
	Err    error
}

func (e *UpstreamTimeout) Error() string {
	return fmt.Sprintf("%s branch timed out: %v", e.Branch, e.Err)
}

func (e *UpstreamTimeout) Unwrap() error { return e.Err }

// UpstreamUnavailable marks a retrieval branch that failed outright.
type UpstreamUnavailable struct {
	Branch string
	Err    error
}

func (e *UpstreamUnavailable) Error() string {
	return fmt.Sprintf("%s branch unavailable: %v", e.Branch, e.Err)
}

func (e *UpstreamUnavailable) Unwrap() error { return e.Err }

// DataIntegrityError marks a ranked case whose stored record is missing or
// inconsistent. Such cases are dropped from results, never served partial.
type DataIntegrityError struct {
	CaseID string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("case %s failed integrity check: %s", e.CaseID, e.Reason)
}
