package splunk

import "fmt"

// ConnectionError indicates the backend is unreachable or misconfigured.
// Callers may retry these.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("splunk connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError indicates the backend rejected our credentials.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("splunk authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SubmitError indicates the backend rejected the search itself, typically a
// syntax problem. Retrying the same query will not help.
type SubmitError struct {
	Query string
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("search submission rejected: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// SearchError indicates a submitted job failed or polling/result streaming
// errored out.
type SearchError struct {
	SID string
	Err error
}

func (e *SearchError) Error() string {
	if e.SID != "" {
		return fmt.Sprintf("search job %s failed: %v", e.SID, e.Err)
	}
	return fmt.Sprintf("search failed: %v", e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// ValidationError indicates a caller-supplied parameter was rejected before
// anything was submitted to the backend.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
