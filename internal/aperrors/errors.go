// Package aperrors defines the error taxonomy used across activity and
// workflow boundaries (spec.md §7). Every error that can cross an activity
// boundary is one of the concrete types below; retry policies classify by
// type, never by string-matching messages.
package aperrors

import "fmt"

// Classification determines how the workflow engine's retry policy treats
// an error returned from an activity.
type Classification string

const (
	// Retryable indicates a transient failure that may succeed on retry.
	Retryable Classification = "RETRYABLE"
	// NonRetryable indicates a permanent failure; the activity/workflow
	// must fail immediately.
	NonRetryable Classification = "NON_RETRYABLE"
	// IdempotentSafe indicates the operation already completed in a prior
	// attempt; the caller should treat this as success.
	IdempotentSafe Classification = "IDEMPOTENT_SAFE"
)

// Classified is implemented by every error type in this package.
type Classified interface {
	error
	Classification() Classification
}

// TransientIoError wraps network, DB-lock, 5xx, or timeout failures.
// Retried per the activity's retry policy.
type TransientIoError struct {
	Op  string
	Err error
}

func (e *TransientIoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient io error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transient io error during %s", e.Op)
}
func (e *TransientIoError) Unwrap() error            { return e.Err }
func (e *TransientIoError) Classification() Classification { return Retryable }

// RateLimited indicates the caller was rate limited; RetryAfter, when
// non-zero, is honored by the retry policy as the minimum backoff delay.
type RateLimited struct {
	RetryAfterMs int64
	Err          error
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %dms: %v", e.RetryAfterMs, e.Err)
}
func (e *RateLimited) Unwrap() error            { return e.Err }
func (e *RateLimited) Classification() Classification { return Retryable }

// IntegrityError indicates an artifact hash mismatch or FK violation.
// Non-retryable; the owning package transitions to FAILED.
type IntegrityError struct {
	Subject string
	Want    string
	Got     string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error on %s: want %s, got %s", e.Subject, e.Want, e.Got)
}
func (e *IntegrityError) Classification() Classification { return NonRetryable }

// SchemaValidationError indicates extractor output failed schema
// validation. Non-retryable; the raw bytes may still be persisted as an
// artifact before the workflow fails.
type SchemaValidationError struct {
	Schema string
	Errs   []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed against %s: %v", e.Schema, e.Errs)
}
func (e *SchemaValidationError) Classification() Classification { return NonRetryable }

// NotFound indicates a missing PDF or missing referenced row.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string              { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }
func (e *NotFound) Classification() Classification { return NonRetryable }

// ValidationError indicates a domain rule violation (e.g. unknown
// feedlot_family).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Reason)
}
func (e *ValidationError) Classification() Classification { return NonRetryable }

// BusinessWarning is not an exception — it never terminates a workflow; it
// is carried in result payloads and audit events. Kept as an error type
// only so it can travel through the same Classified-checking code paths
// when a caller wants to log it uniformly.
type BusinessWarning struct {
	Code    string
	Message string
}

func (e *BusinessWarning) Error() string              { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func (e *BusinessWarning) Classification() Classification { return IdempotentSafe }

// ClassificationOf returns the classification for any error, defaulting to
// NonRetryable for unrecognized error types (fail-closed).
func ClassificationOf(err error) Classification {
	if err == nil {
		return IdempotentSafe
	}
	var c Classified
	if as(err, &c) {
		return c.Classification()
	}
	return NonRetryable
}

// as is a tiny errors.As shim kept local to avoid importing errors twice
// for a one-line use; behaves identically to errors.As.
func as(err error, target *Classified) bool {
	for err != nil {
		if c, ok := err.(Classified); ok {
			*target = c
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
