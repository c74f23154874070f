// Package retryplan computes deterministic retry schedules for workflow
// activities. Delay and jitter are derived from a hash of the attempt's
// identity rather than the wall clock or a PRNG, so a replay of the same
// workflow history recomputes byte-identical schedules (spec.md §4.7.1:
// "no wall-clock reads, no randomness" inside a workflow).
package retryplan

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// Policy describes one activity class's retry behavior (spec.md §4.7.5).
type Policy struct {
	Name            string
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	MaxAttempts     int
	NonRetryable    []string // error type names that short-circuit retry
}

// DBWritePolicy, SplitPDFPolicy, etc. are the named policies from the
// retry/timeout table in spec.md §4.7.5.
var (
	DBWritePolicy = Policy{
		Name: "db_write", InitialDelay: time.Second, MaxDelay: 30 * time.Second,
		BackoffFactor: 2, MaxAttempts: 5,
		NonRetryable: []string{"ValidationError", "IntegrityError"},
	}
	SplitPDFPolicy = Policy{
		Name: "split_pdf", InitialDelay: time.Second, MaxDelay: 30 * time.Second,
		BackoffFactor: 2, MaxAttempts: 3,
	}
	ExtractPolicy = Policy{
		Name: "extract", InitialDelay: time.Second, MaxDelay: 30 * time.Second,
		BackoffFactor: 2, MaxAttempts: 5,
		NonRetryable: []string{"NotFound", "SchemaValidationError"},
	}
	ValidatePolicy = Policy{
		Name: "validate_invoice", InitialDelay: time.Second, MaxDelay: 30 * time.Second,
		BackoffFactor: 2, MaxAttempts: 3,
	}
	ReconcilePolicy = Policy{
		Name: "reconcile_package", InitialDelay: time.Second, MaxDelay: 30 * time.Second,
		BackoffFactor: 2, MaxAttempts: 3,
	}
	ResolvePolicy = Policy{
		Name: "resolve", InitialDelay: time.Second, MaxDelay: 30 * time.Second,
		BackoffFactor: 2, MaxAttempts: 3,
	}
	MappingPolicy = Policy{
		Name: "mapping_payload", InitialDelay: time.Second, MaxDelay: 30 * time.Second,
		BackoffFactor: 2, MaxAttempts: 3,
	}
)

// AttemptKey identifies one retry attempt deterministically.
type AttemptKey struct {
	WorkflowID   string
	ActivityName string
	AttemptIndex int // 0-based
}

// ComputeDelay returns the delay before AttemptIndex (0 = no delay, the
// first try), capped at MaxDelay, with deterministic jitter folded in.
func ComputeDelay(key AttemptKey, p Policy) time.Duration {
	if key.AttemptIndex <= 0 {
		return 0
	}
	exp := key.AttemptIndex - 1
	factor := 1.0
	for i := 0; i < exp && i < 40; i++ {
		factor *= p.BackoffFactor
	}
	base := time.Duration(float64(p.InitialDelay) * factor)
	if base > p.MaxDelay {
		base = p.MaxDelay
	}
	jitter := deterministicJitter(key, base/4)
	delay := base + jitter
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// deterministicJitter derives a stable pseudo-random duration in
// [0, maxJitter) from the attempt's identity.
func deterministicJitter(key AttemptKey, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	seed := fmt.Sprintf("%s:%s:%d", key.WorkflowID, key.ActivityName, key.AttemptIndex)
	h := sha256.Sum256([]byte(seed))
	basis := binary.BigEndian.Uint64(h[:8])
	return time.Duration(basis % uint64(maxJitter))
}

// IsNonRetryable reports whether errType (the error's concrete type name,
// e.g. "ValidationError") is listed as non-retryable for p.
func (p Policy) IsNonRetryable(errType string) bool {
	for _, n := range p.NonRetryable {
		if n == errType {
			return true
		}
	}
	return false
}
