// Package workflow implements C7, the durable orchestrator that drives a
// package from upload through ERP-payload generation. It is a hand-rolled
// durable-execution runtime rather than a binding to an external
// workflow-engine product: each workflow is an ordinary Go function, and
// durability comes from memoizing every activity's outcome in
// pkg/persistence's workflow_executions/activity_executions tables
// (spec.md §4.7.1, §4.7.4). A worker that crashes mid-package restarts the
// same function with the same workflow id; RunActivity finds the prior
// SUCCEEDED attempts and returns their cached results instead of
// repeating the side effects, so re-entry is safe without a full
// deterministic-replay interpreter.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/rivieraros/apcore/internal/aperrors"
	"github.com/rivieraros/apcore/internal/obslog"
	"github.com/rivieraros/apcore/internal/retryplan"
	"github.com/rivieraros/apcore/pkg/persistence"
)

// ActivityFunc is one unit of non-deterministic work. Its result must be
// JSON-marshalable; Runner persists exactly the bytes fn returns.
type ActivityFunc func(ctx context.Context) (json.RawMessage, error)

// Runner executes activities on behalf of one workflow instance, handling
// memoization and retry scheduling common to every activity call.
// Progress and audit entries are not written here; workflows record them
// through their own activities.
type Runner struct {
	store      *persistence.Store
	workflowID string
	log        *obslog.Logger
}

// NewRunner builds a Runner bound to one workflow id.
func NewRunner(store *persistence.Store, workflowID string, log *obslog.Logger) *Runner {
	if log == nil {
		log = obslog.New()
	}
	return &Runner{store: store, workflowID: workflowID, log: log.With(map[string]any{"workflow_id": workflowID})}
}

// WorkflowID returns the bound workflow id.
func (r *Runner) WorkflowID() string { return r.workflowID }

// Start records the beginning of this workflow's execution, or is a
// no-op if it was already recorded — a worker re-entering a workflow id
// after a crash finds its own prior row rather than starting a second
// one (spec.md §4.7.1). Call once at the top of a workflow function,
// before any RunActivity/RunTyped calls.
func (r *Runner) Start(ctx context.Context, workflowType, packageID string) error {
	if err := r.store.StartWorkflowExecution(ctx, persistence.WorkflowExecution{
		WorkflowID:   r.workflowID,
		WorkflowType: workflowType,
		PackageID:    packageID,
	}); err != nil {
		return fmt.Errorf("workflow: start %s: %w", workflowType, err)
	}
	return nil
}

// Finish marks this workflow's execution terminal. Call it from the
// workflow function's return path, success or failure: a nil runErr
// records WorkflowCompleted, otherwise WorkflowFailed with runErr's
// message.
func (r *Runner) Finish(ctx context.Context, runErr error) error {
	status := persistence.WorkflowCompleted
	lastError := ""
	if runErr != nil {
		status = persistence.WorkflowFailed
		lastError = runErr.Error()
	}
	if err := r.store.CompleteWorkflowExecution(ctx, r.workflowID, status, lastError); err != nil {
		return fmt.Errorf("workflow: finish: %w", err)
	}
	return nil
}

// RunActivity executes fn under name according to policy p: if a prior
// attempt already SUCCEEDED, its cached result is returned without
// calling fn again (spec.md §4.7.4). Otherwise fn runs following p's
// pre-committed retry plan (internal/retryplan), persisting the outcome
// of every attempt. A non-retryable error (per p.NonRetryable, matched
// against err's concrete type name) short-circuits the remaining
// schedule.
func (r *Runner) RunActivity(ctx context.Context, name string, p retryplan.Policy, fn ActivityFunc) (json.RawMessage, error) {
	if ae, found, err := r.store.FindLastActivityExecution(ctx, r.workflowID, name); err == nil && found && ae.Status == persistence.ActivitySucceeded {
		r.log.Info("activity memoized", map[string]any{"activity": name})
		return ae.ResultRef, nil
	}

	plan := retryplan.BuildPlan(r.workflowID, name, p, time.Now().UTC())
	var lastErr error
	for _, attempt := range plan.Schedule {
		if attempt.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(attempt.Delay):
			}
		}

		if err := r.store.StartActivityExecution(ctx, r.workflowID, name, attempt.AttemptIndex); err != nil {
			return nil, fmt.Errorf("workflow: start activity %s: %w", name, err)
		}

		result, err := fn(ctx)
		if err == nil {
			if cerr := r.store.CompleteActivityExecution(ctx, r.workflowID, name, attempt.AttemptIndex, persistence.ActivitySucceeded, result, ""); cerr != nil {
				return nil, fmt.Errorf("workflow: complete activity %s: %w", name, cerr)
			}
			return result, nil
		}

		lastErr = err
		_ = r.store.CompleteActivityExecution(ctx, r.workflowID, name, attempt.AttemptIndex, persistence.ActivityFailed, nil, err.Error())
		r.log.Warn("activity attempt failed", map[string]any{"activity": name, "attempt": attempt.AttemptIndex, "error": err.Error()})

		if p.IsNonRetryable(errorTypeName(err)) {
			break
		}
	}
	return nil, fmt.Errorf("workflow: activity %s exhausted retries: %w", name, lastErr)
}

// errorTypeName walks err's Unwrap chain for the first internal/aperrors
// Classified type and returns its bare name (e.g. "ValidationError",
// "NotFound") — the form a retryplan.Policy's NonRetryable list names.
// An error outside the taxonomy returns its Go type name unmodified,
// which never matches a policy's list and so is retried like any other
// unrecognized failure.
func errorTypeName(err error) string {
	for err != nil {
		if _, ok := err.(aperrors.Classified); ok {
			t := reflect.TypeOf(err)
			if t.Kind() == reflect.Ptr {
				t = t.Elem()
			}
			return t.Name()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return fmt.Sprintf("%T", err)
}

// RunTyped wraps RunActivity for an activity whose result is a single Go
// value rather than a raw JSON message: fn runs (if not memoized), its
// return value is encoded for storage, and the stored bytes (fresh or
// memoized) are decoded back into T before returning.
func RunTyped[T any](ctx context.Context, r *Runner, name string, p retryplan.Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, err := r.RunActivity(ctx, name, p, func(ctx context.Context) (json.RawMessage, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return encode(v)
	})
	if err != nil {
		return out, err
	}
	if err := decode(name, raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

// decode unmarshals an activity's JSON result into out, wrapping any
// failure with the activity name for diagnosability.
func decode(name string, raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("workflow: decode %s result: %w", name, err)
	}
	return nil
}

// encode marshals v for return from an ActivityFunc.
func encode(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("workflow: encode activity result: %w", err)
	}
	return b, nil
}
