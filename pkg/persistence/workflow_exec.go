package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowExecutionStatus is the persisted lifecycle of a durable
// workflow run, used by C7 to detect and resume in-flight work after a
// crash (spec.md §4.7.1).
type WorkflowExecutionStatus string

const (
	WorkflowRunning   WorkflowExecutionStatus = "RUNNING"
	WorkflowCompleted WorkflowExecutionStatus = "COMPLETED"
	WorkflowFailed    WorkflowExecutionStatus = "FAILED"
)

// WorkflowExecution is one durable run of a named workflow type
// (APPackageWorkflow or InvoiceWorkflow).
type WorkflowExecution struct {
	WorkflowID   string
	WorkflowType string
	PackageID    string
	Status       WorkflowExecutionStatus
	StartedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	LastError    string
}

// StartWorkflowExecution records that a workflow has begun, or is a
// no-op if a row with this workflow_id already exists — this is the
// crash-recovery idempotency check: a worker restarting mid-workflow
// finds its own prior row and resumes rather than re-running from
// scratch (spec.md §4.7.4).
func (s *Store) StartWorkflowExecution(ctx context.Context, we WorkflowExecution) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO workflow_executions (workflow_id, workflow_type, package_id, status, started_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (workflow_id) DO NOTHING
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err := s.db.ExecContext(ctx, query, we.WorkflowID, we.WorkflowType, nullString(we.PackageID), string(WorkflowRunning), now, now)
	if err != nil {
		return fmt.Errorf("persistence: start workflow execution %s: %w", we.WorkflowID, err)
	}
	return nil
}

// GetWorkflowExecution fetches a workflow execution's persisted state.
func (s *Store) GetWorkflowExecution(ctx context.Context, workflowID string) (WorkflowExecution, bool, error) {
	query := fmt.Sprintf(`
		SELECT workflow_id, workflow_type, package_id, status, started_at, updated_at, completed_at, last_error
		FROM workflow_executions WHERE workflow_id = %s`, s.ph(1))
	row := s.db.QueryRowContext(ctx, query, workflowID)
	var we WorkflowExecution
	var packageID sql.NullString
	var status string
	var completedAt sql.NullTime
	var lastError sql.NullString
	err := row.Scan(&we.WorkflowID, &we.WorkflowType, &packageID, &status, &we.StartedAt, &we.UpdatedAt, &completedAt, &lastError)
	if err == sql.ErrNoRows {
		return WorkflowExecution{}, false, nil
	}
	if err != nil {
		return WorkflowExecution{}, false, fmt.Errorf("persistence: get workflow execution %s: %w", workflowID, err)
	}
	we.PackageID = packageID.String
	we.Status = WorkflowExecutionStatus(status)
	we.LastError = lastError.String
	if completedAt.Valid {
		t := completedAt.Time
		we.CompletedAt = &t
	}
	return we, true, nil
}

// CompleteWorkflowExecution marks a workflow terminal, successful or not.
func (s *Store) CompleteWorkflowExecution(ctx context.Context, workflowID string, status WorkflowExecutionStatus, lastError string) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE workflow_executions SET status = %s, updated_at = %s, completed_at = %s, last_error = %s WHERE workflow_id = %s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	_, err := s.db.ExecContext(ctx, query, string(status), now, now, nullString(lastError), workflowID)
	if err != nil {
		return fmt.Errorf("persistence: complete workflow execution %s: %w", workflowID, err)
	}
	return nil
}

// ListRunningWorkflowExecutions returns every workflow still RUNNING,
// the set a restarted worker process re-attaches to (spec.md §4.7.1).
func (s *Store) ListRunningWorkflowExecutions(ctx context.Context) ([]WorkflowExecution, error) {
	query := fmt.Sprintf(`
		SELECT workflow_id, workflow_type, package_id, status, started_at, updated_at, completed_at, last_error
		FROM workflow_executions WHERE status = %s ORDER BY started_at ASC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, string(WorkflowRunning))
	if err != nil {
		return nil, fmt.Errorf("persistence: list running workflow executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []WorkflowExecution
	for rows.Next() {
		var we WorkflowExecution
		var packageID sql.NullString
		var status string
		var completedAt sql.NullTime
		var lastError sql.NullString
		if err := rows.Scan(&we.WorkflowID, &we.WorkflowType, &packageID, &status, &we.StartedAt, &we.UpdatedAt, &completedAt, &lastError); err != nil {
			return nil, fmt.Errorf("persistence: scan workflow execution: %w", err)
		}
		we.PackageID = packageID.String
		we.Status = WorkflowExecutionStatus(status)
		we.LastError = lastError.String
		if completedAt.Valid {
			t := completedAt.Time
			we.CompletedAt = &t
		}
		out = append(out, we)
	}
	return out, rows.Err()
}

// ActivityExecutionStatus is the persisted lifecycle of one activity
// attempt.
type ActivityExecutionStatus string

const (
	ActivityRunning   ActivityExecutionStatus = "RUNNING"
	ActivitySucceeded ActivityExecutionStatus = "SUCCEEDED"
	ActivityFailed    ActivityExecutionStatus = "FAILED"
)

// ActivityExecution is one attempt of one activity within a workflow
// execution, keyed by (workflow_id, activity_name, attempt_index) so
// that replay can detect "this attempt already ran" and skip straight
// to its recorded result (spec.md §4.7.4 idempotent caching).
type ActivityExecution struct {
	WorkflowID   string
	ActivityName string
	AttemptIndex int
	Status       ActivityExecutionStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	ResultRef    json.RawMessage
	Error        string
}

// StartActivityExecution records the start of an attempt, a no-op if
// this exact attempt was already recorded.
func (s *Store) StartActivityExecution(ctx context.Context, workflowID, activityName string, attemptIndex int) error {
	query := fmt.Sprintf(`
		INSERT INTO activity_executions (workflow_id, activity_name, attempt_index, status, started_at)
		VALUES (%s, %s, %s, %s, %s)
		ON CONFLICT (workflow_id, activity_name, attempt_index) DO NOTHING
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	_, err := s.db.ExecContext(ctx, query, workflowID, activityName, attemptIndex, string(ActivityRunning), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("persistence: start activity execution %s/%s#%d: %w", workflowID, activityName, attemptIndex, err)
	}
	return nil
}

// CompleteActivityExecution records the outcome of an attempt.
func (s *Store) CompleteActivityExecution(ctx context.Context, workflowID, activityName string, attemptIndex int, status ActivityExecutionStatus, resultRef json.RawMessage, activityErr string) error {
	query := fmt.Sprintf(`
		UPDATE activity_executions SET status = %s, completed_at = %s, result_ref = %s, error = %s
		WHERE workflow_id = %s AND activity_name = %s AND attempt_index = %s
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7))
	_, err := s.db.ExecContext(ctx, query, string(status), time.Now().UTC(), nullableString(resultRef), nullString(activityErr), workflowID, activityName, attemptIndex)
	if err != nil {
		return fmt.Errorf("persistence: complete activity execution %s/%s#%d: %w", workflowID, activityName, attemptIndex, err)
	}
	return nil
}

// FindLastActivityExecution returns the most recent attempt recorded for
// (workflowID, activityName), used to resume a replayed workflow without
// re-invoking an already-succeeded activity (spec.md §4.7.4).
func (s *Store) FindLastActivityExecution(ctx context.Context, workflowID, activityName string) (ActivityExecution, bool, error) {
	query := fmt.Sprintf(`
		SELECT workflow_id, activity_name, attempt_index, status, started_at, completed_at, result_ref, error
		FROM activity_executions WHERE workflow_id = %s AND activity_name = %s
		ORDER BY attempt_index DESC LIMIT 1`, s.ph(1), s.ph(2))
	row := s.db.QueryRowContext(ctx, query, workflowID, activityName)
	var ae ActivityExecution
	var status string
	var completedAt sql.NullTime
	var resultRef, activityErr sql.NullString
	err := row.Scan(&ae.WorkflowID, &ae.ActivityName, &ae.AttemptIndex, &status, &ae.StartedAt, &completedAt, &resultRef, &activityErr)
	if err == sql.ErrNoRows {
		return ActivityExecution{}, false, nil
	}
	if err != nil {
		return ActivityExecution{}, false, fmt.Errorf("persistence: find last activity execution %s/%s: %w", workflowID, activityName, err)
	}
	ae.Status = ActivityExecutionStatus(status)
	ae.Error = activityErr.String
	if completedAt.Valid {
		t := completedAt.Time
		ae.CompletedAt = &t
	}
	if resultRef.Valid {
		ae.ResultRef = json.RawMessage(resultRef.String)
	}
	return ae, true, nil
}
