package retryplan

import "time"

// ScheduledAttempt is one entry in a pre-committed retry schedule.
type ScheduledAttempt struct {
	AttemptIndex int           `json:"attempt_index"`
	Delay        time.Duration `json:"delay"`
	ScheduledAt  time.Time     `json:"scheduled_at"`
}

// Plan is the full pre-committed schedule for one activity invocation.
// Committing the whole schedule up front (rather than computing delay
// attempt-by-attempt against the wall clock) keeps replay deterministic:
// a workflow history entry records which attempt ran, and recomputing the
// same Plan from the same (workflowID, activityName, startedAt) always
// reproduces the same schedule.
type Plan struct {
	WorkflowID   string             `json:"workflow_id"`
	ActivityName string             `json:"activity_name"`
	PolicyName   string             `json:"policy_name"`
	Schedule     []ScheduledAttempt `json:"schedule"`
}

// BuildPlan generates the full attempt schedule for an activity starting
// at startedAt (an activity-provided timestamp, never time.Now() read
// from inside a workflow).
func BuildPlan(workflowID, activityName string, p Policy, startedAt time.Time) Plan {
	schedule := make([]ScheduledAttempt, p.MaxAttempts)
	cursor := startedAt
	for i := 0; i < p.MaxAttempts; i++ {
		key := AttemptKey{WorkflowID: workflowID, ActivityName: activityName, AttemptIndex: i}
		delay := ComputeDelay(key, p)
		cursor = cursor.Add(delay)
		schedule[i] = ScheduledAttempt{AttemptIndex: i, Delay: delay, ScheduledAt: cursor}
	}
	return Plan{WorkflowID: workflowID, ActivityName: activityName, PolicyName: p.Name, Schedule: schedule}
}
