package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rivieraros/apcore/pkg/domain"
)

// AppendProgressEvent assigns the next monotonic ordinal for packageID
// and appends the event. progress_events is append-only (spec.md §4.2):
// no UPDATE or DELETE statement for this table exists anywhere in this
// package.
func (s *Store) AppendProgressEvent(ctx context.Context, packageID, step, message string) (domain.ProgressEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProgressEvent{}, fmt.Errorf("persistence: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxOrdinal sql.NullInt64
	query := fmt.Sprintf(`SELECT MAX(ordinal) FROM progress_events WHERE package_id = %s`, s.ph(1))
	if err := tx.QueryRowContext(ctx, query, packageID).Scan(&maxOrdinal); err != nil {
		return domain.ProgressEvent{}, fmt.Errorf("persistence: read max ordinal: %w", err)
	}
	ordinal := int64(1)
	if maxOrdinal.Valid {
		ordinal = maxOrdinal.Int64 + 1
	}
	now := time.Now().UTC()
	insert := fmt.Sprintf(`INSERT INTO progress_events (package_id, ordinal, step, message, created_at) VALUES (%s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	if _, err := tx.ExecContext(ctx, insert, packageID, ordinal, step, message, now); err != nil {
		return domain.ProgressEvent{}, fmt.Errorf("persistence: insert progress event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.ProgressEvent{}, fmt.Errorf("persistence: commit progress event: %w", err)
	}
	return domain.ProgressEvent{PackageID: packageID, Ordinal: ordinal, Step: step, Message: message, CreatedAt: now}, nil
}

// ListProgressEvents returns a package's progress log in ordinal order.
func (s *Store) ListProgressEvents(ctx context.Context, packageID string) ([]domain.ProgressEvent, error) {
	query := fmt.Sprintf(`SELECT package_id, ordinal, step, message, created_at FROM progress_events WHERE package_id = %s ORDER BY ordinal ASC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("persistence: list progress events for %s: %w", packageID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ProgressEvent
	for rows.Next() {
		var e domain.ProgressEvent
		if err := rows.Scan(&e.PackageID, &e.Ordinal, &e.Step, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("persistence: scan progress event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendAuditEvent records an immutable audit record. Grounded on the
// teacher's observability/audit_timeline.go queryable-append pattern;
// event_id is generated here when the caller leaves it blank so every
// audit event is globally unique even under concurrent activities.
func (s *Store) AppendAuditEvent(ctx context.Context, e domain.AuditEvent) (domain.AuditEvent, error) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	var details, artifactRefs []byte
	var err error
	if e.Details != nil {
		if details, err = json.Marshal(e.Details); err != nil {
			return domain.AuditEvent{}, fmt.Errorf("persistence: marshal audit details: %w", err)
		}
	}
	if len(e.ArtifactRefs) > 0 {
		if artifactRefs, err = json.Marshal(e.ArtifactRefs); err != nil {
			return domain.AuditEvent{}, fmt.Errorf("persistence: marshal audit artifact_refs: %w", err)
		}
	}
	query := fmt.Sprintf(`
		INSERT INTO audit_events (event_id, severity, kind, package_id, invoice_number, workflow_id, activity_name, details, actor, "timestamp", artifact_refs)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (event_id) DO NOTHING
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11))
	_, err = s.db.ExecContext(ctx, query,
		e.EventID, string(e.Severity), string(e.Kind), nullString(e.PackageID), nullString(e.InvoiceNumber),
		nullString(e.WorkflowID), nullString(e.ActivityName), nullableString(details), e.Actor, e.Timestamp, nullableString(artifactRefs))
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("persistence: append audit event: %w", err)
	}
	return e, nil
}

// ListAuditEventsByPackage returns a package's audit trail in timestamp
// order.
func (s *Store) ListAuditEventsByPackage(ctx context.Context, packageID string) ([]domain.AuditEvent, error) {
	query := fmt.Sprintf(`
		SELECT event_id, severity, kind, package_id, invoice_number, workflow_id, activity_name, details, actor, "timestamp", artifact_refs
		FROM audit_events WHERE package_id = %s ORDER BY "timestamp" ASC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("persistence: list audit events for %s: %w", packageID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanAuditEvent(r rowScanner) (domain.AuditEvent, error) {
	var e domain.AuditEvent
	var severity, kind string
	var packageID, invoiceNumber, workflowID, activityName, details, artifactRefs sql.NullString
	if err := r.Scan(&e.EventID, &severity, &kind, &packageID, &invoiceNumber, &workflowID, &activityName, &details, &e.Actor, &e.Timestamp, &artifactRefs); err != nil {
		return domain.AuditEvent{}, fmt.Errorf("persistence: scan audit event: %w", err)
	}
	e.Severity = domain.AuditSeverity(severity)
	e.Kind = domain.AuditEventKind(kind)
	e.PackageID = packageID.String
	e.InvoiceNumber = invoiceNumber.String
	e.WorkflowID = workflowID.String
	e.ActivityName = activityName.String
	if details.Valid {
		if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
			return domain.AuditEvent{}, fmt.Errorf("persistence: unmarshal audit details: %w", err)
		}
	}
	if artifactRefs.Valid {
		if err := json.Unmarshal([]byte(artifactRefs.String), &e.ArtifactRefs); err != nil {
			return domain.AuditEvent{}, fmt.Errorf("persistence: unmarshal audit artifact_refs: %w", err)
		}
	}
	return e, nil
}
