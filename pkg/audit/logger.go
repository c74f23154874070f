// Package audit records and queries the AP pipeline's audit trail
// (spec.md §4.2, §3 AuditEvent). It mirrors the teacher's
// pkg/audit/logger.go shape — a stdout JSON-line Logger plus a
// store-backed Logger satisfying the same interface — generalized from
// HELM's tenant/actor-principal audit events to the AP domain's
// workflow/activity/package audit events.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rivieraros/apcore/pkg/domain"
)

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, e domain.AuditEvent) error
}

// logger implements Logger, writing structured JSON to a configurable
// Writer. Used for local/dev visibility; production deployments should
// use StoreLogger so events are durable and queryable.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger { return NewLoggerWithWriter(os.Stdout) }

// NewLoggerWithWriter creates a Logger writing to w.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w}
}

func (l *logger) Record(ctx context.Context, e domain.AuditEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Actor == "" {
		e.Actor = "system"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(b, '\n')...))
	return err
}
