package audit

import (
	"context"
	"fmt"

	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/persistence"
)

// StoreLogger persists audit events durably through C2 instead of (or in
// addition to) writing them to stdout. This is the Logger every workflow
// activity uses in production — events survive process restarts and are
// queryable per package via persistence.Store.ListAuditEventsByPackage.
type StoreLogger struct {
	store *persistence.Store
}

// NewStoreLogger wraps s. A nil store fails closed rather than silently
// dropping audit events.
func NewStoreLogger(s *persistence.Store) *StoreLogger {
	return &StoreLogger{store: s}
}

func (l *StoreLogger) Record(ctx context.Context, e domain.AuditEvent) error {
	if l.store == nil {
		return fmt.Errorf("audit: fail-closed: store not configured")
	}
	_, err := l.store.AppendAuditEvent(ctx, e)
	return err
}
