package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/persistence"
)

var (
	// ErrEmptyPackageID is returned when package ID is empty.
	ErrEmptyPackageID = errors.New("audit: package_id must not be empty")
	// ErrStoreNotConfigured is returned when audit export is invoked without a backing store.
	ErrStoreNotConfigured = errors.New("audit: store not configured (fail-closed)")
)

// ExportRequest defines what to export: one package's full audit trail.
type ExportRequest struct {
	PackageID string `json:"package_id"`
}

// AuditEvidencePack represents the exported bundle — the audit record an
// AP analyst hands to an auditor for one package's processing history.
type AuditEvidencePack struct {
	PackageID   string              `json:"package_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Checksum    string              `json:"checksum"`
	Events      []domain.AuditEvent `json:"events"`
}

// Exporter handles the creation of evidence packs.
type Exporter struct {
	store *persistence.Store
}

// NewExporter wraps s.
func NewExporter(s *persistence.Store) *Exporter {
	return &Exporter{store: s}
}

// GeneratePack creates a zip file containing a package's audit log and a
// manifest with its checksum (grounded on the teacher's audit.Exporter
// zip-evidence-pack pattern, generalized from a tenant/time-range query
// to a single package's full history).
func (e *Exporter) GeneratePack(ctx context.Context, req ExportRequest) ([]byte, string, error) {
	if req.PackageID == "" {
		return nil, "", ErrEmptyPackageID
	}
	if e.store == nil {
		return nil, "", ErrStoreNotConfigured
	}

	entries, err := e.store.ListAuditEventsByPackage(ctx, req.PackageID)
	if err != nil {
		return nil, "", fmt.Errorf("audit: query events for %s: %w", req.PackageID, err)
	}

	eventsJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, "", err
	}

	manifest := map[string]any{
		"package_id":   req.PackageID,
		"generated_at": time.Now().UTC(),
		"event_count":  len(entries),
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	f, err := w.Create("events.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(eventsJSON)

	f, err = w.Create("manifest.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(manifestJSON)

	f, err = w.Create("README.txt")
	if err != nil {
		return nil, "", err
	}
	_, _ = fmt.Fprintf(f, "Audit evidence pack for package %s\nGenerated at %s\n", req.PackageID, time.Now().UTC())

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	hash := sha256.Sum256(zipBytes)
	return zipBytes, hex.EncodeToString(hash[:]), nil
}
