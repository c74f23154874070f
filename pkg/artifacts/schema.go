package artifacts

import (
	"encoding/json"
	"time"
)

// Artifact type tags stamped into ArtifactEnvelope.Type (spec.md §3, §4.1).
const (
	TypeStatementDocument = "ap/statement-document"
	TypeInvoiceDocument   = "ap/invoice-document"
	TypeValidationResult  = "ap/validation-result"
	TypeReconciliationReport = "ap/reconciliation-report"
	TypeERPPayload        = "ap/erp-payload"
	TypeSourcePDF         = "ap/source-pdf"
)

// ArtifactEnvelope is the signed wrapper persisted in the CAS for every
// structured artifact (statement/invoice extractions, validation results,
// reconciliation reports, ERP payloads). Grounded on the teacher's
// ArtifactEnvelope (pkg/artifacts/schema.go), generalized from Helm's
// evidence types to the AP domain's document types.
type ArtifactEnvelope struct {
	Type           string          `json:"type"`
	SchemaVersion  string          `json:"schema_version"`
	ProducerID     string          `json:"producer_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload"`
	Signature      string          `json:"signature,omitempty"`
	SignatureKeyID string          `json:"signature_key_id,omitempty"`
}
