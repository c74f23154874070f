// Package domain holds the entities shared across every component of the
// AP orchestration core (spec.md §3). Keeping them in one leaf package
// avoids import cycles between persistence, the resolvers, and the
// workflow orchestrator, all of which read and write these shapes.
package domain

import "time"

// FeedlotFamily selects page-categorization keywords, prompt templates,
// and the statement-total source (spec.md GLOSSARY). New families are
// added via config, not code changes.
type FeedlotFamily string

const (
	FamilyBovina   FeedlotFamily = "BOVINA"
	FamilyMesquite FeedlotFamily = "MESQUITE"
)

// PackageStatus is the package lifecycle state machine (spec.md §3).
type PackageStatus string

const (
	PackageStarted          PackageStatus = "STARTED"
	PackageExtracting       PackageStatus = "EXTRACTING"
	PackageExtracted        PackageStatus = "EXTRACTED"
	PackageValidating       PackageStatus = "VALIDATING"
	PackageValidated        PackageStatus = "VALIDATED"
	PackageReconciling      PackageStatus = "RECONCILING"
	PackageReconciledPass   PackageStatus = "RECONCILED_PASS"
	PackageReconciledWarn   PackageStatus = "RECONCILED_WARN"
	PackageReconciledFail   PackageStatus = "RECONCILED_FAIL"
	PackageMapping          PackageStatus = "MAPPING"
	PackageMapped           PackageStatus = "MAPPED"
	PackagePosting          PackageStatus = "POSTING"
	PackagePosted           PackageStatus = "POSTED"
	PackageFailed           PackageStatus = "FAILED"
	PackageCancelled        PackageStatus = "CANCELLED"
)

// InvoiceStatus is the per-invoice lifecycle state machine (spec.md §3).
type InvoiceStatus string

const (
	InvoiceExtracted      InvoiceStatus = "EXTRACTED"
	InvoiceValidatedPass  InvoiceStatus = "VALIDATED_PASS"
	InvoiceValidatedFail  InvoiceStatus = "VALIDATED_FAIL"
	InvoiceMapped         InvoiceStatus = "MAPPED"
	InvoicePosted         InvoiceStatus = "POSTED"
)

// DataReference is an immutable descriptor of a stored artifact. It never
// carries the bytes themselves (spec.md §4.1, §4.7.6).
type DataReference struct {
	StorageURI  string    `json:"storage_uri"`
	ContentHash string    `json:"content_hash"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StoredAt    time.Time `json:"stored_at"`
}

// Package is one AP submission (spec.md §3).
type Package struct {
	PackageID          string        `json:"package_id"`
	FeedlotFamily      FeedlotFamily `json:"feedlot_family"`
	Status             PackageStatus `json:"status"`
	DocumentRefs       []DataReference `json:"document_refs"`
	StatementRef       *DataReference  `json:"statement_ref,omitempty"`
	ReconciliationRef  *DataReference  `json:"reconciliation_ref,omitempty"`
	TotalInvoices      int           `json:"total_invoices"`
	ExtractedInvoices  int           `json:"extracted_invoices"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// InvoiceRow is the per-package, per-invoice persisted row (spec.md §3).
type InvoiceRow struct {
	PackageID     string         `json:"package_id"`
	InvoiceNumber string         `json:"invoice_number"`
	LotNumber     string         `json:"lot_number,omitempty"`
	InvoiceDate   *time.Time     `json:"invoice_date,omitempty"`
	TotalAmount   *MoneyRef      `json:"total_amount,omitempty"`
	Status        InvoiceStatus  `json:"status"`
	InvoiceRef    DataReference  `json:"invoice_ref"`
	ValidationRef *DataReference `json:"validation_ref,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// MoneyRef is a decimal-string amount (kept as a string here, not
// pkg/money.Money, so that pkg/domain has no dependency on pkg/money and
// every consumer picks its own parse point).
type MoneyRef string

// ProgressEvent is an append-only progress log entry (spec.md §3).
type ProgressEvent struct {
	PackageID string    `json:"package_id"`
	Ordinal   int64     `json:"ordinal"`
	Step      string    `json:"step"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Progress log step names (spec.md §6).
const (
	StepSplitPDF         = "split_pdf"
	StepExtractStatement = "extract_statement"
	StepExtractInvoice   = "extract_invoice"
	StepValidate         = "validate"
	StepReconcile        = "reconcile"
	StepMapping          = "mapping"
	StepPayload          = "payload"
	StepPosting          = "posting"
)

// AuditSeverity is the severity of an AuditEvent.
type AuditSeverity string

const (
	SeverityInfo  AuditSeverity = "INFO"
	SeverityWarn  AuditSeverity = "WARN"
	SeverityError AuditSeverity = "ERROR"
)

// AuditEventKind enumerates the kinds of audit events (spec.md §3).
type AuditEventKind string

const (
	AuditKindWorkflow      AuditEventKind = "workflow"
	AuditKindExtraction    AuditEventKind = "extraction"
	AuditKindValidation    AuditEventKind = "validation"
	AuditKindReconciliation AuditEventKind = "reconciliation"
	AuditKindMapping       AuditEventKind = "mapping"
	AuditKindPosting       AuditEventKind = "posting"
	AuditKindUser          AuditEventKind = "user"
	AuditKindSystem        AuditEventKind = "system"
)

// AuditEvent is an append-only, globally unique audit record (spec.md §3).
type AuditEvent struct {
	EventID       string                 `json:"event_id"`
	Severity      AuditSeverity          `json:"severity"`
	Kind          AuditEventKind         `json:"kind"`
	PackageID     string                 `json:"package_id,omitempty"`
	InvoiceNumber string                 `json:"invoice_number,omitempty"`
	WorkflowID    string                 `json:"workflow_id,omitempty"`
	ActivityName  string                 `json:"activity_name,omitempty"`
	Details       map[string]any         `json:"details,omitempty"`
	Actor         string                 `json:"actor"`
	Timestamp     time.Time              `json:"timestamp"`
	ArtifactRefs  []DataReference        `json:"artifact_refs,omitempty"`
}

// LotReference is one statement line item referencing an invoice/lot.
type LotReference struct {
	InvoiceNumber   string  `json:"invoice_number"`
	LotNumber       string  `json:"lot_number"`
	StatementCharge string  `json:"statement_charge"`
	Description     string  `json:"description"`
}

// StatementDocument is the extracted statement (spec.md §3).
type StatementDocument struct {
	Feedlot      string         `json:"feedlot"`
	Owner        string         `json:"owner"`
	PeriodStart  *time.Time     `json:"period_start,omitempty"`
	PeriodEnd    *time.Time     `json:"period_end,omitempty"`
	LotReferences []LotReference `json:"lot_references"`
	Transactions  []map[string]any `json:"transactions,omitempty"`
	SummaryRows   []map[string]any `json:"summary_rows,omitempty"`

	// GrandTotals holds family-specific statement grand totals keyed by
	// the source field name (e.g. "grand_total_notes"); resolved via
	// FamilyProfile.StatementTotalSource.
	GrandTotals map[string]string `json:"grand_totals,omitempty"`

	// Entity-resolution signals (spec.md §4.4), present when the
	// statement header carries them; an invoice missing one of these
	// inherits it from the statement.
	OwnerNumber  string `json:"owner_number,omitempty"`
	FeedlotState string `json:"feedlot_state,omitempty"`
	RemitState   string `json:"remit_state,omitempty"`
}

// LineItem is one invoice line.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    *string `json:"quantity,omitempty"`
	Rate        *string `json:"rate,omitempty"`
	Total       *string `json:"total,omitempty"`
}

// InvoiceTotals holds the candidate total fields, in A5 precedence order.
type InvoiceTotals struct {
	TotalAmountDue     *string `json:"total_amount_due,omitempty"`
	TotalPeriodCharges *string `json:"total_period_charges,omitempty"`
}

// InvoiceDocument is the extracted invoice (spec.md §3).
type InvoiceDocument struct {
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   *time.Time `json:"invoice_date,omitempty"`
	Feedlot       string     `json:"feedlot"`
	Owner         string     `json:"owner"`
	Lot           string     `json:"lot"`
	LineItems     []LineItem `json:"line_items"`
	Totals        InvoiceTotals `json:"totals"`

	// Entity-resolution signals (spec.md §4.4); left blank when the
	// invoice page didn't carry one and the statement fills it in.
	OwnerNumber  string `json:"owner_number,omitempty"`
	FeedlotState string `json:"feedlot_state,omitempty"`
	RemitState   string `json:"remit_state,omitempty"`
}

// EntityProfile is a tenant company (spec.md §3).
type EntityProfile struct {
	EntityID          string            `json:"entity_id"`
	EntityCode        string            `json:"entity_code"`
	Name              string            `json:"name"`
	Aliases           []string          `json:"aliases"`
	DefaultDimensions map[string]string `json:"default_dimensions"`
	IsActive          bool              `json:"is_active"`
}

// RoutingKeyType enumerates the routing-key signal types (spec.md §3).
type RoutingKeyType string

const (
	KeyOwnerNumber RoutingKeyType = "OWNER_NUMBER"
	KeyRemitState  RoutingKeyType = "REMIT_STATE"
	KeyLotPrefix   RoutingKeyType = "LOT_PREFIX"
	KeyFeedlotName RoutingKeyType = "FEEDLOT_NAME"
	KeyVendorName  RoutingKeyType = "VENDOR_NAME"
)

// Confidence is HARD or SOFT routing-key confidence (spec.md §3).
type Confidence string

const (
	ConfidenceHard Confidence = "HARD"
	ConfidenceSoft Confidence = "SOFT"
)

// RoutingKey maps a signal to an entity (spec.md §3).
type RoutingKey struct {
	KeyType    RoutingKeyType `json:"key_type"`
	KeyValue   string         `json:"key_value"`
	EntityID   string         `json:"entity_id"`
	Confidence Confidence     `json:"confidence"`
	Priority   int            `json:"priority"`
}

// VendorAlias maps a normalized extracted name to a vendor (spec.md §3).
type VendorAlias struct {
	CustomerID       string `json:"customer_id"`
	EntityID         string `json:"entity_id"`
	AliasNormalized  string `json:"alias_normalized"`
	VendorID         string `json:"vendor_id"`
	VendorNumber     string `json:"vendor_number"`
	VendorName       string `json:"vendor_name"`
}

// MappingLevel is the GL mapping precedence level (spec.md §3).
type MappingLevel string

const (
	LevelVendor MappingLevel = "VENDOR"
	LevelEntity MappingLevel = "ENTITY"
	LevelGlobal MappingLevel = "GLOBAL"
)

// GLMapping maps (level, entity, vendor, category) to a GL account
// (spec.md §3).
type GLMapping struct {
	Level         MappingLevel `json:"level"`
	EntityID      string       `json:"entity_id,omitempty"`
	VendorID      string       `json:"vendor_id,omitempty"`
	Category      string       `json:"category"`
	GLAccountRef  string       `json:"gl_account_ref"`
	RulesetVersion string      `json:"ruleset_version,omitempty"`
}

// DimensionRule maps (entity, dimension_code) to a derivation rule
// (spec.md §3).
type DimensionRule struct {
	EntityID       string         `json:"entity_id,omitempty"`
	DimensionCode  string         `json:"dimension_code"`
	SourceField    string         `json:"source_field"`
	Transform      string         `json:"transform"`
	TransformParams map[string]string `json:"transform_params,omitempty"`
	DefaultValue   string         `json:"default_value,omitempty"`
	IsRequired     bool           `json:"is_required"`
	RulesetVersion string         `json:"ruleset_version,omitempty"`
}

// VendorProfile is the catalog-side shape the vendor resolver scores
// against (name + optional address fields).
type VendorProfile struct {
	VendorID     string `json:"vendor_id"`
	VendorNumber string `json:"vendor_number"`
	VendorName   string `json:"vendor_name"`
	EntityID     string `json:"entity_id"`
	State        string `json:"state,omitempty"`
	City         string `json:"city,omitempty"`
	Street       string `json:"street,omitempty"`
}
