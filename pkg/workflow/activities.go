package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rivieraros/apcore/internal/aperrors"
	"github.com/rivieraros/apcore/internal/config"
	"github.com/rivieraros/apcore/pkg/artifacts"
	"github.com/rivieraros/apcore/pkg/coding"
	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/entityresolver"
	"github.com/rivieraros/apcore/pkg/erp"
	"github.com/rivieraros/apcore/pkg/extractor"
	"github.com/rivieraros/apcore/pkg/persistence"
	"github.com/rivieraros/apcore/pkg/reconciliation"
	"github.com/rivieraros/apcore/pkg/vendorresolver"
)

// Activities bundles every collaborator a workflow's steps call through.
// Every method here is the "activity" half of the spec.md §4.7 split:
// the workflow functions in package_workflow.go stay
// pure orchestration (ordering, branching on already-computed results);
// every read, write, or external call lives here.
type Activities struct {
	Store     *persistence.Store
	Catalog   *artifacts.Catalog
	Extractor *extractor.Client
	ERP       erp.Client

	Profiles map[domain.FeedlotFamily]config.FamilyProfile

	CodingTC coding.TransformContext

	VendorExists  entityresolver.VendorExistsFunc
	ExactAlias    vendorresolver.ExactAliasLookupFunc
	GLLookup      coding.GLLookupFunc

	// VendorCodeOf overrides how InvoiceWorkflow derives the ERP vendor
	// code from a matched VendorProfile. Nil falls back to
	// VendorProfile.VendorNumber; set this when the ERP's vendor code
	// isn't the catalog's vendor number (e.g. an adapter-specific code).
	VendorCodeOf func(domain.VendorProfile) string
}

// PersistPackageStarted upserts the package row in STARTED status. A row
// that already exists is left untouched beyond the touch of updated_at,
// satisfying §4.7.4's "no-op if row already STARTED".
func (a *Activities) PersistPackageStarted(ctx context.Context, packageID string, family domain.FeedlotFamily, docRefs []domain.DataReference) error {
	now := time.Now().UTC()
	existing, err := a.Store.GetPackage(ctx, packageID)
	if err == nil {
		existing.UpdatedAt = now
		return a.Store.UpsertPackage(ctx, existing)
	}
	p := domain.Package{
		PackageID:     packageID,
		FeedlotFamily: family,
		Status:        domain.PackageStarted,
		DocumentRefs:  docRefs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return a.Store.UpsertPackage(ctx, p)
}

// SplitPDF runs the split_pdf activity and stamps TotalInvoices on the
// package row (spec.md §4.7.2 step 2).
func (a *Activities) SplitPDF(ctx context.Context, packageID, pdfPath string, family domain.FeedlotFamily) (SplitResult, error) {
	profile, ok := a.Profiles[family]
	if !ok {
		return SplitResult{}, &aperrors.ValidationError{Field: "feedlot_family", Reason: fmt.Sprintf("unknown family %q", family)}
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return SplitResult{}, &aperrors.NotFound{Kind: "pdf", ID: pdfPath}
	}

	result, err := SplitPDF(pdfPath, profile.StatementKeyword, profile.InvoiceKeyword)
	if err != nil {
		return SplitResult{}, &aperrors.TransientIoError{Op: "split_pdf", Err: err}
	}

	p, err := a.Store.GetPackage(ctx, packageID)
	if err != nil {
		return SplitResult{}, err
	}
	p.TotalInvoices = len(result.InvoicePages)
	p.UpdatedAt = time.Now().UTC()
	if err := a.Store.UpsertPackage(ctx, p); err != nil {
		return SplitResult{}, err
	}
	return result, nil
}

// StatementExtraction is extract_statement's output (spec.md §4.7.2 step 3).
type StatementExtraction struct {
	StatementRef domain.DataReference     `json:"statement_ref"`
	Document     domain.StatementDocument `json:"document"`
}

// ExtractStatement extracts pages into a StatementDocument and persists
// it as an artifact. It always calls the extractor: an artifact stored by
// an earlier run is not looked up or reused, and it writes no progress
// entry (the workflow logs one via PersistProgressEvent).
func (a *Activities) ExtractStatement(ctx context.Context, packageID string, family domain.FeedlotFamily, pdfPath string, pages []int, prompt string) (StatementExtraction, error) {
	doc, err := a.Extractor.ExtractStatement(ctx, pdfPath, pages, prompt)
	if err != nil {
		return StatementExtraction{}, err
	}
	ref, err := a.Catalog.PutJSON(ctx, doc)
	if err != nil {
		return StatementExtraction{}, &aperrors.TransientIoError{Op: "extract_statement:store", Err: err}
	}
	return StatementExtraction{StatementRef: ref, Document: doc}, nil
}

// InvoiceExtraction is extract_invoice's output (spec.md §4.7.2 step 4).
type InvoiceExtraction struct {
	InvoiceRef domain.DataReference    `json:"invoice_ref"`
	Document   domain.InvoiceDocument  `json:"document"`
}

// ExtractInvoice extracts one invoice page and persists it as an
// artifact.
func (a *Activities) ExtractInvoice(ctx context.Context, packageID string, pdfPath string, page int, prompt string, invoiceIndex, totalInvoices int) (InvoiceExtraction, error) {
	doc, err := a.Extractor.ExtractInvoice(ctx, pdfPath, page, prompt)
	if err != nil {
		return InvoiceExtraction{}, err
	}
	ref, err := a.Catalog.PutJSON(ctx, doc)
	if err != nil {
		return InvoiceExtraction{}, &aperrors.TransientIoError{Op: "extract_invoice:store", Err: err}
	}
	return InvoiceExtraction{InvoiceRef: ref, Document: doc}, nil
}

// PersistInvoice upserts the invoice row (package_id, invoice_number),
// bumping Package.ExtractedInvoices.
func (a *Activities) PersistInvoice(ctx context.Context, packageID string, doc domain.InvoiceDocument, ref domain.DataReference) error {
	invoiceNumber := doc.InvoiceNumber
	if invoiceNumber == "" {
		return &aperrors.ValidationError{Field: "invoice_number", Reason: "extracted invoice has no invoice_number"}
	}

	var total *domain.MoneyRef
	if m, err := reconciliation.ResolveInvoiceTotal(doc); err == nil {
		t := domain.MoneyRef(m.String())
		total = &t
	}

	now := time.Now().UTC()
	row := domain.InvoiceRow{
		PackageID:     packageID,
		InvoiceNumber: invoiceNumber,
		LotNumber:     doc.Lot,
		InvoiceDate:   doc.InvoiceDate,
		TotalAmount:   total,
		Status:        domain.InvoiceExtracted,
		InvoiceRef:    ref,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.Store.UpsertInvoice(ctx, row); err != nil {
		return err
	}

	p, err := a.Store.GetPackage(ctx, packageID)
	if err != nil {
		return err
	}
	p.ExtractedInvoices++
	p.UpdatedAt = now
	return a.Store.UpsertPackage(ctx, p)
}

// ValidateInvoice runs the B1/B2 checks against a single invoice (the
// rest of Reconcile's checks are package-level and run in
// ReconcilePackage) and persists the validation report as an artifact.
func (a *Activities) ValidateInvoice(ctx context.Context, packageID string, doc domain.InvoiceDocument, family domain.FeedlotFamily) (domain.InvoiceStatus, domain.DataReference, error) {
	report := reconciliation.Reconcile(domain.StatementDocument{}, []domain.InvoiceDocument{doc}, family, "")
	status := domain.InvoiceValidatedPass
	for _, f := range report.Findings {
		if f.Check == reconciliation.CheckB1RequiredFields || f.Check == reconciliation.CheckB2LineSum {
			if f.Severity == reconciliation.SeverityBlock {
				status = domain.InvoiceValidatedFail
			}
		}
	}
	ref, err := a.Catalog.PutJSON(ctx, report)
	if err != nil {
		return "", domain.DataReference{}, &aperrors.TransientIoError{Op: "validate_invoice:store", Err: err}
	}
	return status, ref, nil
}

// UpdateInvoiceStatus sets an invoice row's status and validation_ref.
func (a *Activities) UpdateInvoiceStatus(ctx context.Context, packageID, invoiceNumber string, status domain.InvoiceStatus, validationRef domain.DataReference) error {
	row, err := a.Store.GetInvoice(ctx, packageID, invoiceNumber)
	if err != nil {
		return err
	}
	row.Status = status
	row.ValidationRef = &validationRef
	row.UpdatedAt = time.Now().UTC()
	return a.Store.UpsertInvoice(ctx, row)
}

// ReconcilePackage runs C3 over the statement and every extracted
// invoice document for packageID and persists the report as an artifact.
func (a *Activities) ReconcilePackage(ctx context.Context, packageID string, statement domain.StatementDocument, invoices []domain.InvoiceDocument, family domain.FeedlotFamily) (reconciliation.Report, domain.DataReference, error) {
	profile := a.Profiles[family]
	report := reconciliation.Reconcile(statement, invoices, family, profile.StatementTotalSource)
	ref, err := a.Catalog.PutJSON(ctx, report)
	if err != nil {
		return report, domain.DataReference{}, &aperrors.TransientIoError{Op: "reconcile_package:store", Err: err}
	}
	return report, ref, nil
}

// UpdatePackageStatus transitions the package row's status and attaches
// the statement/reconciliation-report refs produced along the way, if any.
func (a *Activities) UpdatePackageStatus(ctx context.Context, packageID string, status domain.PackageStatus, statementRef, reconciliationRef *domain.DataReference) error {
	now := time.Now().UTC()
	if err := a.Store.UpdatePackageStatus(ctx, packageID, status, now); err != nil {
		return err
	}
	if statementRef == nil && reconciliationRef == nil {
		return nil
	}
	p, err := a.Store.GetPackage(ctx, packageID)
	if err != nil {
		return err
	}
	if statementRef != nil {
		p.StatementRef = statementRef
	}
	if reconciliationRef != nil {
		p.ReconciliationRef = reconciliationRef
	}
	p.UpdatedAt = now
	return a.Store.UpsertPackage(ctx, p)
}

// ReconciliationStatusToPackageStatus maps a reconciliation.ReportStatus
// to its package-lifecycle counterpart (spec.md §4.7.2 step 6).
func ReconciliationStatusToPackageStatus(s reconciliation.ReportStatus) domain.PackageStatus {
	switch s {
	case reconciliation.StatusPass:
		return domain.PackageReconciledPass
	case reconciliation.StatusWarn:
		return domain.PackageReconciledWarn
	default:
		return domain.PackageReconciledFail
	}
}

// ResolveEntity runs C4 against the catalog's active entities and
// routing keys.
func (a *Activities) ResolveEntity(ctx context.Context, invoice domain.InvoiceDocument, statement *domain.StatementDocument, weights config.EntityWeights) (entityresolver.Resolution, error) {
	entities, err := a.Store.ListActiveEntityProfiles(ctx)
	if err != nil {
		return entityresolver.Resolution{}, err
	}
	var keys []domain.RoutingKey
	for _, kt := range []domain.RoutingKeyType{domain.KeyOwnerNumber, domain.KeyRemitState, domain.KeyLotPrefix, domain.KeyFeedlotName, domain.KeyVendorName} {
		ks, err := a.Store.ListRoutingKeysByType(ctx, kt)
		if err != nil {
			return entityresolver.Resolution{}, err
		}
		keys = append(keys, ks...)
	}
	signals := entityresolver.ExtractSignals(invoice, statement)
	return entityresolver.Resolve(signals, entities, keys, a.VendorExists, weights), nil
}

// VendorResolution bundles C5's Resolution with the matched
// VendorProfile (when auto-matched), since Resolution only carries a
// vendor_id and callers that build an ERP payload need the vendor
// number too.
type VendorResolution struct {
	Resolution vendorresolver.Resolution `json:"resolution"`
	Matched    domain.VendorProfile      `json:"matched,omitempty"`
}

// ResolveVendor runs C5 against entityID's vendor catalog.
func (a *Activities) ResolveVendor(ctx context.Context, entityID, extractedName string, address vendorresolver.Address, weights config.VendorWeights) (VendorResolution, error) {
	vendors, err := a.Store.ListVendorProfilesByEntity(ctx, entityID)
	if err != nil {
		return VendorResolution{}, err
	}
	customerID := entityID // no separate BC customer concept at this layer; entity doubles as lookup scope
	lookup := func(customerID, entityID, aliasNormalized string) (domain.VendorAlias, bool) {
		alias, found, err := a.Store.FindVendorAlias(ctx, entityID, aliasNormalized)
		if err != nil {
			return domain.VendorAlias{}, false
		}
		return alias, found
	}
	if a.ExactAlias != nil {
		lookup = a.ExactAlias
	}
	resolution := vendorresolver.Resolve(customerID, entityID, extractedName, address, vendors, lookup, weights)

	var matched domain.VendorProfile
	if resolution.AutoMatched && resolution.Vendor != nil {
		for _, v := range vendors {
			if v.VendorID == resolution.Vendor.VendorID {
				matched = v
				break
			}
		}
	}
	return VendorResolution{Resolution: resolution, Matched: matched}, nil
}

// ApplyMappingOverlay runs C6 over one invoice's line items.
func (a *Activities) ApplyMappingOverlay(ctx context.Context, invoice domain.InvoiceDocument, entityID, vendorID string, source coding.SourceData) (coding.InvoiceCoding, error) {
	rules, err := a.Store.ListDimensionRulesByEntity(ctx, entityID)
	if err != nil {
		return coding.InvoiceCoding{}, err
	}
	glLookup := a.GLLookup
	if glLookup == nil {
		glLookup = func(level domain.MappingLevel, eID, vID, category string) (domain.GLMapping, bool, error) {
			return a.Store.FindGLMapping(ctx, level, eID, vID, category)
		}
	}
	invCoding := coding.CodeInvoice(invoice, entityID, vendorID, rules, glLookup, source, a.CodingTC)
	return invCoding, nil
}

// BuildERPPayload builds the purchase-invoice envelope for invoice, using
// a deterministic idempotency key derived from (package_id,
// invoice_number) so replays of this activity always produce the same
// key (spec.md §4.7.6).
func (a *Activities) BuildERPPayload(ctx context.Context, packageID string, invoice domain.InvoiceDocument, invCoding coding.InvoiceCoding, vendorCode string) (erp.InvoicePayload, error) {
	idempotencyKey := uuid.NewSHA1(uuid.NameSpaceOID, []byte(packageID+"/"+invoice.InvoiceNumber)).String()
	payload, err := erp.BuildInvoicePayload(invoice, invCoding, vendorCode, idempotencyKey)
	if err != nil {
		return erp.InvoicePayload{}, &aperrors.ValidationError{Field: "invoice", Reason: err.Error()}
	}
	return payload, nil
}

// PersistProgressEvent appends one package progress-log entry. It is a
// first-class, independently retriable activity rather than a side
// effect folded into the activity that produced the message, so a crash
// between "step succeeded" and "progress logged" replays just this step
// instead of re-running the (possibly expensive) step that produced it.
func (a *Activities) PersistProgressEvent(ctx context.Context, packageID, step, message string) error {
	_, err := a.Store.AppendProgressEvent(ctx, packageID, step, message)
	return err
}

// PersistAuditEvent appends one audit event tagged with a workflow/stage
// context, satisfying §4.7.3's "each stage... emits an audit event".
func (a *Activities) PersistAuditEvent(ctx context.Context, severity domain.AuditSeverity, kind domain.AuditEventKind, packageID, invoiceNumber, workflowID, activityName, message string) error {
	_, err := a.Store.AppendAuditEvent(ctx, domain.AuditEvent{
		EventID:       uuid.NewString(),
		Severity:      severity,
		Kind:          kind,
		PackageID:     packageID,
		InvoiceNumber: invoiceNumber,
		WorkflowID:    workflowID,
		ActivityName:  activityName,
		Details:       map[string]any{"message": message},
		Actor:         "workflow",
		Timestamp:     time.Now().UTC(),
	})
	return err
}
