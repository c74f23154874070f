package workflow

import (
	"context"
	"fmt"

	"github.com/rivieraros/apcore/internal/retryplan"
	"github.com/rivieraros/apcore/pkg/coding"
	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/entityresolver"
	"github.com/rivieraros/apcore/pkg/reconciliation"
	"github.com/rivieraros/apcore/pkg/vendorresolver"
)

// PackageInput is APPackageWorkflow's input (spec.md §4.7.2).
type PackageInput struct {
	PackageID     string
	FeedlotFamily domain.FeedlotFamily
	PDFPath       string
	DocumentRefs  []domain.DataReference
}

// PackageResult is APPackageWorkflow's return value: counts and the
// reconciliation triplet, never document bodies (spec.md §4.7.2, §4.7.6).
type PackageResult struct {
	PackageID           string                    `json:"package_id"`
	FinalStatus          domain.PackageStatus      `json:"final_status"`
	TotalInvoices        int                       `json:"total_invoices"`
	ExtractedInvoices    int                       `json:"extracted_invoices"`
	StatementExtracted    bool                      `json:"statement_extracted"`
	ReconciliationStatus string                    `json:"reconciliation_status,omitempty"`
	ReconciliationFindings int                      `json:"reconciliation_findings,omitempty"`
}

// APPackageWorkflow drives one package from STARTED through a terminal
// status (spec.md §4.7.2). Every step is an activity call through r, so a
// crash-and-restart with the same input re-enters at the first
// not-yet-SUCCEEDED step instead of repeating completed side effects.
func APPackageWorkflow(ctx context.Context, r *Runner, a *Activities, input PackageInput) (result PackageResult, err error) {
	result = PackageResult{PackageID: input.PackageID}

	if err := r.Start(ctx, "APPackageWorkflow", input.PackageID); err != nil {
		return result, err
	}
	defer func() { _ = r.Finish(ctx, err) }()

	_, err = RunTyped(ctx, r, "persist_package_started", retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.PersistPackageStarted(ctx, input.PackageID, input.FeedlotFamily, input.DocumentRefs)
	})
	if err != nil {
		return result, fmt.Errorf("workflow: persist_package_started: %w", err)
	}

	split, err := RunTyped(ctx, r, "split_pdf", retryplan.SplitPDFPolicy, func(ctx context.Context) (SplitResult, error) {
		return a.SplitPDF(ctx, input.PackageID, input.PDFPath, input.FeedlotFamily)
	})
	if err != nil {
		return result, fmt.Errorf("workflow: split_pdf: %w", err)
	}
	result.TotalInvoices = len(split.InvoicePages)
	if _, err := RunTyped(ctx, r, "persist_progress_event:split_pdf", retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.PersistProgressEvent(ctx, input.PackageID, domain.StepSplitPDF,
			fmt.Sprintf("split into %d statement page(s), %d invoice page(s)", len(split.StatementPages), len(split.InvoicePages)))
	}); err != nil {
		return result, fmt.Errorf("workflow: persist_progress_event:split_pdf: %w", err)
	}

	var statementDoc domain.StatementDocument
	var statementRef *domain.DataReference
	if len(split.StatementPages) > 0 {
		profile := a.Profiles[input.FeedlotFamily]
		stmt, err := RunTyped(ctx, r, "extract_statement", retryplan.ExtractPolicy, func(ctx context.Context) (StatementExtraction, error) {
			return a.ExtractStatement(ctx, input.PackageID, input.FeedlotFamily, input.PDFPath, split.StatementPages, profile.StatementKeyword)
		})
		if err != nil {
			return result, fmt.Errorf("workflow: extract_statement: %w", err)
		}
		statementDoc = stmt.Document
		ref := stmt.StatementRef
		statementRef = &ref
		result.StatementExtracted = true
		if _, err := RunTyped(ctx, r, "persist_progress_event:extract_statement", retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.PersistProgressEvent(ctx, input.PackageID, domain.StepExtractStatement,
				fmt.Sprintf("statement extracted for %s/%s", statementDoc.Feedlot, statementDoc.Owner))
		}); err != nil {
			return result, fmt.Errorf("workflow: persist_progress_event:extract_statement: %w", err)
		}
	}

	profile := a.Profiles[input.FeedlotFamily]
	invoiceDocs := make([]domain.InvoiceDocument, 0, len(split.InvoicePages))
	for i, page := range split.InvoicePages {
		stepName := func(step string) string { return fmt.Sprintf("%s:%d", step, i) }

		extraction, err := RunTyped(ctx, r, stepName("extract_invoice"), retryplan.ExtractPolicy, func(ctx context.Context) (InvoiceExtraction, error) {
			return a.ExtractInvoice(ctx, input.PackageID, input.PDFPath, page, profile.InvoiceKeyword, i+1, len(split.InvoicePages))
		})
		if err != nil {
			return result, fmt.Errorf("workflow: extract_invoice[%d]: %w", i, err)
		}
		if _, err := RunTyped(ctx, r, stepName("persist_progress_event:extract_invoice"), retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.PersistProgressEvent(ctx, input.PackageID, domain.StepExtractInvoice,
				fmt.Sprintf("invoice %d/%d extracted (page %d)", i+1, len(split.InvoicePages), page))
		}); err != nil {
			return result, fmt.Errorf("workflow: persist_progress_event:extract_invoice[%d]: %w", i, err)
		}

		if _, err := RunTyped(ctx, r, stepName("persist_invoice"), retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.PersistInvoice(ctx, input.PackageID, extraction.Document, extraction.InvoiceRef)
		}); err != nil {
			return result, fmt.Errorf("workflow: persist_invoice[%d]: %w", i, err)
		}
		result.ExtractedInvoices++

		type validation struct {
			Status domain.InvoiceStatus    `json:"status"`
			Ref    domain.DataReference    `json:"ref"`
		}
		v, err := RunTyped(ctx, r, stepName("validate_invoice"), retryplan.ValidatePolicy, func(ctx context.Context) (validation, error) {
			status, ref, err := a.ValidateInvoice(ctx, input.PackageID, extraction.Document, input.FeedlotFamily)
			return validation{Status: status, Ref: ref}, err
		})
		if err != nil {
			return result, fmt.Errorf("workflow: validate_invoice[%d]: %w", i, err)
		}
		if _, err := RunTyped(ctx, r, stepName("persist_progress_event:validate_invoice"), retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.PersistProgressEvent(ctx, input.PackageID, domain.StepValidate,
				fmt.Sprintf("invoice %s validated: %s", extraction.Document.InvoiceNumber, v.Status))
		}); err != nil {
			return result, fmt.Errorf("workflow: persist_progress_event:validate_invoice[%d]: %w", i, err)
		}

		if _, err := RunTyped(ctx, r, stepName("update_invoice_status"), retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.UpdateInvoiceStatus(ctx, input.PackageID, extraction.Document.InvoiceNumber, v.Status, v.Ref)
		}); err != nil {
			return result, fmt.Errorf("workflow: update_invoice_status[%d]: %w", i, err)
		}

		invoiceDocs = append(invoiceDocs, extraction.Document)
	}

	finalStatus := domain.PackageExtracted
	var reconciliationRef *domain.DataReference
	if result.StatementExtracted && len(invoiceDocs) > 0 {
		type reconcileOutcome struct {
			Report reconciliation.Report `json:"report"`
			Ref    domain.DataReference  `json:"ref"`
		}
		rec, err := RunTyped(ctx, r, "reconcile_package", retryplan.ReconcilePolicy, func(ctx context.Context) (reconcileOutcome, error) {
			report, ref, err := a.ReconcilePackage(ctx, input.PackageID, statementDoc, invoiceDocs, input.FeedlotFamily)
			return reconcileOutcome{Report: report, Ref: ref}, err
		})
		if err != nil {
			return result, fmt.Errorf("workflow: reconcile_package: %w", err)
		}
		report := rec.Report
		reconciliationRef = &rec.Ref
		result.ReconciliationStatus = string(report.Status)
		result.ReconciliationFindings = len(report.Findings)
		finalStatus = ReconciliationStatusToPackageStatus(report.Status)
		if _, err := RunTyped(ctx, r, "persist_progress_event:reconcile_package", retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.PersistProgressEvent(ctx, input.PackageID, domain.StepReconcile,
				fmt.Sprintf("reconciliation: %s (%d findings)", report.Status, len(report.Findings)))
		}); err != nil {
			return result, fmt.Errorf("workflow: persist_progress_event:reconcile_package: %w", err)
		}
	}
	result.FinalStatus = finalStatus

	if _, err := RunTyped(ctx, r, "update_package_status", retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.UpdatePackageStatus(ctx, input.PackageID, finalStatus, statementRef, reconciliationRef)
	}); err != nil {
		return result, fmt.Errorf("workflow: update_package_status: %w", err)
	}

	return result, nil
}

// InvoiceWorkflowInput is InvoiceWorkflow's input (spec.md §4.7.3).
type InvoiceWorkflowInput struct {
	WorkflowID    string
	PackageID     string
	EntityID      string
	Invoice       domain.InvoiceDocument
	Statement     *domain.StatementDocument
	FeedlotFamily domain.FeedlotFamily
}

// InvoiceStage names one stage of the InvoiceWorkflow state machine.
type InvoiceStage string

const (
	StageExtract            InvoiceStage = "EXTRACT"
	StageValidate           InvoiceStage = "VALIDATE"
	StageReconcileLink      InvoiceStage = "RECONCILE_LINK"
	StageResolveEntity      InvoiceStage = "RESOLVE_ENTITY"
	StageResolveVendor      InvoiceStage = "RESOLVE_VENDOR"
	StageApplyMappingOverlay InvoiceStage = "APPLY_MAPPING_OVERLAY"
	StageBuildERPPayload    InvoiceStage = "BUILD_ERP_PAYLOAD"
	StagePayloadGenerated   InvoiceStage = "PAYLOAD_GENERATED"
	StageFailed             InvoiceStage = "FAILED"
)

// InvoiceWorkflowResult is InvoiceWorkflow's terminal state.
type InvoiceWorkflowResult struct {
	Stage             InvoiceStage              `json:"stage"`
	EntityResolution  entityresolver.Resolution `json:"entity_resolution,omitempty"`
	VendorResolution  VendorResolution          `json:"vendor_resolution,omitempty"`
	Coding            coding.InvoiceCoding      `json:"coding,omitempty"`
	FailureReason     string                    `json:"failure_reason,omitempty"`
}

// InvoiceWorkflow drives one invoice through the resolve/code/payload
// pipeline (spec.md §4.7.3). Unlike APPackageWorkflow, extraction and
// initial validation are assumed already done (they run as part of
// APPackageWorkflow); this workflow starts from RECONCILE_LINK-adjacent
// work: entity/vendor resolution, mapping overlay, payload build.
func InvoiceWorkflow(ctx context.Context, r *Runner, a *Activities, input InvoiceWorkflowInput) (result InvoiceWorkflowResult, err error) {
	audit := func(ctx context.Context, stage InvoiceStage, severity domain.AuditSeverity, message string) error {
		return a.PersistAuditEvent(ctx, severity, domain.AuditKindWorkflow, input.PackageID, input.Invoice.InvoiceNumber, input.WorkflowID, string(stage), message)
	}
	fail := func(stage InvoiceStage, err error) (InvoiceWorkflowResult, error) {
		_ = audit(ctx, stage, domain.SeverityError, err.Error())
		return InvoiceWorkflowResult{Stage: StageFailed, FailureReason: err.Error()}, err
	}

	if err := r.Start(ctx, "InvoiceWorkflow", input.PackageID); err != nil {
		return result, err
	}
	defer func() { _ = r.Finish(ctx, err) }()

	entityRes, err := RunTyped(ctx, r, "resolve_entity:"+input.Invoice.InvoiceNumber, retryplan.ResolvePolicy, func(ctx context.Context) (entityresolver.Resolution, error) {
		return a.ResolveEntity(ctx, input.Invoice, input.Statement, a.Profiles[input.FeedlotFamily].EntityWeights)
	})
	if err != nil {
		return fail(StageResolveEntity, err)
	}
	if err := audit(ctx, StageResolveEntity, domain.SeverityInfo, fmt.Sprintf("entity resolution auto_assigned=%v candidates=%d", entityRes.AutoAssigned, len(entityRes.Candidates))); err != nil {
		return fail(StageResolveEntity, err)
	}

	entityID := input.EntityID
	if entityRes.AutoAssigned && entityRes.Entity != nil {
		entityID = entityRes.Entity.EntityID
	}

	vendorRes, err := RunTyped(ctx, r, "resolve_vendor:"+input.Invoice.InvoiceNumber, retryplan.ResolvePolicy, func(ctx context.Context) (VendorResolution, error) {
		return a.ResolveVendor(ctx, entityID, input.Invoice.Owner, vendorresolver.Address{}, a.Profiles[input.FeedlotFamily].VendorWeights)
	})
	if err != nil {
		return fail(StageResolveVendor, err)
	}
	if err := audit(ctx, StageResolveVendor, domain.SeverityInfo, fmt.Sprintf("vendor resolution auto_matched=%v candidates=%d", vendorRes.Resolution.AutoMatched, len(vendorRes.Resolution.Candidates))); err != nil {
		return fail(StageResolveVendor, err)
	}

	vendorID := ""
	vendorCode := ""
	if vendorRes.Resolution.AutoMatched {
		vendorID = vendorRes.Matched.VendorID
		if a.VendorCodeOf != nil {
			vendorCode = a.VendorCodeOf(vendorRes.Matched)
		} else {
			vendorCode = vendorRes.Matched.VendorNumber
		}
	}

	invCoding, err := RunTyped(ctx, r, "apply_mapping_overlay:"+input.Invoice.InvoiceNumber, retryplan.MappingPolicy, func(ctx context.Context) (coding.InvoiceCoding, error) {
		return a.ApplyMappingOverlay(ctx, input.Invoice, entityID, vendorID, coding.SourceData{})
	})
	if err != nil {
		return fail(StageApplyMappingOverlay, err)
	}
	if err := audit(ctx, StageApplyMappingOverlay, domain.SeverityInfo, fmt.Sprintf("mapping complete=%v missing_dimensions=%d", invCoding.Complete, len(invCoding.MissingDimensions))); err != nil {
		return fail(StageApplyMappingOverlay, err)
	}

	_, err = RunTyped(ctx, r, "build_bc_payload:"+input.Invoice.InvoiceNumber, retryplan.MappingPolicy, func(ctx context.Context) (struct{}, error) {
		_, err := a.BuildERPPayload(ctx, input.PackageID, input.Invoice, invCoding, vendorCode)
		return struct{}{}, err
	})
	if err != nil {
		return fail(StageBuildERPPayload, err)
	}
	if _, err := RunTyped(ctx, r, "persist_progress_event:build_bc_payload:"+input.Invoice.InvoiceNumber, retryplan.DBWritePolicy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.PersistProgressEvent(ctx, input.PackageID, domain.StepPayload,
			fmt.Sprintf("ERP payload built for invoice %s", input.Invoice.InvoiceNumber))
	}); err != nil {
		return fail(StageBuildERPPayload, err)
	}
	if err := audit(ctx, StagePayloadGenerated, domain.SeverityInfo, "payload generated"); err != nil {
		return fail(StagePayloadGenerated, err)
	}

	return InvoiceWorkflowResult{
		Stage:            StagePayloadGenerated,
		EntityResolution: entityRes,
		VendorResolution: vendorRes,
		Coding:           invCoding,
	}, nil
}
