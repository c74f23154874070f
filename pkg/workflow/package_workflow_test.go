package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/erp"
	"github.com/rivieraros/apcore/pkg/extractor"
)

type fakeERPClient struct{}

func (fakeERPClient) ListEntities(ctx context.Context, opts erp.ListOptions) ([]erp.EntityRef, error) {
	return nil, nil
}
func (fakeERPClient) ListVendors(ctx context.Context, entityID string, opts erp.ListOptions) ([]erp.VendorRef, error) {
	return nil, nil
}
func (fakeERPClient) ListGLAccounts(ctx context.Context, entityID string, opts erp.ListOptions) ([]erp.GLAccountRef, error) {
	return nil, nil
}
func (fakeERPClient) ListDimensions(ctx context.Context, entityID string, opts erp.ListOptions) ([]erp.DimensionRef, error) {
	return nil, nil
}
func (fakeERPClient) ListDimensionValues(ctx context.Context, entityID, dimensionCode string, opts erp.ListOptions) ([]erp.DimensionValueRef, error) {
	return nil, nil
}
func (fakeERPClient) CreateDraftPurchaseInvoice(ctx context.Context, entityID string, payload erp.InvoicePayload) (erp.CreatedInvoiceRef, error) {
	return erp.CreatedInvoiceRef{}, nil
}
func (fakeERPClient) Post(ctx context.Context, entityID, invoiceID string) (erp.PostedInvoiceRef, error) {
	return erp.PostedInvoiceRef{}, nil
}
func (fakeERPClient) GetStatus(ctx context.Context, entityID, invoiceID string) (erp.InvoiceStatus, error) {
	return "", nil
}

func validStatementDoc() domain.StatementDocument {
	return domain.StatementDocument{
		Feedlot: "BOVINA FEEDLOT",
		Owner:   "ACME RANCH",
		LotReferences: []domain.LotReference{
			{InvoiceNumber: "INV-1", LotNumber: "L-1", StatementCharge: "100.00", Description: "Feed"},
		},
	}
}

func validInvoiceDoc(number string) domain.InvoiceDocument {
	total := "100.00"
	return domain.InvoiceDocument{
		InvoiceNumber: number,
		Feedlot:       "BOVINA FEEDLOT",
		Owner:         "ACME RANCH",
		Lot:           "L-1",
		LineItems:     []domain.LineItem{{Description: "Feed charge", Total: &total}},
		Totals:        domain.InvoiceTotals{TotalAmountDue: &total},
	}
}

// newWorkflowFixture builds an Activities wired to fakes that always
// return the same fixed statement/invoice documents regardless of the
// page argument, so the test doesn't need a real PDF — only a file that
// exists, since SplitPDF requires pdfPath to stat successfully.
func newWorkflowFixture(t *testing.T) (*Activities, string) {
	t.Helper()
	a := newTestActivities(t)

	client, err := extractor.NewClient(
		func(ctx context.Context, pdfPath string, pages []int, prompt string) (domain.StatementDocument, error) {
			return validStatementDoc(), nil
		},
		func(ctx context.Context, pdfPath string, page int, prompt string) (domain.InvoiceDocument, error) {
			return validInvoiceDoc("INV-1"), nil
		},
		0, 0,
	)
	require.NoError(t, err)
	a.Extractor = client
	a.ERP = fakeERPClient{}

	pdfPath := filepath.Join(t.TempDir(), "package.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 fixture"), 0o644))
	return a, pdfPath
}

// TestAPPackageWorkflow_HappyPath does not call APPackageWorkflow itself:
// SplitPDF's pdfcpu-backed page categorization is not meaningful against
// a one-line fixture file, so the test calls the package workflow's
// activities directly, in the workflow's order, after the split step.
func TestAPPackageWorkflow_HappyPath(t *testing.T) {
	a, pdfPath := newWorkflowFixture(t)
	_ = pdfPath

	store := a.Store
	r := NewRunner(store, "wf-package-1", nil)

	// Drive persist_package_started + the invoice loop directly through
	// Activities, bypassing SplitPDF's PDF parsing (exercised separately
	// in split_test.go) so this test focuses on the workflow's
	// activity sequencing, not PDF page text recovery or memoization.
	input := PackageInput{
		PackageID:     "pkg-e2e-1",
		FeedlotFamily: domain.FamilyBovina,
		PDFPath:       pdfPath,
	}

	require.NoError(t, a.PersistPackageStarted(context.Background(), input.PackageID, input.FeedlotFamily, nil))

	extraction, err := a.ExtractInvoice(context.Background(), input.PackageID, input.PDFPath, 1, "feed invoice", 1, 1)
	require.NoError(t, err)
	require.NoError(t, a.PersistInvoice(context.Background(), input.PackageID, extraction.Document, extraction.InvoiceRef))
	status, ref, err := a.ValidateInvoice(context.Background(), input.PackageID, extraction.Document, input.FeedlotFamily)
	require.NoError(t, err)
	require.NoError(t, a.UpdateInvoiceStatus(context.Background(), input.PackageID, extraction.Document.InvoiceNumber, status, ref))

	report, _, err := a.ReconcilePackage(context.Background(), input.PackageID, validStatementDoc(), []domain.InvoiceDocument{extraction.Document}, input.FeedlotFamily)
	require.NoError(t, err)
	finalStatus := ReconciliationStatusToPackageStatus(report.Status)
	require.NoError(t, a.UpdatePackageStatus(context.Background(), input.PackageID, finalStatus, nil, nil))

	p, err := store.GetPackage(context.Background(), input.PackageID)
	require.NoError(t, err)
	require.Equal(t, finalStatus, p.Status)

	_ = r // runner exercised directly in runner_test.go / invoice workflow test
}

func TestInvoiceWorkflow_HappyPath_GeneratesPayload(t *testing.T) {
	a, _ := newWorkflowFixture(t)
	ctx := context.Background()

	require.NoError(t, a.Store.UpsertEntityProfile(ctx, domain.EntityProfile{
		EntityID: "entity-1", EntityCode: "E1", Name: "ACME RANCH", IsActive: true,
	}))

	r := NewRunner(a.Store, "wf-invoice-1", nil)
	result, err := InvoiceWorkflow(ctx, r, a, InvoiceWorkflowInput{
		WorkflowID:    "wf-invoice-1",
		PackageID:     "pkg-e2e-2",
		EntityID:      "entity-1",
		Invoice:       validInvoiceDoc("INV-2"),
		FeedlotFamily: domain.FamilyBovina,
	})
	require.NoError(t, err)
	require.Equal(t, StagePayloadGenerated, result.Stage)

	events, err := a.Store.ListAuditEventsByPackage(ctx, "pkg-e2e-2")
	require.NoError(t, err)
	require.NotEmpty(t, events)
}

func TestInvoiceWorkflow_ResumesFromMemoizedStages(t *testing.T) {
	a, _ := newWorkflowFixture(t)
	ctx := context.Background()
	require.NoError(t, a.Store.UpsertEntityProfile(ctx, domain.EntityProfile{
		EntityID: "entity-2", EntityCode: "E2", Name: "ACME RANCH", IsActive: true,
	}))

	input := InvoiceWorkflowInput{
		WorkflowID:    "wf-invoice-2",
		PackageID:     "pkg-e2e-3",
		EntityID:      "entity-2",
		Invoice:       validInvoiceDoc("INV-3"),
		FeedlotFamily: domain.FamilyBovina,
	}

	r1 := NewRunner(a.Store, input.WorkflowID, nil)
	first, err := InvoiceWorkflow(ctx, r1, a, input)
	require.NoError(t, err)

	// Simulate a worker restart: a fresh Runner bound to the same
	// workflow id re-enters and must reach the same terminal state by
	// replaying memoized activity results, not re-running them.
	r2 := NewRunner(a.Store, input.WorkflowID, nil)
	second, err := InvoiceWorkflow(ctx, r2, a, input)
	require.NoError(t, err)
	require.Equal(t, first.Stage, second.Stage)
}
