package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rivieraros/apcore/internal/config"
	"github.com/rivieraros/apcore/pkg/artifacts"
	"github.com/rivieraros/apcore/pkg/coding"
	"github.com/rivieraros/apcore/pkg/domain"
)

func newTestActivities(t *testing.T) *Activities {
	t.Helper()
	store := newTestStore(t)
	fileStore, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)
	catalog := artifacts.NewCatalog(fileStore, artifacts.SchemeForStorageType("fs"))

	return &Activities{
		Store:   store,
		Catalog: catalog,
		Profiles: map[domain.FeedlotFamily]config.FamilyProfile{
			domain.FamilyBovina: {
				StatementKeyword:     "statement of notes",
				InvoiceKeyword:       "feed invoice",
				StatementTotalSource: "grand_total_notes",
				EntityWeights:        config.DefaultEntityWeights(),
				VendorWeights:        config.DefaultVendorWeights(),
			},
		},
	}
}

func TestActivities_PersistPackageStarted_IsIdempotent(t *testing.T) {
	a := newTestActivities(t)
	ctx := context.Background()

	err := a.PersistPackageStarted(ctx, "pkg-1", domain.FamilyBovina, nil)
	require.NoError(t, err)
	err = a.PersistPackageStarted(ctx, "pkg-1", domain.FamilyBovina, nil)
	require.NoError(t, err)

	p, err := a.Store.GetPackage(ctx, "pkg-1")
	require.NoError(t, err)
	require.Equal(t, domain.PackageStarted, p.Status)
}

func TestActivities_PersistPackageStarted_UnknownFamilyLaterRejectedBySplit(t *testing.T) {
	a := newTestActivities(t)
	ctx := context.Background()
	require.NoError(t, a.PersistPackageStarted(ctx, "pkg-2", domain.FeedlotFamily("UNKNOWN"), nil))

	_, err := a.SplitPDF(ctx, "pkg-2", "/nonexistent.pdf", domain.FeedlotFamily("UNKNOWN"))
	require.Error(t, err)
}

func TestActivities_PersistProgressEvent_AppendsToLog(t *testing.T) {
	a := newTestActivities(t)
	ctx := context.Background()
	require.NoError(t, a.PersistPackageStarted(ctx, "pkg-progress", domain.FamilyBovina, nil))

	require.NoError(t, a.PersistProgressEvent(ctx, "pkg-progress", domain.StepSplitPDF, "split into 1 statement page(s), 2 invoice page(s)"))
	require.NoError(t, a.PersistProgressEvent(ctx, "pkg-progress", domain.StepExtractStatement, "statement extracted"))

	events, err := a.Store.ListProgressEvents(ctx, "pkg-progress")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int64(1), events[0].Ordinal)
	require.Equal(t, int64(2), events[1].Ordinal)
}

func TestActivities_PersistInvoice_ThenUpdateStatus(t *testing.T) {
	a := newTestActivities(t)
	ctx := context.Background()
	require.NoError(t, a.PersistPackageStarted(ctx, "pkg-3", domain.FamilyBovina, nil))

	doc := domain.InvoiceDocument{
		InvoiceNumber: "INV-1",
		Lot:           "42",
		Totals:        domain.InvoiceTotals{TotalAmountDue: strPtr("100.00")},
	}
	ref := domain.DataReference{StorageURI: "file://x", ContentHash: "abc"}
	require.NoError(t, a.PersistInvoice(ctx, "pkg-3", doc, ref))

	row, err := a.Store.GetInvoice(ctx, "pkg-3", "INV-1")
	require.NoError(t, err)
	require.Equal(t, domain.InvoiceExtracted, row.Status)
	require.NotNil(t, row.TotalAmount)

	validationRef := domain.DataReference{StorageURI: "file://v"}
	require.NoError(t, a.UpdateInvoiceStatus(ctx, "pkg-3", "INV-1", domain.InvoiceValidatedPass, validationRef))

	row, err = a.Store.GetInvoice(ctx, "pkg-3", "INV-1")
	require.NoError(t, err)
	require.Equal(t, domain.InvoiceValidatedPass, row.Status)
	require.NotNil(t, row.ValidationRef)
}

func TestActivities_ValidateInvoice_FailsOnMissingRequiredField(t *testing.T) {
	a := newTestActivities(t)
	ctx := context.Background()
	require.NoError(t, a.PersistPackageStarted(ctx, "pkg-4", domain.FamilyBovina, nil))

	doc := domain.InvoiceDocument{InvoiceNumber: "", Lot: "42"}
	status, _, err := a.ValidateInvoice(ctx, "pkg-4", doc, domain.FamilyBovina)
	require.NoError(t, err)
	require.Equal(t, domain.InvoiceValidatedFail, status)
}

func TestActivities_ApplyMappingOverlay_FallsBackToSuspenseWithoutMapping(t *testing.T) {
	a := newTestActivities(t)
	ctx := context.Background()

	doc := domain.InvoiceDocument{
		InvoiceNumber: "INV-2",
		LineItems:     []domain.LineItem{{Description: "yardage charge", Total: strPtr("10.00")}},
	}
	invCoding, err := a.ApplyMappingOverlay(ctx, doc, "entity-1", "", coding.SourceData{})
	require.NoError(t, err)
	require.Len(t, invCoding.LineCodings, 1)
}

func strPtr(s string) *string { return &s }
