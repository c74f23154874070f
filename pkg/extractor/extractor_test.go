package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rivieraros/apcore/internal/aperrors"
	"github.com/rivieraros/apcore/pkg/domain"
)

func validStatement() domain.StatementDocument {
	return domain.StatementDocument{
		Feedlot: "BOVINA FEEDLOT",
		Owner:   "ACME RANCH",
		LotReferences: []domain.LotReference{
			{InvoiceNumber: "INV-1", LotNumber: "L-1", StatementCharge: "100.00", Description: "Feed"},
		},
	}
}

func validInvoice() domain.InvoiceDocument {
	total := "100.00"
	return domain.InvoiceDocument{
		InvoiceNumber: "INV-1",
		Feedlot:       "BOVINA FEEDLOT",
		Owner:         "ACME RANCH",
		Lot:           "L-1",
		LineItems:     []domain.LineItem{{Description: "Feed charge", Total: &total}},
		Totals:        domain.InvoiceTotals{TotalAmountDue: &total},
	}
}

func TestExtractStatement_ValidDocumentPasses(t *testing.T) {
	client, err := NewClient(
		func(ctx context.Context, pdfPath string, pages []int, prompt string) (domain.StatementDocument, error) {
			return validStatement(), nil
		},
		nil, 0, 0,
	)
	assert.NoError(t, err)

	doc, err := client.ExtractStatement(context.Background(), "/tmp/x.pdf", []int{1}, "prompt")
	assert.NoError(t, err)
	assert.Equal(t, "ACME RANCH", doc.Owner)
}

func TestExtractStatement_MissingRequiredFieldFailsSchemaValidation(t *testing.T) {
	client, err := NewClient(
		func(ctx context.Context, pdfPath string, pages []int, prompt string) (domain.StatementDocument, error) {
			doc := validStatement()
			doc.Feedlot = ""
			return doc, nil
		},
		nil, 0, 0,
	)
	assert.NoError(t, err)

	_, err = client.ExtractStatement(context.Background(), "/tmp/x.pdf", []int{1}, "prompt")
	assert.Error(t, err)
	var schemaErr *aperrors.SchemaValidationError
	assert.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, aperrors.NonRetryable, aperrors.ClassificationOf(err))
}

func TestExtractInvoice_ValidDocumentPasses(t *testing.T) {
	client, err := NewClient(nil,
		func(ctx context.Context, pdfPath string, page int, prompt string) (domain.InvoiceDocument, error) {
			return validInvoice(), nil
		},
		0, 0,
	)
	assert.NoError(t, err)

	doc, err := client.ExtractInvoice(context.Background(), "/tmp/x.pdf", 2, "prompt")
	assert.NoError(t, err)
	assert.Equal(t, "INV-1", doc.InvoiceNumber)
}

func TestExtractInvoice_MissingLineItemDescriptionFailsSchemaValidation(t *testing.T) {
	client, err := NewClient(nil,
		func(ctx context.Context, pdfPath string, page int, prompt string) (domain.InvoiceDocument, error) {
			doc := validInvoice()
			doc.LineItems = []domain.LineItem{{}}
			return doc, nil
		},
		0, 0,
	)
	assert.NoError(t, err)

	_, err = client.ExtractInvoice(context.Background(), "/tmp/x.pdf", 2, "prompt")
	assert.Error(t, err)
	var schemaErr *aperrors.SchemaValidationError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestExtractInvoice_UnderlyingErrorWrappedAsTransient(t *testing.T) {
	underlying := errors.New("upstream LLM timeout")
	client, err := NewClient(nil,
		func(ctx context.Context, pdfPath string, page int, prompt string) (domain.InvoiceDocument, error) {
			return domain.InvoiceDocument{}, underlying
		},
		0, 0,
	)
	assert.NoError(t, err)

	_, err = client.ExtractInvoice(context.Background(), "/tmp/x.pdf", 2, "prompt")
	assert.Error(t, err)
	var transientErr *aperrors.TransientIoError
	assert.ErrorAs(t, err, &transientErr)
	assert.Equal(t, aperrors.Retryable, aperrors.ClassificationOf(err))
}

func TestExtractInvoice_UnderlyingRateLimitedErrorPassesThroughClassified(t *testing.T) {
	underlying := &aperrors.RateLimited{RetryAfterMs: 2000, Err: errors.New("429")}
	client, err := NewClient(nil,
		func(ctx context.Context, pdfPath string, page int, prompt string) (domain.InvoiceDocument, error) {
			return domain.InvoiceDocument{}, underlying
		},
		0, 0,
	)
	assert.NoError(t, err)

	_, err = client.ExtractInvoice(context.Background(), "/tmp/x.pdf", 2, "prompt")
	assert.Same(t, underlying, err)
}

func TestExtractInvoice_LimiterExhaustionSurfacesTransientError(t *testing.T) {
	client, err := NewClient(nil,
		func(ctx context.Context, pdfPath string, page int, prompt string) (domain.InvoiceDocument, error) {
			return validInvoice(), nil
		},
		0.0001, 1,
	)
	assert.NoError(t, err)

	ctx := context.Background()
	_, err = client.ExtractInvoice(ctx, "/tmp/x.pdf", 2, "prompt")
	assert.NoError(t, err)

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.ExtractInvoice(ctx2, "/tmp/x.pdf", 2, "prompt")
	assert.Error(t, err)
	var transientErr *aperrors.TransientIoError
	assert.ErrorAs(t, err, &transientErr)
	assert.Equal(t, "extract_invoice", transientErr.Op)
}
