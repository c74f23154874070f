package erp

import (
	"fmt"

	"github.com/rivieraros/apcore/pkg/coding"
	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/reconciliation"
)

// BuildInvoicePayload builds the ERP-ready InvoicePayload envelope from
// an extracted invoice and its coding result (spec.md §4.7.6 "payload
// discipline": the workflow builds one deterministic payload per
// invoice, never the ERP's own wire format). vendorCode and
// idempotencyKey come from the caller (vendor resolution, and the
// workflow's idempotency key respectively).
func BuildInvoicePayload(inv domain.InvoiceDocument, invCoding coding.InvoiceCoding, vendorCode, idempotencyKey string) (InvoicePayload, error) {
	if len(inv.LineItems) != len(invCoding.LineCodings) {
		return InvoicePayload{}, fmt.Errorf("erp: invoice %s has %d line items but %d line codings", inv.InvoiceNumber, len(inv.LineItems), len(invCoding.LineCodings))
	}

	total, err := reconciliation.ResolveInvoiceTotal(inv)
	if err != nil {
		return InvoicePayload{}, fmt.Errorf("erp: resolve total for invoice %s: %w", inv.InvoiceNumber, err)
	}

	lines := make([]InvoiceLine, 0, len(inv.LineItems))
	for i, li := range inv.LineItems {
		lc := invCoding.LineCodings[i]
		lines = append(lines, InvoiceLine{
			Description:   li.Description,
			GLAccountCode: lc.GLRef,
			Quantity:      quantityOf(li),
			UnitPrice:     unitPriceOf(li),
			Dimensions:    lc.Dimensions,
		})
	}

	return InvoicePayload{
		VendorCode:         vendorCode,
		ExternalDocumentNo: inv.InvoiceNumber,
		DocumentDate:       inv.InvoiceDate,
		TotalAmount:        total.String(),
		Lines:              lines,
		IdempotencyKey:     idempotencyKey,
	}, nil
}

// quantityOf defaults to "1" when the extractor didn't carry a
// quantity, matching the connector's 1-unit-line assumption for
// charges quoted as a single total rather than rate*quantity.
func quantityOf(li domain.LineItem) string {
	if li.Quantity != nil && *li.Quantity != "" {
		return *li.Quantity
	}
	return "1"
}

// unitPriceOf prefers an explicit rate; falls back to the line total
// (consistent with an implied quantity of 1), then "0" when neither
// extracted.
func unitPriceOf(li domain.LineItem) string {
	if li.Rate != nil && *li.Rate != "" {
		return *li.Rate
	}
	if li.Total != nil && *li.Total != "" {
		return *li.Total
	}
	return "0"
}
