// Package reconciliation implements C3, a pure function that checks a
// statement's lot references against a package's extracted invoices and
// produces a ReconciliationReport. It performs no I/O: given the same
// statement, invoices, and feedlot family, it always returns the same
// report (spec.md §4.3).
package reconciliation

import (
	"strings"

	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/money"
)

// Severity is a check's failure class.
type Severity string

const (
	SeverityBlock Severity = "BLOCK"
	SeverityWarn  Severity = "WARN"
	SeverityInfo  Severity = "INFO"
)

// CheckID names one of the checks spec.md §4.3 enumerates. Declared as a
// distinct type so callers can't typo a check ID past the compiler.
type CheckID string

const (
	CheckA1PackageCompleteness CheckID = "A1"
	CheckA2NoExtras            CheckID = "A2"
	CheckA3PeriodConsistency   CheckID = "A3"
	CheckA4FeedlotOwnerMatch   CheckID = "A4"
	CheckA5InvoiceAmountMatch  CheckID = "A5"
	CheckA6PackageTotal        CheckID = "A6"
	CheckA7LotCompleteness     CheckID = "A7"
	CheckB1RequiredFields      CheckID = "B1"
	CheckB2LineSum             CheckID = "B2"
	CheckD1DuplicateInvoices   CheckID = "D1"
)

// checkOrder is the stable emission order spec.md §4.3 requires
// ("regardless of which fired").
var checkOrder = []CheckID{
	CheckA1PackageCompleteness, CheckA2NoExtras, CheckA3PeriodConsistency,
	CheckA4FeedlotOwnerMatch, CheckA5InvoiceAmountMatch, CheckA6PackageTotal,
	CheckA7LotCompleteness, CheckB1RequiredFields, CheckB2LineSum,
	CheckD1DuplicateInvoices,
}

var checkSeverity = map[CheckID]Severity{
	CheckA1PackageCompleteness: SeverityBlock,
	CheckA2NoExtras:            SeverityWarn,
	CheckA3PeriodConsistency:   SeverityWarn,
	CheckA4FeedlotOwnerMatch:   SeverityWarn,
	CheckA5InvoiceAmountMatch:  SeverityBlock,
	CheckA6PackageTotal:        SeverityBlock,
	CheckA7LotCompleteness:     SeverityInfo,
	CheckB1RequiredFields:      SeverityBlock,
	CheckB2LineSum:             SeverityWarn,
	CheckD1DuplicateInvoices:   SeverityBlock,
}

// ReportStatus is the aggregated outcome (spec.md §4.3 "Aggregation").
type ReportStatus string

const (
	StatusPass ReportStatus = "PASS"
	StatusWarn ReportStatus = "WARN"
	StatusFail ReportStatus = "FAIL"
)

// Finding is one fired check occurrence. InvoiceNumber is set only by the
// per-invoice checks (B1, B2) and is empty for every A-series check and D1.
type Finding struct {
	Check         CheckID  `json:"check"`
	Severity      Severity `json:"severity"`
	InvoiceNumber string   `json:"invoice_number,omitempty"`
	Message       string   `json:"message"`
	Evidence      any      `json:"evidence,omitempty"`
}

// Report is the full reconciliation result.
type Report struct {
	Status              ReportStatus `json:"status"`
	StatementTotalSource string      `json:"statement_total_source"`
	Findings            []Finding    `json:"findings"`
}

// Warnings returns only the WARN-severity findings (supplemented
// accessor, spec.md §3 ReconciliationReport).
func (r Report) Warnings() []Finding { return r.bySeverity(SeverityWarn) }

// Discrepancies returns BLOCK and WARN findings — everything that is
// not purely informational.
func (r Report) Discrepancies() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityBlock || f.Severity == SeverityWarn {
			out = append(out, f)
		}
	}
	return out
}

func (r Report) bySeverity(sev Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// amountTolerance is the additive tolerance spec.md §4.3 names for every
// decimal comparison (A5, A6, B2).
var amountTolerance = money.MustParse("0.05")

// Reconcile checks statement against invoices for feedlotFamily and
// returns the findings in stable order, aggregated to a single status.
// It performs no I/O and is deterministic given its inputs. invoices are
// the full extracted documents (not persisted summary rows) since A5/B2
// need line items to resolve invoice_total per spec.md's precedence
// rule.
func Reconcile(statement domain.StatementDocument, invoices []domain.InvoiceDocument, family domain.FeedlotFamily, statementTotalSource string) Report {
	byInvoiceNumber := make(map[string]domain.InvoiceDocument, len(invoices))
	for _, inv := range invoices {
		byInvoiceNumber[inv.InvoiceNumber] = inv
	}

	findings := map[CheckID][]Finding{}
	appendFinding := func(f Finding) {
		f.Severity = checkSeverity[f.Check]
		findings[f.Check] = append(findings[f.Check], f)
	}

	checkA1PackageCompleteness(statement, byInvoiceNumber, appendFinding)
	checkA2NoExtras(statement, invoices, appendFinding)
	checkA3PeriodConsistency(statement, invoices, appendFinding)
	checkA4FeedlotOwnerMatch(statement, invoices, appendFinding)
	checkA5InvoiceAmountMatch(statement, invoices, appendFinding)
	checkA6PackageTotal(statement, invoices, statementTotalSource, appendFinding)
	checkA7LotCompleteness(statement, byInvoiceNumber, appendFinding)
	checkB1RequiredFields(invoices, appendFinding)
	checkB2LineSum(invoices, appendFinding)
	checkD1DuplicateInvoices(invoices, appendFinding)

	var all []Finding
	for _, id := range checkOrder {
		all = append(all, findings[id]...)
	}

	return Report{
		Status:               aggregate(all),
		StatementTotalSource: statementTotalSource,
		Findings:             all,
	}
}

func aggregate(findings []Finding) ReportStatus {
	hasWarn := false
	for _, f := range findings {
		if f.Severity == SeverityBlock {
			return StatusFail
		}
		if f.Severity == SeverityWarn {
			hasWarn = true
		}
	}
	if hasWarn {
		return StatusWarn
	}
	return StatusPass
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
