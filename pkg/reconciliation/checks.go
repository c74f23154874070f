package reconciliation

import (
	"errors"
	"sort"

	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/money"
)

var errNoResolvableTotal = errors.New("reconciliation: no resolvable invoice_total")

type appendFunc func(Finding)

// checkA1PackageCompleteness: every invoice_number in statement's lot
// references appears in invoices.
func checkA1PackageCompleteness(statement domain.StatementDocument, byNumber map[string]domain.InvoiceDocument, add appendFunc) {
	var missing []string
	for _, ref := range statement.LotReferences {
		if _, ok := byNumber[ref.InvoiceNumber]; !ok {
			missing = append(missing, ref.InvoiceNumber)
		}
	}
	if len(missing) > 0 {
		add(Finding{Check: CheckA1PackageCompleteness, Message: "statement references invoices missing from the package", Evidence: missing})
	}
}

// checkA2NoExtras: every invoice's number appears in statement references.
func checkA2NoExtras(statement domain.StatementDocument, invoices []domain.InvoiceDocument, add appendFunc) {
	referenced := make(map[string]bool, len(statement.LotReferences))
	for _, ref := range statement.LotReferences {
		referenced[ref.InvoiceNumber] = true
	}
	var extras []string
	for _, inv := range invoices {
		if !referenced[inv.InvoiceNumber] {
			extras = append(extras, inv.InvoiceNumber)
		}
	}
	if len(extras) > 0 {
		add(Finding{Check: CheckA2NoExtras, Message: "package contains invoices not referenced by the statement", Evidence: extras})
	}
}

// checkA3PeriodConsistency: invoice dates fall within the statement period.
func checkA3PeriodConsistency(statement domain.StatementDocument, invoices []domain.InvoiceDocument, add appendFunc) {
	if statement.PeriodStart == nil || statement.PeriodEnd == nil {
		return
	}
	var outOfRange []string
	for _, inv := range invoices {
		if inv.InvoiceDate == nil {
			continue
		}
		if inv.InvoiceDate.Before(*statement.PeriodStart) || inv.InvoiceDate.After(*statement.PeriodEnd) {
			outOfRange = append(outOfRange, inv.InvoiceNumber)
		}
	}
	if len(outOfRange) > 0 {
		add(Finding{Check: CheckA3PeriodConsistency, Message: "invoice dates fall outside the statement period", Evidence: outOfRange})
	}
}

// checkA4FeedlotOwnerMatch: feedlot and owner match the statement,
// case-insensitively.
func checkA4FeedlotOwnerMatch(statement domain.StatementDocument, invoices []domain.InvoiceDocument, add appendFunc) {
	wantFeedlot, wantOwner := normalize(statement.Feedlot), normalize(statement.Owner)
	var mismatched []string
	for _, inv := range invoices {
		if normalize(inv.Feedlot) != wantFeedlot || normalize(inv.Owner) != wantOwner {
			mismatched = append(mismatched, inv.InvoiceNumber)
		}
	}
	if len(mismatched) > 0 {
		add(Finding{Check: CheckA4FeedlotOwnerMatch, Message: "invoice feedlot/owner does not match the statement", Evidence: mismatched})
	}
}

// checkA5InvoiceAmountMatch: per-invoice total matches its statement
// charge within tolerance.
func checkA5InvoiceAmountMatch(statement domain.StatementDocument, invoices []domain.InvoiceDocument, add appendFunc) {
	chargeByNumber := make(map[string]string, len(statement.LotReferences))
	for _, ref := range statement.LotReferences {
		chargeByNumber[ref.InvoiceNumber] = ref.StatementCharge
	}
	var mismatched []map[string]string
	for _, inv := range invoices {
		chargeStr, ok := chargeByNumber[inv.InvoiceNumber]
		if !ok {
			continue // A1 already reports missing invoices
		}
		total, err := ResolveInvoiceTotal(inv)
		if err != nil {
			mismatched = append(mismatched, map[string]string{"invoice_number": inv.InvoiceNumber, "reason": "unresolvable invoice_total"})
			continue
		}
		charge, err := money.Parse(chargeStr)
		if err != nil {
			mismatched = append(mismatched, map[string]string{"invoice_number": inv.InvoiceNumber, "reason": "unparseable statement_charge"})
			continue
		}
		if !total.WithinTolerance(charge, amountTolerance) {
			mismatched = append(mismatched, map[string]string{
				"invoice_number": inv.InvoiceNumber, "invoice_total": total.String(), "statement_charge": charge.String(),
			})
		}
	}
	if len(mismatched) > 0 {
		add(Finding{Check: CheckA5InvoiceAmountMatch, Message: "invoice total does not match its statement charge within tolerance", Evidence: mismatched})
	}
}

// checkA6PackageTotal: sum of invoice totals equals the family-specific
// statement grand total within tolerance.
func checkA6PackageTotal(statement domain.StatementDocument, invoices []domain.InvoiceDocument, statementTotalSource string, add appendFunc) {
	grandStr, ok := statement.GrandTotals[statementTotalSource]
	if !ok {
		add(Finding{Check: CheckA6PackageTotal, Message: "statement grand total source field is missing", Evidence: statementTotalSource})
		return
	}
	grand, err := money.Parse(grandStr)
	if err != nil {
		add(Finding{Check: CheckA6PackageTotal, Message: "statement grand total is unparseable", Evidence: grandStr})
		return
	}

	sum := money.Zero()
	var unresolved []string
	for _, inv := range invoices {
		total, err := ResolveInvoiceTotal(inv)
		if err != nil {
			unresolved = append(unresolved, inv.InvoiceNumber)
			continue
		}
		sum = sum.Add(total)
	}
	if len(unresolved) > 0 {
		add(Finding{Check: CheckA6PackageTotal, Message: "some invoice totals could not be resolved for the package sum", Evidence: unresolved})
		return
	}
	if !sum.WithinTolerance(grand, amountTolerance) {
		add(Finding{
			Check: CheckA6PackageTotal, Message: "sum of invoice totals does not match the statement grand total within tolerance",
			Evidence: map[string]string{"package_sum": sum.String(), "statement_grand_total": grand.String(), "source": statementTotalSource},
		})
	}
}

// checkA7LotCompleteness: every referenced lot has at least one invoice.
func checkA7LotCompleteness(statement domain.StatementDocument, byNumber map[string]domain.InvoiceDocument, add appendFunc) {
	lotsWithInvoices := map[string]bool{}
	for _, inv := range byNumber {
		if inv.Lot != "" {
			lotsWithInvoices[normalize(inv.Lot)] = true
		}
	}
	var missingLots []string
	seen := map[string]bool{}
	for _, ref := range statement.LotReferences {
		lot := normalize(ref.LotNumber)
		if lot == "" || seen[lot] {
			continue
		}
		seen[lot] = true
		if !lotsWithInvoices[lot] {
			missingLots = append(missingLots, ref.LotNumber)
		}
	}
	if len(missingLots) > 0 {
		add(Finding{Check: CheckA7LotCompleteness, Message: "referenced lot has no invoice in the package", Evidence: missingLots})
	}
}

// checkB1RequiredFields: invoice_number, invoice_date, >=1 line item, a
// resolvable invoice_total.
func checkB1RequiredFields(invoices []domain.InvoiceDocument, add appendFunc) {
	for _, inv := range invoices {
		var missing []string
		if inv.InvoiceNumber == "" {
			missing = append(missing, "invoice_number")
		}
		if inv.InvoiceDate == nil {
			missing = append(missing, "invoice_date")
		}
		if len(inv.LineItems) == 0 {
			missing = append(missing, "line_items")
		}
		if _, err := ResolveInvoiceTotal(inv); err != nil {
			missing = append(missing, "invoice_total")
		}
		if len(missing) > 0 {
			add(Finding{Check: CheckB1RequiredFields, InvoiceNumber: inv.InvoiceNumber, Message: "invoice is missing required fields", Evidence: missing})
		}
	}
}

// checkB2LineSum: sum of line totals matches invoice_total within
// tolerance.
func checkB2LineSum(invoices []domain.InvoiceDocument, add appendFunc) {
	for _, inv := range invoices {
		total, err := ResolveInvoiceTotal(inv)
		if err != nil {
			continue // B1 already reports this
		}
		sum := money.Zero()
		allParsed := true
		for _, li := range inv.LineItems {
			if li.Total == nil {
				allParsed = false
				break
			}
			v, err := money.Parse(*li.Total)
			if err != nil {
				allParsed = false
				break
			}
			sum = sum.Add(v)
		}
		if !allParsed {
			add(Finding{Check: CheckB2LineSum, InvoiceNumber: inv.InvoiceNumber, Message: "one or more line totals are unparseable"})
			continue
		}
		if !sum.WithinTolerance(total, amountTolerance) {
			add(Finding{
				Check: CheckB2LineSum, InvoiceNumber: inv.InvoiceNumber, Message: "sum of line totals does not match invoice_total within tolerance",
				Evidence: map[string]string{"line_sum": sum.String(), "invoice_total": total.String()},
			})
		}
	}
}

// checkD1DuplicateInvoices: no invoice_number appears twice in the package.
func checkD1DuplicateInvoices(invoices []domain.InvoiceDocument, add appendFunc) {
	counts := map[string]int{}
	for _, inv := range invoices {
		counts[inv.InvoiceNumber]++
	}
	var dupes []string
	for number, n := range counts {
		if n > 1 {
			dupes = append(dupes, number)
		}
	}
	if len(dupes) > 0 {
		// counts is a map, so dupes comes out in random order; sort it so
		// Reconcile's output is stable across runs over the same input.
		sort.Strings(dupes)
		add(Finding{Check: CheckD1DuplicateInvoices, Message: "duplicate invoice_number within the package", Evidence: dupes})
	}
}

// ResolveInvoiceTotal resolves invoice_total per spec.md §4.3's
// precedence: totals.total_amount_due, else totals.total_period_charges,
// else the sum of line.total. Missing amounts are a failed resolution,
// never treated as zero.
func ResolveInvoiceTotal(inv domain.InvoiceDocument) (money.Money, error) {
	if inv.Totals.TotalAmountDue != nil {
		return money.Parse(*inv.Totals.TotalAmountDue)
	}
	if inv.Totals.TotalPeriodCharges != nil {
		return money.Parse(*inv.Totals.TotalPeriodCharges)
	}
	if len(inv.LineItems) == 0 {
		return money.Money{}, errNoResolvableTotal
	}
	sum := money.Zero()
	for _, li := range inv.LineItems {
		if li.Total == nil {
			return money.Money{}, errNoResolvableTotal
		}
		v, err := money.Parse(*li.Total)
		if err != nil {
			return money.Money{}, errNoResolvableTotal
		}
		sum = sum.Add(v)
	}
	return sum, nil
}
