// Package entityresolver implements C4, score-based routing of an
// extracted invoice to a tenant entity. Resolve is a pure function over
// its inputs (routing keys, entity catalog, and an optional vendor
// lookup callback); it performs no I/O of its own, matching spec.md
// §4.4's determinism requirement given the same DB snapshot.
package entityresolver

import "strings"

// Signals are the six extraction-derived fields spec.md §4.4 scores
// against. A blank invoice field is filled from the statement.
type Signals struct {
	OwnerNumber  string
	OwnerName    string
	FeedlotName  string
	FeedlotState string
	LotNumber    string
	RemitState   string
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func coalesce(invoiceValue, statementValue string) string {
	if strings.TrimSpace(invoiceValue) != "" {
		return invoiceValue
	}
	return statementValue
}
