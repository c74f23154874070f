package workflow

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// SplitResult is split_pdf's output (spec.md §4.7.2 step 2): zero-based
// page indices bucketed by family-specific keyword, plus the page count.
type SplitResult struct {
	StatementPages []int `json:"statement_pages"`
	InvoicePages   []int `json:"invoice_pages"`
	TotalPages     int   `json:"total_pages"`
}

// categorizePages buckets each page's lowercased text by keyword,
// mirroring the original categorize_pages: a page matching
// statementKeyword is a statement page; otherwise a page matching
// invoiceKeyword is an invoice page; a page matching neither is dropped
// from both buckets (it contributes to TotalPages only).
func categorizePages(pageTexts []string, statementKeyword, invoiceKeyword string) SplitResult {
	statementKeyword = strings.ToLower(statementKeyword)
	invoiceKeyword = strings.ToLower(invoiceKeyword)

	result := SplitResult{TotalPages: len(pageTexts)}
	for i, text := range pageTexts {
		lower := strings.ToLower(text)
		switch {
		case statementKeyword != "" && strings.Contains(lower, statementKeyword):
			result.StatementPages = append(result.StatementPages, i)
		case invoiceKeyword != "" && strings.Contains(lower, invoiceKeyword):
			result.InvoicePages = append(result.InvoicePages, i)
		}
	}
	return result
}

// extractPageTexts renders a crude per-page text approximation by reading
// each page's raw content stream via pdfcpu and pulling out the literal
// string operands of its text-showing operators ("(...)" runs preceding
// Tj/TJ). This recovers keyword-bearing text from PDFs that encode body
// copy as literal strings (the common case for the generated statement
// and invoice templates this pipeline ingests); pages using embedded
// subset fonts with non-literal encodings won't contribute readable text
// and simply fail to match either keyword, same as a page pdfcpu can't
// decode at all.
func extractPageTexts(pdfPath string) ([]string, error) {
	pageCount, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("workflow: page count %s: %w", pdfPath, err)
	}

	tmpDir, err := os.MkdirTemp("", "apcore-split-*")
	if err != nil {
		return nil, fmt.Errorf("workflow: content extraction tmp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	if err := api.ExtractContentFile(pdfPath, tmpDir, nil, nil); err != nil {
		return nil, fmt.Errorf("workflow: extract content streams %s: %w", pdfPath, err)
	}

	texts := make([]string, pageCount)
	entries, _ := os.ReadDir(tmpDir)
	for _, e := range entries {
		idx, ok := contentPageIndex(e.Name())
		if !ok || idx < 0 || idx >= pageCount {
			continue
		}
		raw, err := os.ReadFile(tmpDir + "/" + e.Name())
		if err != nil {
			continue
		}
		texts[idx] = literalStringsOf(raw)
	}
	return texts, nil
}

// contentPageIndex parses pdfcpu's "<stem>_Content_page_N.txt" naming
// convention into a zero-based page index.
func contentPageIndex(name string) (int, bool) {
	const marker = "_page_"
	i := strings.LastIndex(name, marker)
	if i < 0 {
		return 0, false
	}
	rest := strings.TrimSuffix(name[i+len(marker):], ".txt")
	n := 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n - 1, true
}

// literalStringsOf scans a raw PDF content stream for parenthesized
// literal-string operands and concatenates their unescaped bytes,
// separated by spaces.
func literalStringsOf(contentStream []byte) string {
	var out bytes.Buffer
	depth := 0
	for i := 0; i < len(contentStream); i++ {
		b := contentStream[i]
		switch {
		case b == '\\' && depth > 0:
			i++ // skip escaped byte
		case b == '(':
			if depth > 0 {
				out.WriteByte(b)
			}
			depth++
		case b == ')':
			depth--
			if depth > 0 {
				out.WriteByte(b)
			} else {
				out.WriteByte(' ')
			}
		case depth > 0:
			out.WriteByte(b)
		}
	}
	return out.String()
}

// SplitPDF is the split_pdf activity body: categorize every page of the
// PDF at pdfPath by the family's statement/invoice keyword pair.
func SplitPDF(pdfPath, statementKeyword, invoiceKeyword string) (SplitResult, error) {
	texts, err := extractPageTexts(pdfPath)
	if err != nil {
		return SplitResult{}, err
	}
	return categorizePages(texts, statementKeyword, invoiceKeyword), nil
}
