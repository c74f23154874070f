// Package extractor wraps the opaque, externally-supplied extraction
// functions (spec.md §6 "Extractor interface (consumed)") with the two
// concerns every call must go through before its output crosses into
// workflow state: rate limiting against the upstream LLM-class service,
// and strict JSON-schema validation of the returned document. The core
// never knows how extraction actually happens — it only knows these two
// boundary guarantees hold.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/rivieraros/apcore/internal/aperrors"
	"github.com/rivieraros/apcore/pkg/domain"
)

// StatementExtractorFn is the opaque statement extractor (spec.md §6):
// `extractStatement(pdfPath, pages, prompt) -> StatementDocument`.
type StatementExtractorFn func(ctx context.Context, pdfPath string, pages []int, prompt string) (domain.StatementDocument, error)

// InvoiceExtractorFn is the opaque invoice extractor (spec.md §6):
// `extractInvoice(pdfPath, page, prompt) -> InvoiceDocument`.
type InvoiceExtractorFn func(ctx context.Context, pdfPath string, page int, prompt string) (domain.InvoiceDocument, error)

// Client gates a pair of extractor functions behind a shared rate
// limiter and schema validation. One Client is shared by every
// extract_statement/extract_invoice activity invocation in a worker
// process (spec.md §5: "Extraction activities should be gated by an
// external rate-limited client").
type Client struct {
	extractStatement StatementExtractorFn
	extractInvoice   InvoiceExtractorFn
	limiter          *rate.Limiter
	schemas          *schemaSet
}

// NewClient builds a Client. rps/burst configure the shared token-bucket
// limiter; rps <= 0 disables limiting (useful in tests).
func NewClient(extractStatement StatementExtractorFn, extractInvoice InvoiceExtractorFn, rps float64, burst int) (*Client, error) {
	schemas, err := newSchemaSet()
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &Client{
		extractStatement: extractStatement,
		extractInvoice:   extractInvoice,
		limiter:          limiter,
		schemas:          schemas,
	}, nil
}

// ExtractStatement waits for rate-limiter admission, invokes the
// underlying extractor, and schema-validates its return before handing
// it back to the caller.
func (c *Client) ExtractStatement(ctx context.Context, pdfPath string, pages []int, prompt string) (domain.StatementDocument, error) {
	if err := c.wait(ctx, "extract_statement"); err != nil {
		return domain.StatementDocument{}, err
	}

	doc, err := c.extractStatement(ctx, pdfPath, pages, prompt)
	if err != nil {
		return domain.StatementDocument{}, classify("extract_statement", err)
	}

	if err := c.schemas.validateStatement(doc); err != nil {
		return domain.StatementDocument{}, err
	}
	return doc, nil
}

// ExtractInvoice waits for rate-limiter admission, invokes the
// underlying extractor, and schema-validates its return before handing
// it back to the caller.
func (c *Client) ExtractInvoice(ctx context.Context, pdfPath string, page int, prompt string) (domain.InvoiceDocument, error) {
	if err := c.wait(ctx, "extract_invoice"); err != nil {
		return domain.InvoiceDocument{}, err
	}

	doc, err := c.extractInvoice(ctx, pdfPath, page, prompt)
	if err != nil {
		return domain.InvoiceDocument{}, classify("extract_invoice", err)
	}

	if err := c.schemas.validateInvoice(doc); err != nil {
		return domain.InvoiceDocument{}, err
	}
	return doc, nil
}

func (c *Client) wait(ctx context.Context, op string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &aperrors.TransientIoError{Op: op, Err: err}
	}
	return nil
}

// classify passes through errors that already self-classify (e.g. the
// extractor returned an *aperrors.RateLimited for a 429 with
// Retry-After) and wraps everything else as transient, since an opaque
// extractor's failure mode is assumed to be the upstream LLM/HTTP
// service rather than a permanent input defect — FileNotFoundError-class
// failures are expected to surface from the split/persist activities
// that run before extraction, not from here.
func classify(op string, err error) error {
	var c aperrors.Classified
	if as(err, &c) {
		return c
	}
	return &aperrors.TransientIoError{Op: op, Err: err}
}

func as(err error, target *aperrors.Classified) bool {
	for err != nil {
		if c, ok := err.(aperrors.Classified); ok {
			*target = c
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// toJSONMap round-trips v through its JSON encoding so jsonschema can
// validate it as a plain map[string]any, matching how firewall.go
// validates tool parameters.
func toJSONMap(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
