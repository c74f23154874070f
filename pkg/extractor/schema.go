package extractor

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rivieraros/apcore/internal/aperrors"
)

// statementSchemaJSON and invoiceSchemaJSON are the boundary schemas
// spec.md §9 calls "schema-validated documents": every extractor return
// is checked against these before it is trusted anywhere downstream
// (persistence, reconciliation, resolution).
const statementSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["feedlot", "owner", "lot_references"],
  "properties": {
    "feedlot": {"type": "string", "minLength": 1},
    "owner": {"type": "string", "minLength": 1},
    "period_start": {"type": ["string", "null"]},
    "period_end": {"type": ["string", "null"]},
    "lot_references": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["invoice_number", "lot_number", "statement_charge", "description"],
        "properties": {
          "invoice_number": {"type": "string"},
          "lot_number": {"type": "string"},
          "statement_charge": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    },
    "transactions": {"type": ["array", "null"]},
    "summary_rows": {"type": ["array", "null"]},
    "grand_totals": {"type": ["object", "null"]},
    "owner_number": {"type": "string"},
    "feedlot_state": {"type": "string"},
    "remit_state": {"type": "string"}
  }
}`

const invoiceSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["invoice_number", "feedlot", "owner", "lot", "line_items", "totals"],
  "properties": {
    "invoice_number": {"type": "string", "minLength": 1},
    "invoice_date": {"type": ["string", "null"]},
    "feedlot": {"type": "string", "minLength": 1},
    "owner": {"type": "string", "minLength": 1},
    "lot": {"type": "string"},
    "line_items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "description": {"type": "string", "minLength": 1},
          "quantity": {"type": ["string", "null"]},
          "rate": {"type": ["string", "null"]},
          "total": {"type": ["string", "null"]}
        }
      }
    },
    "totals": {
      "type": "object",
      "properties": {
        "total_amount_due": {"type": ["string", "null"]},
        "total_period_charges": {"type": ["string", "null"]}
      }
    },
    "owner_number": {"type": "string"},
    "feedlot_state": {"type": "string"},
    "remit_state": {"type": "string"}
  }
}`

const (
	statementSchemaURL = "https://apcore.local/schemas/statement_document.schema.json"
	invoiceSchemaURL   = "https://apcore.local/schemas/invoice_document.schema.json"
)

// schemaSet holds the two compiled document schemas, grounded on the
// teacher's pkg/firewall.PolicyFirewall tool-parameter validation
// (compile once at startup via jsonschema.NewCompiler + Draft2020,
// Validate(map[string]any) per call).
type schemaSet struct {
	statement *jsonschema.Schema
	invoice   *jsonschema.Schema
}

func newSchemaSet() (*schemaSet, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	if err := c.AddResource(statementSchemaURL, strings.NewReader(statementSchemaJSON)); err != nil {
		return nil, fmt.Errorf("load statement schema: %w", err)
	}
	if err := c.AddResource(invoiceSchemaURL, strings.NewReader(invoiceSchemaJSON)); err != nil {
		return nil, fmt.Errorf("load invoice schema: %w", err)
	}

	statement, err := c.Compile(statementSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile statement schema: %w", err)
	}
	invoice, err := c.Compile(invoiceSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile invoice schema: %w", err)
	}

	return &schemaSet{statement: statement, invoice: invoice}, nil
}

func (s *schemaSet) validateStatement(doc any) error {
	v, err := toJSONMap(doc)
	if err != nil {
		return &aperrors.SchemaValidationError{Schema: "statement_document", Errs: []string{err.Error()}}
	}
	if err := s.statement.Validate(v); err != nil {
		return &aperrors.SchemaValidationError{Schema: "statement_document", Errs: []string{err.Error()}}
	}
	return nil
}

func (s *schemaSet) validateInvoice(doc any) error {
	v, err := toJSONMap(doc)
	if err != nil {
		return &aperrors.SchemaValidationError{Schema: "invoice_document", Errs: []string{err.Error()}}
	}
	if err := s.invoice.Validate(v); err != nil {
		return &aperrors.SchemaValidationError{Schema: "invoice_document", Errs: []string{err.Error()}}
	}
	return nil
}
