// Package erp defines the boundary this core posts through: an opaque
// ErpClient the workflow calls into, and the deterministic payload
// envelope builder that turns a coded invoice into that client's input
// shape (spec.md §1 "the core consumes an opaque... ErpClient"; §9
// explicitly excludes implementing a real ERP wire adapter). The
// interface's method set is captured from the original system's
// Business Central connector (`ListEntities`, `ListVendors`,
// `ListGLAccounts`, `ListDimensions`, `ListDimensionValues`,
// `CreateDraftPurchaseInvoice`, `Post`, `GetStatus`) so a real adapter
// drops in without touching the workflow.
package erp

import (
	"context"
	"time"
)

// InvoiceStatus mirrors the ERP-side posting lifecycle, independent of
// domain.InvoiceStatus (the core's own per-invoice state machine).
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "DRAFT"
	StatusOpen      InvoiceStatus = "OPEN"
	StatusPaid      InvoiceStatus = "PAID"
	StatusCancelled InvoiceStatus = "CANCELLED"
	StatusUnknown   InvoiceStatus = "UNKNOWN"
)

// ListOptions bounds and filters every List* call.
type ListOptions struct {
	ActiveOnly bool
	Limit      int
	Offset     int
	Search     string
}

// EntityRef is one ERP-side company/entity.
type EntityRef struct {
	ID       string
	Code     string
	Name     string
	IsActive bool
}

// VendorRef is one ERP-side vendor master record.
type VendorRef struct {
	ID           string
	Code         string
	Name         string
	IsActive     bool
	AddressLine1 string
	City         string
	State        string
	PostalCode   string
	Country      string
}

// GLAccountRef is one ERP-side G/L account.
type GLAccountRef struct {
	ID            string
	Code          string
	Name          string
	IsActive      bool
	DirectPosting bool
	Blocked       bool
}

// DimensionRef is one ERP-side dimension definition.
type DimensionRef struct {
	ID       string
	Code     string
	Name     string
	IsActive bool
}

// DimensionValueRef is one allowed value of a dimension.
type DimensionValueRef struct {
	ID            string
	Code          string
	Name          string
	DimensionCode string
	IsActive      bool
}

// InvoiceLine is one line of an InvoicePayload.
type InvoiceLine struct {
	Description   string
	GLAccountCode string
	Quantity      string
	UnitPrice     string
	Dimensions    map[string]string
}

// InvoicePayload is the envelope BuildInvoicePayload produces and
// CreateDraftPurchaseInvoice consumes (spec.md §4.7.6 "payload
// discipline").
type InvoicePayload struct {
	VendorCode        string
	ExternalDocumentNo string
	DocumentDate      *time.Time
	TotalAmount       string
	CurrencyCode      string
	Lines             []InvoiceLine
	IdempotencyKey    string
}

// CreatedInvoiceRef is the result of CreateDraftPurchaseInvoice.
type CreatedInvoiceRef struct {
	ID                 string
	DocumentNumber     string
	Status             InvoiceStatus
	VendorCode         string
	ExternalDocumentNo string
	TotalAmount        string
	CreatedAt          time.Time
	IdempotencyKey     string
}

// PostedInvoiceRef is the result of Post.
type PostedInvoiceRef struct {
	ID             string
	DocumentNumber string
	Status         InvoiceStatus
	PostedAt       time.Time
}

// Client is the opaque ERP adapter the workflow's activities call
// through. The core never implements this against a real ERP (spec.md
// §1 Non-goals); a real adapter satisfies it out of band.
type Client interface {
	ListEntities(ctx context.Context, opts ListOptions) ([]EntityRef, error)
	ListVendors(ctx context.Context, entityID string, opts ListOptions) ([]VendorRef, error)
	ListGLAccounts(ctx context.Context, entityID string, opts ListOptions) ([]GLAccountRef, error)
	ListDimensions(ctx context.Context, entityID string, opts ListOptions) ([]DimensionRef, error)
	ListDimensionValues(ctx context.Context, entityID, dimensionCode string, opts ListOptions) ([]DimensionValueRef, error)
	CreateDraftPurchaseInvoice(ctx context.Context, entityID string, payload InvoicePayload) (CreatedInvoiceRef, error)
	Post(ctx context.Context, entityID, invoiceID string) (PostedInvoiceRef, error)
	GetStatus(ctx context.Context, entityID, invoiceID string) (InvoiceStatus, error)
}
