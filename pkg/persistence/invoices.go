package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rivieraros/apcore/pkg/domain"
)

// UpsertInvoice inserts or updates an invoice row, keyed by
// (package_id, invoice_number) per spec.md §4.2.
func (s *Store) UpsertInvoice(ctx context.Context, inv domain.InvoiceRow) error {
	invRef, err := json.Marshal(inv.InvoiceRef)
	if err != nil {
		return fmt.Errorf("persistence: marshal invoice_ref: %w", err)
	}
	var validationRef []byte
	if inv.ValidationRef != nil {
		if validationRef, err = json.Marshal(inv.ValidationRef); err != nil {
			return fmt.Errorf("persistence: marshal validation_ref: %w", err)
		}
	}
	var total any
	if inv.TotalAmount != nil {
		total = string(*inv.TotalAmount)
	}
	query := fmt.Sprintf(`
		INSERT INTO invoices (package_id, invoice_number, lot_number, invoice_date, total_amount, status, invoice_ref, validation_ref, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (package_id, invoice_number) DO UPDATE SET
			lot_number = excluded.lot_number,
			invoice_date = excluded.invoice_date,
			total_amount = excluded.total_amount,
			status = excluded.status,
			invoice_ref = excluded.invoice_ref,
			validation_ref = excluded.validation_ref,
			updated_at = excluded.updated_at
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10))
	_, err = s.db.ExecContext(ctx, query,
		inv.PackageID, inv.InvoiceNumber, nullString(inv.LotNumber), inv.InvoiceDate, total,
		string(inv.Status), string(invRef), nullableString(validationRef), inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("persistence: upsert invoice %s/%s: %w", inv.PackageID, inv.InvoiceNumber, err)
	}
	return nil
}

// ListInvoicesByPackage returns every invoice row for a package, ordered
// by invoice_number for deterministic iteration (C3 reconciliation and C7
// both depend on stable ordering for reproducible reports).
func (s *Store) ListInvoicesByPackage(ctx context.Context, packageID string) ([]domain.InvoiceRow, error) {
	query := fmt.Sprintf(`
		SELECT package_id, invoice_number, lot_number, invoice_date, total_amount, status, invoice_ref, validation_ref, created_at, updated_at
		FROM invoices WHERE package_id = %s ORDER BY invoice_number ASC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("persistence: list invoices for %s: %w", packageID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.InvoiceRow
	for rows.Next() {
		inv, err := scanInvoiceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persistence: list invoices for %s: %w", packageID, err)
	}
	return out, nil
}

// GetInvoice fetches a single invoice row.
func (s *Store) GetInvoice(ctx context.Context, packageID, invoiceNumber string) (domain.InvoiceRow, error) {
	query := fmt.Sprintf(`
		SELECT package_id, invoice_number, lot_number, invoice_date, total_amount, status, invoice_ref, validation_ref, created_at, updated_at
		FROM invoices WHERE package_id = %s AND invoice_number = %s`, s.ph(1), s.ph(2))
	row := s.db.QueryRowContext(ctx, query, packageID, invoiceNumber)
	inv, err := scanInvoiceRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.InvoiceRow{}, fmt.Errorf("persistence: invoice %s/%s: %w", packageID, invoiceNumber, sql.ErrNoRows)
		}
		return domain.InvoiceRow{}, fmt.Errorf("persistence: get invoice %s/%s: %w", packageID, invoiceNumber, err)
	}
	return inv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoiceRow(r rowScanner) (domain.InvoiceRow, error) {
	var inv domain.InvoiceRow
	var lotNumber, total sql.NullString
	var invoiceDate sql.NullTime
	var status, invRef string
	var validationRef sql.NullString

	if err := r.Scan(&inv.PackageID, &inv.InvoiceNumber, &lotNumber, &invoiceDate, &total, &status, &invRef, &validationRef, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return domain.InvoiceRow{}, err
	}
	inv.Status = domain.InvoiceStatus(status)
	if lotNumber.Valid {
		inv.LotNumber = lotNumber.String
	}
	if invoiceDate.Valid {
		t := invoiceDate.Time
		inv.InvoiceDate = &t
	}
	if total.Valid {
		m := domain.MoneyRef(total.String)
		inv.TotalAmount = &m
	}
	if err := json.Unmarshal([]byte(invRef), &inv.InvoiceRef); err != nil {
		return domain.InvoiceRow{}, fmt.Errorf("persistence: unmarshal invoice_ref: %w", err)
	}
	if validationRef.Valid {
		var ref domain.DataReference
		if err := json.Unmarshal([]byte(validationRef.String), &ref); err != nil {
			return domain.InvoiceRow{}, fmt.Errorf("persistence: unmarshal validation_ref: %w", err)
		}
		inv.ValidationRef = &ref
	}
	return inv, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
