package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rivieraros/apcore/pkg/domain"
)

// UpsertPackage inserts or updates a package row. Conflicting inserts on
// package_id refresh updated_at and the mutable fields, per spec.md §4.2.
func (s *Store) UpsertPackage(ctx context.Context, p domain.Package) error {
	docRefs, err := json.Marshal(p.DocumentRefs)
	if err != nil {
		return fmt.Errorf("persistence: marshal document_refs: %w", err)
	}
	var stmtRef, reconRef []byte
	if p.StatementRef != nil {
		if stmtRef, err = json.Marshal(p.StatementRef); err != nil {
			return fmt.Errorf("persistence: marshal statement_ref: %w", err)
		}
	}
	if p.ReconciliationRef != nil {
		if reconRef, err = json.Marshal(p.ReconciliationRef); err != nil {
			return fmt.Errorf("persistence: marshal reconciliation_ref: %w", err)
		}
	}
	query := fmt.Sprintf(`
		INSERT INTO packages (package_id, feedlot_family, status, document_refs, statement_ref, reconciliation_ref, total_invoices, extracted_invoices, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (package_id) DO UPDATE SET
			status = excluded.status,
			document_refs = excluded.document_refs,
			statement_ref = excluded.statement_ref,
			reconciliation_ref = excluded.reconciliation_ref,
			total_invoices = excluded.total_invoices,
			extracted_invoices = excluded.extracted_invoices,
			updated_at = excluded.updated_at
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10))
	_, err = s.db.ExecContext(ctx, query,
		p.PackageID, string(p.FeedlotFamily), string(p.Status), string(docRefs), nullableString(stmtRef), nullableString(reconRef),
		p.TotalInvoices, p.ExtractedInvoices, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("persistence: upsert package %s: %w", p.PackageID, err)
	}
	return nil
}

// GetPackage fetches a package by ID.
func (s *Store) GetPackage(ctx context.Context, packageID string) (domain.Package, error) {
	query := fmt.Sprintf(`
		SELECT package_id, feedlot_family, status, document_refs, statement_ref, reconciliation_ref, total_invoices, extracted_invoices, created_at, updated_at
		FROM packages WHERE package_id = %s`, s.ph(1))
	row := s.db.QueryRowContext(ctx, query, packageID)

	var p domain.Package
	var family, status, docRefs string
	var stmtRef, reconRef sql.NullString
	if err := row.Scan(&p.PackageID, &family, &status, &docRefs, &stmtRef, &reconRef, &p.TotalInvoices, &p.ExtractedInvoices, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Package{}, fmt.Errorf("persistence: package %s: %w", packageID, sql.ErrNoRows)
		}
		return domain.Package{}, fmt.Errorf("persistence: get package %s: %w", packageID, err)
	}
	p.FeedlotFamily = domain.FeedlotFamily(family)
	p.Status = domain.PackageStatus(status)
	if err := json.Unmarshal([]byte(docRefs), &p.DocumentRefs); err != nil {
		return domain.Package{}, fmt.Errorf("persistence: unmarshal document_refs: %w", err)
	}
	if stmtRef.Valid {
		var ref domain.DataReference
		if err := json.Unmarshal([]byte(stmtRef.String), &ref); err != nil {
			return domain.Package{}, fmt.Errorf("persistence: unmarshal statement_ref: %w", err)
		}
		p.StatementRef = &ref
	}
	if reconRef.Valid {
		var ref domain.DataReference
		if err := json.Unmarshal([]byte(reconRef.String), &ref); err != nil {
			return domain.Package{}, fmt.Errorf("persistence: unmarshal reconciliation_ref: %w", err)
		}
		p.ReconciliationRef = &ref
	}
	return p, nil
}

// UpdatePackageStatus transitions a package's status. The workflow, not
// the store, enforces legality of the transition (spec.md §4.2).
func (s *Store) UpdatePackageStatus(ctx context.Context, packageID string, status domain.PackageStatus, at time.Time) error {
	query := fmt.Sprintf(`UPDATE packages SET status = %s, updated_at = %s WHERE package_id = %s`, s.ph(1), s.ph(2), s.ph(3))
	res, err := s.db.ExecContext(ctx, query, string(status), at, packageID)
	if err != nil {
		return fmt.Errorf("persistence: update package status %s: %w", packageID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("persistence: package %s: %w", packageID, sql.ErrNoRows)
	}
	return nil
}

// ListPackages returns packages ordered by most-recently-updated first, for
// the read-only `apctl packages list` inspector (SPEC_FULL.md §3). limit <= 0
// means no limit.
func (s *Store) ListPackages(ctx context.Context, limit int) ([]domain.Package, error) {
	query := `SELECT package_id, feedlot_family, status, document_refs, statement_ref, reconciliation_ref, total_invoices, extracted_invoices, created_at, updated_at
		FROM packages ORDER BY updated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("persistence: list packages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Package
	for rows.Next() {
		var p domain.Package
		var family, status, docRefs string
		var stmtRef, reconRef sql.NullString
		if err := rows.Scan(&p.PackageID, &family, &status, &docRefs, &stmtRef, &reconRef, &p.TotalInvoices, &p.ExtractedInvoices, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("persistence: scan package: %w", err)
		}
		p.FeedlotFamily = domain.FeedlotFamily(family)
		p.Status = domain.PackageStatus(status)
		if err := json.Unmarshal([]byte(docRefs), &p.DocumentRefs); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal document_refs: %w", err)
		}
		if stmtRef.Valid {
			var ref domain.DataReference
			if err := json.Unmarshal([]byte(stmtRef.String), &ref); err != nil {
				return nil, fmt.Errorf("persistence: unmarshal statement_ref: %w", err)
			}
			p.StatementRef = &ref
		}
		if reconRef.Valid {
			var ref domain.DataReference
			if err := json.Unmarshal([]byte(reconRef.String), &ref); err != nil {
				return nil, fmt.Errorf("persistence: unmarshal reconciliation_ref: %w", err)
			}
			p.ReconciliationRef = &ref
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
