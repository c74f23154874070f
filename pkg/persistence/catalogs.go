package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rivieraros/apcore/pkg/coding"
	"github.com/rivieraros/apcore/pkg/domain"
)

// UpsertEntityProfile inserts or updates an entity profile (C4 reads
// these; they are maintained out of band, not by the workflow).
func (s *Store) UpsertEntityProfile(ctx context.Context, e domain.EntityProfile) error {
	aliases, err := json.Marshal(e.Aliases)
	if err != nil {
		return fmt.Errorf("persistence: marshal aliases: %w", err)
	}
	dims, err := json.Marshal(e.DefaultDimensions)
	if err != nil {
		return fmt.Errorf("persistence: marshal default_dimensions: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO entity_profiles (entity_id, entity_code, name, aliases, default_dimensions, is_active)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (entity_id) DO UPDATE SET
			entity_code = excluded.entity_code, name = excluded.name,
			aliases = excluded.aliases, default_dimensions = excluded.default_dimensions,
			is_active = excluded.is_active
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err = s.db.ExecContext(ctx, query, e.EntityID, e.EntityCode, e.Name, string(aliases), string(dims), e.IsActive)
	if err != nil {
		return fmt.Errorf("persistence: upsert entity profile %s: %w", e.EntityID, err)
	}
	return nil
}

// ListActiveEntityProfiles returns every active entity profile, the
// candidate pool C4 scores against.
func (s *Store) ListActiveEntityProfiles(ctx context.Context) ([]domain.EntityProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id, entity_code, name, aliases, default_dimensions, is_active FROM entity_profiles WHERE is_active = true`)
	if err != nil {
		return nil, fmt.Errorf("persistence: list entity profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.EntityProfile
	for rows.Next() {
		var e domain.EntityProfile
		var aliases, dims string
		if err := rows.Scan(&e.EntityID, &e.EntityCode, &e.Name, &aliases, &dims, &e.IsActive); err != nil {
			return nil, fmt.Errorf("persistence: scan entity profile: %w", err)
		}
		if err := json.Unmarshal([]byte(aliases), &e.Aliases); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal aliases: %w", err)
		}
		if err := json.Unmarshal([]byte(dims), &e.DefaultDimensions); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal default_dimensions: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAllEntityProfiles returns every entity profile regardless of
// is_active, for the read-only `apctl entities list` inspector
// (SPEC_FULL.md §3), which should show inactive entities too rather than
// silently hiding them the way C4's candidate pool does.
func (s *Store) ListAllEntityProfiles(ctx context.Context) ([]domain.EntityProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id, entity_code, name, aliases, default_dimensions, is_active FROM entity_profiles`)
	if err != nil {
		return nil, fmt.Errorf("persistence: list all entity profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.EntityProfile
	for rows.Next() {
		var e domain.EntityProfile
		var aliases, dims string
		if err := rows.Scan(&e.EntityID, &e.EntityCode, &e.Name, &aliases, &dims, &e.IsActive); err != nil {
			return nil, fmt.Errorf("persistence: scan entity profile: %w", err)
		}
		if err := json.Unmarshal([]byte(aliases), &e.Aliases); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal aliases: %w", err)
		}
		if err := json.Unmarshal([]byte(dims), &e.DefaultDimensions); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal default_dimensions: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertRoutingKey inserts or updates a routing key (C4 signal table).
func (s *Store) UpsertRoutingKey(ctx context.Context, k domain.RoutingKey) error {
	query := fmt.Sprintf(`
		INSERT INTO routing_keys (key_type, key_value, entity_id, confidence, priority)
		VALUES (%s, %s, %s, %s, %s)
		ON CONFLICT (key_type, key_value, entity_id) DO UPDATE SET
			confidence = excluded.confidence, priority = excluded.priority
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	_, err := s.db.ExecContext(ctx, query, string(k.KeyType), k.KeyValue, k.EntityID, string(k.Confidence), k.Priority)
	if err != nil {
		return fmt.Errorf("persistence: upsert routing key %s/%s: %w", k.KeyType, k.KeyValue, err)
	}
	return nil
}

// ListRoutingKeysByType returns all routing keys of a given type, for
// lookup by key value in C4.
func (s *Store) ListRoutingKeysByType(ctx context.Context, keyType domain.RoutingKeyType) ([]domain.RoutingKey, error) {
	query := fmt.Sprintf(`SELECT key_type, key_value, entity_id, confidence, priority FROM routing_keys WHERE key_type = %s`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, string(keyType))
	if err != nil {
		return nil, fmt.Errorf("persistence: list routing keys %s: %w", keyType, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.RoutingKey
	for rows.Next() {
		var k domain.RoutingKey
		var kt, conf string
		if err := rows.Scan(&kt, &k.KeyValue, &k.EntityID, &conf, &k.Priority); err != nil {
			return nil, fmt.Errorf("persistence: scan routing key: %w", err)
		}
		k.KeyType = domain.RoutingKeyType(kt)
		k.Confidence = domain.Confidence(conf)
		out = append(out, k)
	}
	return out, rows.Err()
}

// UpsertVendorAlias records a confirmed or learned vendor-name alias
// (C5's confirm_match side effect, spec.md §4.5).
func (s *Store) UpsertVendorAlias(ctx context.Context, a domain.VendorAlias) error {
	query := fmt.Sprintf(`
		INSERT INTO vendor_aliases (customer_id, entity_id, alias_normalized, vendor_id, vendor_number, vendor_name)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (entity_id, alias_normalized) DO UPDATE SET
			customer_id = excluded.customer_id, vendor_id = excluded.vendor_id,
			vendor_number = excluded.vendor_number, vendor_name = excluded.vendor_name
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err := s.db.ExecContext(ctx, query, nullString(a.CustomerID), a.EntityID, a.AliasNormalized, a.VendorID, nullString(a.VendorNumber), a.VendorName)
	if err != nil {
		return fmt.Errorf("persistence: upsert vendor alias %s/%s: %w", a.EntityID, a.AliasNormalized, err)
	}
	return nil
}

// FindVendorAlias looks up an exact normalized-name alias for an entity.
func (s *Store) FindVendorAlias(ctx context.Context, entityID, aliasNormalized string) (domain.VendorAlias, bool, error) {
	query := fmt.Sprintf(`
		SELECT customer_id, entity_id, alias_normalized, vendor_id, vendor_number, vendor_name
		FROM vendor_aliases WHERE entity_id = %s AND alias_normalized = %s`, s.ph(1), s.ph(2))
	row := s.db.QueryRowContext(ctx, query, entityID, aliasNormalized)
	var a domain.VendorAlias
	var customerID, vendorNumber sql.NullString
	err := row.Scan(&customerID, &a.EntityID, &a.AliasNormalized, &a.VendorID, &vendorNumber, &a.VendorName)
	if err == sql.ErrNoRows {
		return domain.VendorAlias{}, false, nil
	}
	if err != nil {
		return domain.VendorAlias{}, false, fmt.Errorf("persistence: find vendor alias %s/%s: %w", entityID, aliasNormalized, err)
	}
	a.CustomerID = customerID.String
	a.VendorNumber = vendorNumber.String
	return a, true, nil
}

// ListVendorProfilesByEntity returns the vendor catalog rows the
// VendorResolver scores against for one entity. Vendor profiles are
// projected from vendor_aliases' distinct vendor identities until a
// dedicated catalog sync populates a richer source.
func (s *Store) ListVendorProfilesByEntity(ctx context.Context, entityID string) ([]domain.VendorProfile, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT vendor_id, vendor_number, vendor_name, entity_id
		FROM vendor_aliases WHERE entity_id = %s`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("persistence: list vendor profiles for %s: %w", entityID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.VendorProfile
	for rows.Next() {
		var v domain.VendorProfile
		var vendorNumber sql.NullString
		if err := rows.Scan(&v.VendorID, &vendorNumber, &v.VendorName, &v.EntityID); err != nil {
			return nil, fmt.Errorf("persistence: scan vendor profile: %w", err)
		}
		v.VendorNumber = vendorNumber.String
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpsertGLMapping inserts or updates a GL mapping row (C6's mapping
// table, spec.md §4.6).
func (s *Store) UpsertGLMapping(ctx context.Context, m domain.GLMapping) error {
	query := fmt.Sprintf(`
		INSERT INTO gl_mappings (level, entity_id, vendor_id, category, gl_account_ref, ruleset_version)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (level, entity_id, vendor_id, category, ruleset_version) DO UPDATE SET
			gl_account_ref = excluded.gl_account_ref
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err := s.db.ExecContext(ctx, query, string(m.Level), m.EntityID, m.VendorID, m.Category, m.GLAccountRef, m.RulesetVersion)
	if err != nil {
		return fmt.Errorf("persistence: upsert gl mapping %s/%s/%s/%s: %w", m.Level, m.EntityID, m.VendorID, m.Category, err)
	}
	return nil
}

// FindGLMapping looks up the mapping row at a specific precedence level,
// resolving to the highest ruleset_version snapshot when more than one
// exists for the same level/entity/vendor/category key. C6 calls this
// once per level, in VENDOR -> ENTITY -> GLOBAL order, taking the first
// hit (spec.md §4.6).
func (s *Store) FindGLMapping(ctx context.Context, level domain.MappingLevel, entityID, vendorID, category string) (domain.GLMapping, bool, error) {
	query := fmt.Sprintf(`
		SELECT level, entity_id, vendor_id, category, gl_account_ref, ruleset_version
		FROM gl_mappings WHERE level = %s AND entity_id = %s AND vendor_id = %s AND category = %s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	rows, err := s.db.QueryContext(ctx, query, string(level), entityID, vendorID, category)
	if err != nil {
		return domain.GLMapping{}, false, fmt.Errorf("persistence: find gl mapping: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byVersion := map[string]domain.GLMapping{}
	var versions []string
	for rows.Next() {
		var m domain.GLMapping
		var lvl string
		if err := rows.Scan(&lvl, &m.EntityID, &m.VendorID, &m.Category, &m.GLAccountRef, &m.RulesetVersion); err != nil {
			return domain.GLMapping{}, false, fmt.Errorf("persistence: scan gl mapping: %w", err)
		}
		m.Level = domain.MappingLevel(lvl)
		byVersion[m.RulesetVersion] = m
		versions = append(versions, m.RulesetVersion)
	}
	if err := rows.Err(); err != nil {
		return domain.GLMapping{}, false, fmt.Errorf("persistence: find gl mapping: %w", err)
	}
	if len(versions) == 0 {
		return domain.GLMapping{}, false, nil
	}
	return byVersion[coding.LatestRulesetVersion(versions)], true, nil
}

// UpsertDimensionRule inserts or updates a dimension derivation rule.
func (s *Store) UpsertDimensionRule(ctx context.Context, r domain.DimensionRule) error {
	params, err := json.Marshal(r.TransformParams)
	if err != nil {
		return fmt.Errorf("persistence: marshal transform_params: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO dimension_rules (entity_id, dimension_code, source_field, transform, transform_params, default_value, is_required, ruleset_version)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (entity_id, dimension_code, ruleset_version) DO UPDATE SET
			source_field = excluded.source_field, transform = excluded.transform,
			transform_params = excluded.transform_params, default_value = excluded.default_value,
			is_required = excluded.is_required
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))
	_, err = s.db.ExecContext(ctx, query, r.EntityID, r.DimensionCode, r.SourceField, r.Transform, string(params), nullString(r.DefaultValue), r.IsRequired, r.RulesetVersion)
	if err != nil {
		return fmt.Errorf("persistence: upsert dimension rule %s/%s: %w", r.EntityID, r.DimensionCode, err)
	}
	return nil
}

// ListDimensionRulesByEntity returns entity-specific rules union'd with
// global rules (entity_id = ''), entity-specific taking precedence. When
// several ruleset_version snapshots exist for the same (entity_id,
// dimension_code) — entity-specific or global — C6 keeps only the one
// with the highest semver ruleset_version.
func (s *Store) ListDimensionRulesByEntity(ctx context.Context, entityID string) ([]domain.DimensionRule, error) {
	query := fmt.Sprintf(`
		SELECT entity_id, dimension_code, source_field, transform, transform_params, default_value, is_required, ruleset_version
		FROM dimension_rules WHERE entity_id = %s OR entity_id = ''
		ORDER BY CASE WHEN entity_id = '' THEN 1 ELSE 0 END`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("persistence: list dimension rules for %s: %w", entityID, err)
	}
	defer func() { _ = rows.Close() }()

	type scoped struct {
		lockedEntityID string
		versions       []string
		byVer          map[string]domain.DimensionRule
	}
	seen := map[string]bool{} // dimension_code already locked to entity-specific vs global
	byCode := map[string]*scoped{}
	var order []string
	for rows.Next() {
		var r domain.DimensionRule
		var params, defaultValue sql.NullString
		if err := rows.Scan(&r.EntityID, &r.DimensionCode, &r.SourceField, &r.Transform, &params, &defaultValue, &r.IsRequired, &r.RulesetVersion); err != nil {
			return nil, fmt.Errorf("persistence: scan dimension rule: %w", err)
		}
		if seen[r.DimensionCode] && byCode[r.DimensionCode].lockedEntityID != r.EntityID {
			continue // entity-specific already won; drop the lower-precedence global row
		}
		if params.Valid {
			if err := json.Unmarshal([]byte(params.String), &r.TransformParams); err != nil {
				return nil, fmt.Errorf("persistence: unmarshal transform_params: %w", err)
			}
		}
		r.DefaultValue = defaultValue.String

		entry, ok := byCode[r.DimensionCode]
		if !ok {
			entry = &scoped{byVer: map[string]domain.DimensionRule{}}
			byCode[r.DimensionCode] = entry
			order = append(order, r.DimensionCode)
		}
		seen[r.DimensionCode] = true
		entry.lockedEntityID = r.EntityID
		entry.versions = append(entry.versions, r.RulesetVersion)
		entry.byVer[r.RulesetVersion] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.DimensionRule, 0, len(order))
	for _, code := range order {
		entry := byCode[code]
		out = append(out, entry.byVer[coding.LatestRulesetVersion(entry.versions)])
	}
	return out, nil
}
