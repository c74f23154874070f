package persistence

// schemaStatements returns the CREATE TABLE IF NOT EXISTS statements for
// every table spec.md §4.2 names. JSON-shaped columns are stored as TEXT
// in both dialects — sqlite has no native JSON type and Store never
// queries inside these columns, only round-trips them through
// encoding/json, so TEXT is sufficient and dialect-neutral.
func schemaStatements(postgres bool) []string {
	boolType := "INTEGER"
	if postgres {
		boolType = "BOOLEAN"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS packages (
			package_id TEXT PRIMARY KEY,
			feedlot_family TEXT NOT NULL,
			status TEXT NOT NULL,
			document_refs TEXT NOT NULL,
			statement_ref TEXT,
			reconciliation_ref TEXT,
			total_invoices INTEGER NOT NULL DEFAULT 0,
			extracted_invoices INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			package_id TEXT NOT NULL,
			invoice_number TEXT NOT NULL,
			lot_number TEXT,
			invoice_date TIMESTAMP,
			total_amount TEXT,
			status TEXT NOT NULL,
			invoice_ref TEXT NOT NULL,
			validation_ref TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (package_id, invoice_number)
		)`,
		`CREATE TABLE IF NOT EXISTS progress_events (
			package_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			step TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (package_id, ordinal)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			event_id TEXT PRIMARY KEY,
			severity TEXT NOT NULL,
			kind TEXT NOT NULL,
			package_id TEXT,
			invoice_number TEXT,
			workflow_id TEXT,
			activity_name TEXT,
			details TEXT,
			actor TEXT NOT NULL,
			"timestamp" TIMESTAMP NOT NULL,
			artifact_refs TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS entity_profiles (
			entity_id TEXT PRIMARY KEY,
			entity_code TEXT NOT NULL,
			name TEXT NOT NULL,
			aliases TEXT,
			default_dimensions TEXT,
			is_active ` + boolType + ` NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS routing_keys (
			key_type TEXT NOT NULL,
			key_value TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			confidence TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (key_type, key_value, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS vendor_aliases (
			customer_id TEXT,
			entity_id TEXT NOT NULL,
			alias_normalized TEXT NOT NULL,
			vendor_id TEXT NOT NULL,
			vendor_number TEXT,
			vendor_name TEXT NOT NULL,
			PRIMARY KEY (entity_id, alias_normalized)
		)`,
		`CREATE TABLE IF NOT EXISTS gl_mappings (
			level TEXT NOT NULL,
			entity_id TEXT NOT NULL DEFAULT '',
			vendor_id TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			gl_account_ref TEXT NOT NULL,
			ruleset_version TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (level, entity_id, vendor_id, category, ruleset_version)
		)`,
		`CREATE TABLE IF NOT EXISTS dimension_rules (
			entity_id TEXT NOT NULL DEFAULT '',
			dimension_code TEXT NOT NULL,
			source_field TEXT NOT NULL,
			transform TEXT NOT NULL,
			transform_params TEXT,
			default_value TEXT,
			is_required ` + boolType + ` NOT NULL DEFAULT FALSE,
			ruleset_version TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (entity_id, dimension_code, ruleset_version)
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_executions (
			workflow_id TEXT PRIMARY KEY,
			workflow_type TEXT NOT NULL,
			package_id TEXT,
			status TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			last_error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS activity_executions (
			workflow_id TEXT NOT NULL,
			activity_name TEXT NOT NULL,
			attempt_index INTEGER NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			result_ref TEXT,
			error TEXT,
			PRIMARY KEY (workflow_id, activity_name, attempt_index)
		)`,
	}
}
