package store

import "fmt"

// postgresDDL returns the idempotent migration statements for one schema.
// Composite primary keys on (tenant_id, id) enforce tenant isolation at
// the storage layer; JSONB columns hold the nested domain structures.
func postgresDDL(schema string) []string {
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.tenants (
			tenant_id  TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ioc (
			tenant_id      TEXT NOT NULL REFERENCES %s.tenants(tenant_id),
			id             TEXT NOT NULL,
			indicator_type TEXT NOT NULL,
			value          TEXT NOT NULL,
			confidence     DOUBLE PRECISION NOT NULL,
			severity       TEXT NOT NULL,
			source         TEXT,
			created_at     TIMESTAMPTZ NOT NULL,
			tags           TEXT[] NOT NULL DEFAULT '{}',
			context        JSONB NOT NULL DEFAULT '{}',
			raw_data       BYTEA,
			PRIMARY KEY (tenant_id, id)
		)`, schema, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ioc_result (
			tenant_id            TEXT NOT NULL REFERENCES %s.tenants(tenant_id),
			ioc_id               TEXT NOT NULL,
			detection_verdict    TEXT NOT NULL,
			intelligence_summary TEXT,
			analysis_summary     TEXT,
			processed_at         TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, ioc_id)
		)`, schema, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.enriched_ioc (
			tenant_id             TEXT NOT NULL REFERENCES %s.tenants(tenant_id),
			ioc_id                TEXT NOT NULL,
			ioc                   JSONB NOT NULL,
			enrichment_data       JSONB NOT NULL DEFAULT '{}',
			enrichment_sources    TEXT[] NOT NULL DEFAULT '{}',
			enrichment_confidence DOUBLE PRECISION NOT NULL,
			enriched_at           TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, ioc_id)
		)`, schema, schema),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.correlation (
			tenant_id        TEXT NOT NULL REFERENCES %s.tenants(tenant_id),
			id               TEXT NOT NULL,
			correlated_iocs  TEXT[] NOT NULL,
			correlation_type TEXT NOT NULL,
			strength         DOUBLE PRECISION NOT NULL,
			evidence         TEXT[] NOT NULL DEFAULT '{}',
			created_at       TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, id)
		)`, schema, schema),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_ioc_tenant_type ON %s.ioc (tenant_id, indicator_type)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_ioc_tenant_confidence ON %s.ioc (tenant_id, confidence)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_ioc_tenant_source ON %s.ioc (tenant_id, source)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_ioc_tenant_created ON %s.ioc (tenant_id, created_at)`, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_correlation_iocs ON %s.correlation USING GIN (correlated_iocs)`, schema),
	}
}
