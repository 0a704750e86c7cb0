package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// PostgresConfig configures the PostgreSQL-backed store.
type PostgresConfig struct {
	URL            string
	Schema         string
	MinConnections int
	MaxConnections int
	ConnectTimeout time.Duration
	MaxLifetime    time.Duration
	SSLMode        string // disable|prefer|require, appended when the URL has none
	AutoMigrate    bool
}

// DefaultPostgresConfig targets a local instance with migrations on.
func DefaultPostgresConfig(url string) PostgresConfig {
	return PostgresConfig{
		URL:            url,
		Schema:         "ioc",
		MaxConnections: 10,
		ConnectTimeout: 5 * time.Second,
		AutoMigrate:    true,
	}
}

// PostgresStore maps each entity onto one table under a configurable
// schema, with (tenant_id, id) composite keys and JSONB for the nested
// structures. The only adapter advertising transactions.
type PostgresStore struct {
	cfg    PostgresConfig
	pool   *pgxpool.Pool
	closed bool
	ops    opRecorder
}

// NewPostgresStore validates configuration; the pool is built at Initialize.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.URL == "" {
		return nil, validationErr("url is required", nil)
	}
	if cfg.Schema == "" {
		cfg.Schema = "ioc"
	}
	return &PostgresStore{cfg: cfg}, nil
}

func (p *PostgresStore) table(name string) string {
	return p.cfg.Schema + "." + name
}

func (p *PostgresStore) checkOpen() error {
	if p.closed || p.pool == nil {
		return connectionErr("store is closed", nil)
	}
	return nil
}

func wrapPgErr(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return internalErr("deadline exceeded: "+msg, err)
	}
	return connectionErr(msg, err)
}

func (p *PostgresStore) Initialize(ctx context.Context) error {
	if p.pool == nil {
		url := p.cfg.URL
		if p.cfg.SSLMode != "" && !strings.Contains(url, "sslmode=") {
			sep := "?"
			if strings.Contains(url, "?") {
				sep = "&"
			}
			url += sep + "sslmode=" + p.cfg.SSLMode
		}

		poolCfg, err := pgxpool.ParseConfig(url)
		if err != nil {
			return validationErr("invalid postgres url", err)
		}
		if p.cfg.MaxConnections > 0 {
			poolCfg.MaxConns = int32(p.cfg.MaxConnections)
		}
		if p.cfg.MinConnections > 0 {
			poolCfg.MinConns = int32(p.cfg.MinConnections)
		}
		if p.cfg.ConnectTimeout > 0 {
			poolCfg.ConnConfig.ConnectTimeout = p.cfg.ConnectTimeout
		}
		if p.cfg.MaxLifetime > 0 {
			poolCfg.MaxConnLifetime = p.cfg.MaxLifetime
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return wrapPgErr("creating connection pool", err)
		}
		p.pool = pool
	}

	if err := p.pool.Ping(ctx); err != nil {
		return wrapPgErr("pinging postgres", err)
	}

	if p.cfg.AutoMigrate {
		for _, stmt := range postgresDDL(p.cfg.Schema) {
			if _, err := p.pool.Exec(ctx, stmt); err != nil {
				return wrapPgErr("running migration", err)
			}
		}
	}
	p.closed = false
	return nil
}

func (p *PostgresStore) Close(ctx context.Context) error {
	p.closed = true
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func (p *PostgresStore) HealthCheck(ctx context.Context) bool {
	if p.closed || p.pool == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return p.pool.Ping(ctx) == nil
}

func (p *PostgresStore) GetMetrics(ctx context.Context, tenant *models.TenantContext) (*StoreMetrics, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	metrics := p.ops.snapshot()
	if p.pool != nil {
		stat := p.pool.Stat()
		metrics.ActiveConnections = int(stat.AcquiredConns())
		metrics.IdleConnections = int(stat.IdleConns())
	}
	return &metrics, nil
}

func (p *PostgresStore) GetIOCCount(ctx context.Context, tenant *models.TenantContext) (int64, error) {
	if err := tenant.Validate(); err != nil {
		return 0, validationErr("invalid tenant context", err)
	}
	if err := p.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE tenant_id = $1", p.table("ioc"))
	if err := p.pool.QueryRow(ctx, query, tenant.TenantID).Scan(&count); err != nil {
		return 0, wrapPgErr("counting iocs", err)
	}
	return count, nil
}

// ensureTenant upserts the tenant row so foreign keys hold. Tenants are
// implicit: created on the first insert that carries a new id.
func (p *PostgresStore) ensureTenant(ctx context.Context, tenantID string) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (tenant_id) VALUES ($1) ON CONFLICT (tenant_id) DO NOTHING",
		p.table("tenants"))
	if _, err := p.pool.Exec(ctx, query, tenantID); err != nil {
		return wrapPgErr("upserting tenant", err)
	}
	return nil
}

func (p *PostgresStore) StoreIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return "", validationErr("invalid ioc", err)
	}
	if err = p.checkOpen(); err != nil {
		return "", err
	}
	if err = p.ensureTenant(ctx, tenant.TenantID); err != nil {
		return "", err
	}

	contextJSON, err := json.Marshal(ioc.Context)
	if err != nil {
		return "", serializationErr("encoding ioc context", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(tenant_id, id, indicator_type, value, confidence, severity, source, created_at, tags, context, raw_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			indicator_type = EXCLUDED.indicator_type,
			value = EXCLUDED.value,
			confidence = EXCLUDED.confidence,
			severity = EXCLUDED.severity,
			source = EXCLUDED.source,
			created_at = EXCLUDED.created_at,
			tags = EXCLUDED.tags,
			context = EXCLUDED.context,
			raw_data = EXCLUDED.raw_data`, p.table("ioc"))

	_, err = p.pool.Exec(ctx, query,
		tenant.TenantID, ioc.ID, string(ioc.IndicatorType), ioc.Value, ioc.Confidence,
		string(ioc.Severity), nullableString(ioc.Source), ioc.Timestamp, ioc.Tags, contextJSON, ioc.RawData)
	if err != nil {
		return "", wrapPgErr("inserting ioc", err)
	}
	return ioc.ID, nil
}

// iocColumns is the select list scanIOCRow expects.
const iocColumns = "id, indicator_type, value, confidence, severity, source, created_at, tags, context, raw_data"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIOCRow(row rowScanner) (*models.IOC, error) {
	var (
		ioc         models.IOC
		source      *string
		contextJSON []byte
	)
	err := row.Scan(&ioc.ID, &ioc.IndicatorType, &ioc.Value, &ioc.Confidence,
		&ioc.Severity, &source, &ioc.Timestamp, &ioc.Tags, &contextJSON, &ioc.RawData)
	if err != nil {
		return nil, err
	}
	if source != nil {
		ioc.Source = *source
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &ioc.Context); err != nil {
			return nil, serializationErr("decoding ioc context", err)
		}
	}
	return &ioc, nil
}

func (p *PostgresStore) GetIOC(ctx context.Context, id string, tenant *models.TenantContext) (_ *models.IOC, err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if !tenant.HasPermission("ioc:read") {
		return nil, permissionErr("missing ioc:read permission")
	}
	if err = p.checkOpen(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant_id = $1 AND id = $2", iocColumns, p.table("ioc"))
	ioc, err := scanIOCRow(p.pool.QueryRow(ctx, query, tenant.TenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if Kind(err) == KindSerialization {
			return nil, err
		}
		return nil, wrapPgErr("reading ioc", err)
	}
	return ioc, nil
}

func (p *PostgresStore) UpdateIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return validationErr("invalid ioc", err)
	}
	if err = p.checkOpen(); err != nil {
		return err
	}

	contextJSON, err := json.Marshal(ioc.Context)
	if err != nil {
		return serializationErr("encoding ioc context", err)
	}

	query := fmt.Sprintf(`UPDATE %s SET
		indicator_type = $3, value = $4, confidence = $5, severity = $6,
		source = $7, created_at = $8, tags = $9, context = $10, raw_data = $11
		WHERE tenant_id = $1 AND id = $2`, p.table("ioc"))

	tag, err := p.pool.Exec(ctx, query,
		tenant.TenantID, ioc.ID, string(ioc.IndicatorType), ioc.Value, ioc.Confidence,
		string(ioc.Severity), nullableString(ioc.Source), ioc.Timestamp, ioc.Tags, contextJSON, ioc.RawData)
	if err != nil {
		return wrapPgErr("updating ioc", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("ioc " + ioc.ID + " not found")
	}
	return nil
}

func (p *PostgresStore) DeleteIOC(ctx context.Context, id string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = p.checkOpen(); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE tenant_id = $1 AND id = $2", p.table("ioc"))
	tag, err := p.pool.Exec(ctx, query, tenant.TenantID, id)
	if err != nil {
		return wrapPgErr("deleting ioc", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("ioc " + id + " not found")
	}
	return nil
}

// buildSearchQuery translates criteria into a parameterized WHERE clause.
func (p *PostgresStore) buildSearchQuery(criteria *models.IOCSearchCriteria, tenantID string) (where string, args []any) {
	clauses := []string{"tenant_id = $1"}
	args = []any{tenantID}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if criteria != nil {
		if criteria.IndicatorType != nil {
			clauses = append(clauses, "indicator_type = "+arg(string(*criteria.IndicatorType)))
		}
		if criteria.ValuePattern != "" {
			clauses = append(clauses, "value ILIKE "+arg("%"+criteria.ValuePattern+"%"))
		}
		if criteria.Source != "" {
			clauses = append(clauses, "source = "+arg(criteria.Source))
		}
		if criteria.MinConfidence != nil {
			clauses = append(clauses, "confidence >= "+arg(*criteria.MinConfidence))
		}
		if len(criteria.Tags) > 0 {
			clauses = append(clauses, "tags @> "+arg(criteria.Tags))
		}
		if criteria.CreatedAfter != nil {
			clauses = append(clauses, "created_at >= "+arg(*criteria.CreatedAfter))
		}
		if criteria.CreatedBefore != nil {
			clauses = append(clauses, "created_at <= "+arg(*criteria.CreatedBefore))
		}
	}
	return strings.Join(clauses, " AND "), args
}

func (p *PostgresStore) SearchIOCs(ctx context.Context, criteria *models.IOCSearchCriteria, tenant *models.TenantContext) (_ *models.SearchResults[*models.IOC], err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = p.checkOpen(); err != nil {
		return nil, err
	}

	where, args := p.buildSearchQuery(criteria, tenant.TenantID)
	limit := criteria.EffectiveLimit()
	offset := criteria.EffectiveOffset()

	var total int
	countQuery := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", p.table("ioc"), where)
	if err = p.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, wrapPgErr("counting search matches", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY id LIMIT %d OFFSET %d",
		iocColumns, p.table("ioc"), where, limit, offset)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapPgErr("searching iocs", err)
	}
	defer rows.Close()

	items := make([]*models.IOC, 0, limit)
	for rows.Next() {
		ioc, scanErr := scanIOCRow(rows)
		if scanErr != nil {
			return nil, wrapPgErr("scanning search row", scanErr)
		}
		items = append(items, ioc)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapPgErr("iterating search rows", err)
	}

	return &models.SearchResults[*models.IOC]{
		Items:      items,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    offset+len(items) < total,
	}, nil
}

func (p *PostgresStore) BulkStoreIOCs(ctx context.Context, iocs []*models.IOC, tenant *models.TenantContext) (*models.BulkOperationResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.BulkOperationResult{TotalRequested: len(iocs)}

	for _, ioc := range iocs {
		if _, err := p.StoreIOC(ctx, ioc, tenant); err != nil {
			if Kind(err) == KindConnection {
				return nil, err
			}
			result.RecordFailure(ioc.ID)
			continue
		}
		result.RecordSuccess()
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}

func (p *PostgresStore) ListIOCIDs(ctx context.Context, tenant *models.TenantContext) (_ []string, err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = p.checkOpen(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE tenant_id = $1 ORDER BY id", p.table("ioc"))
	rows, err := p.pool.Query(ctx, query, tenant.TenantID)
	if err != nil {
		return nil, wrapPgErr("listing ioc ids", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, wrapPgErr("scanning ioc id", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapPgErr("iterating ioc ids", err)
	}
	return ids, nil
}

func (p *PostgresStore) StoreResult(ctx context.Context, result *models.IOCResult, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = result.Validate(); err != nil {
		return validationErr("invalid result", err)
	}
	if err = p.checkOpen(); err != nil {
		return err
	}
	if err = p.ensureTenant(ctx, tenant.TenantID); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(tenant_id, ioc_id, detection_verdict, intelligence_summary, analysis_summary, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, ioc_id) DO UPDATE SET
			detection_verdict = EXCLUDED.detection_verdict,
			intelligence_summary = EXCLUDED.intelligence_summary,
			analysis_summary = EXCLUDED.analysis_summary,
			processed_at = EXCLUDED.processed_at`, p.table("ioc_result"))

	_, err = p.pool.Exec(ctx, query, tenant.TenantID, result.IOCID, result.DetectionVerdict,
		result.IntelligenceSummary, result.AnalysisSummary, result.ProcessingTimestamp)
	if err != nil {
		return wrapPgErr("inserting result", err)
	}
	return nil
}

func (p *PostgresStore) GetResult(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.IOCResult, err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = p.checkOpen(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT ioc_id, detection_verdict, intelligence_summary, analysis_summary, processed_at
		FROM %s WHERE tenant_id = $1 AND ioc_id = $2`, p.table("ioc_result"))

	var result models.IOCResult
	err = p.pool.QueryRow(ctx, query, tenant.TenantID, iocID).Scan(
		&result.IOCID, &result.DetectionVerdict, &result.IntelligenceSummary,
		&result.AnalysisSummary, &result.ProcessingTimestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapPgErr("reading result", err)
	}
	return &result, nil
}

func (p *PostgresStore) DeleteResult(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = p.checkOpen(); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE tenant_id = $1 AND ioc_id = $2", p.table("ioc_result"))
	tag, err := p.pool.Exec(ctx, query, tenant.TenantID, iocID)
	if err != nil {
		return wrapPgErr("deleting result", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("result for ioc " + iocID + " not found")
	}
	return nil
}

func (p *PostgresStore) StoreEnrichedIOC(ctx context.Context, enriched *models.EnrichedIOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = enriched.Validate(); err != nil {
		return validationErr("invalid enriched ioc", err)
	}
	if err = p.checkOpen(); err != nil {
		return err
	}
	if err = p.ensureTenant(ctx, tenant.TenantID); err != nil {
		return err
	}

	iocJSON, err := json.Marshal(enriched.IOC)
	if err != nil {
		return serializationErr("encoding enriched ioc", err)
	}
	dataJSON, err := json.Marshal(enriched.EnrichmentData)
	if err != nil {
		return serializationErr("encoding enrichment data", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(tenant_id, ioc_id, ioc, enrichment_data, enrichment_sources, enrichment_confidence, enriched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, ioc_id) DO UPDATE SET
			ioc = EXCLUDED.ioc,
			enrichment_data = EXCLUDED.enrichment_data,
			enrichment_sources = EXCLUDED.enrichment_sources,
			enrichment_confidence = EXCLUDED.enrichment_confidence,
			enriched_at = EXCLUDED.enriched_at`, p.table("enriched_ioc"))

	_, err = p.pool.Exec(ctx, query, tenant.TenantID, enriched.IOC.ID, iocJSON, dataJSON,
		enriched.EnrichmentSources, enriched.EnrichmentConfidence, enriched.EnrichedAt)
	if err != nil {
		return wrapPgErr("inserting enriched ioc", err)
	}
	return nil
}

func (p *PostgresStore) GetEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.EnrichedIOC, err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = p.checkOpen(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT ioc, enrichment_data, enrichment_sources, enrichment_confidence, enriched_at
		FROM %s WHERE tenant_id = $1 AND ioc_id = $2`, p.table("enriched_ioc"))

	var (
		enriched models.EnrichedIOC
		iocJSON  []byte
		dataJSON []byte
	)
	err = p.pool.QueryRow(ctx, query, tenant.TenantID, iocID).Scan(
		&iocJSON, &dataJSON, &enriched.EnrichmentSources, &enriched.EnrichmentConfidence, &enriched.EnrichedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapPgErr("reading enriched ioc", err)
	}

	if err = json.Unmarshal(iocJSON, &enriched.IOC); err != nil {
		return nil, serializationErr("decoding enriched ioc", err)
	}
	if len(dataJSON) > 0 {
		if err = json.Unmarshal(dataJSON, &enriched.EnrichmentData); err != nil {
			return nil, serializationErr("decoding enrichment data", err)
		}
	}
	return &enriched, nil
}

func (p *PostgresStore) DeleteEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = p.checkOpen(); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE tenant_id = $1 AND ioc_id = $2", p.table("enriched_ioc"))
	tag, err := p.pool.Exec(ctx, query, tenant.TenantID, iocID)
	if err != nil {
		return wrapPgErr("deleting enriched ioc", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("enriched ioc " + iocID + " not found")
	}
	return nil
}

func (p *PostgresStore) StoreCorrelation(ctx context.Context, corr *models.Correlation, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = corr.Validate(); err != nil {
		return "", validationErr("invalid correlation", err)
	}
	if err = p.checkOpen(); err != nil {
		return "", err
	}
	if err = p.ensureTenant(ctx, tenant.TenantID); err != nil {
		return "", err
	}

	// Referenced iocs must exist in-tenant at storage time; the check and
	// insert share a transaction so the view is consistent.
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", wrapPgErr("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	var present int
	existsQuery := fmt.Sprintf("SELECT count(*) FROM %s WHERE tenant_id = $1 AND id = ANY($2)", p.table("ioc"))
	if err = tx.QueryRow(ctx, existsQuery, tenant.TenantID, corr.CorrelatedIOCs).Scan(&present); err != nil {
		return "", wrapPgErr("checking correlated iocs", err)
	}
	if present != len(corr.CorrelatedIOCs) {
		return "", validationErr("one or more correlated iocs do not exist in tenant", nil)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(tenant_id, id, correlated_iocs, correlation_type, strength, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			correlated_iocs = EXCLUDED.correlated_iocs,
			correlation_type = EXCLUDED.correlation_type,
			strength = EXCLUDED.strength,
			evidence = EXCLUDED.evidence,
			created_at = EXCLUDED.created_at`, p.table("correlation"))

	_, err = tx.Exec(ctx, query, tenant.TenantID, corr.ID, corr.CorrelatedIOCs,
		corr.CorrelationType, corr.Strength, corr.Evidence, corr.Timestamp)
	if err != nil {
		return "", wrapPgErr("inserting correlation", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return "", wrapPgErr("committing correlation", err)
	}
	return corr.ID, nil
}

func (p *PostgresStore) GetCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (_ []*models.Correlation, err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = p.checkOpen(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, correlated_iocs, correlation_type, strength, evidence, created_at
		FROM %s WHERE tenant_id = $1 AND correlated_iocs @> ARRAY[$2::text] ORDER BY id`, p.table("correlation"))

	rows, err := p.pool.Query(ctx, query, tenant.TenantID, iocID)
	if err != nil {
		return nil, wrapPgErr("querying correlations", err)
	}
	defer rows.Close()

	matches := make([]*models.Correlation, 0)
	for rows.Next() {
		var corr models.Correlation
		if err = rows.Scan(&corr.ID, &corr.CorrelatedIOCs, &corr.CorrelationType,
			&corr.Strength, &corr.Evidence, &corr.Timestamp); err != nil {
			return nil, wrapPgErr("scanning correlation", err)
		}
		copied := corr
		matches = append(matches, &copied)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapPgErr("iterating correlations", err)
	}
	return matches, nil
}

func (p *PostgresStore) DeleteCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { p.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = p.checkOpen(); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE tenant_id = $1 AND correlated_iocs @> ARRAY[$2::text]", p.table("correlation"))
	tag, err := p.pool.Exec(ctx, query, tenant.TenantID, iocID)
	if err != nil {
		return wrapPgErr("deleting correlations", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundErr("no correlations mention ioc " + iocID)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (p *PostgresStore) StoreType() StoreType         { return StoreTypePostgres }
func (p *PostgresStore) SupportsMultiTenancy() bool   { return true }
func (p *PostgresStore) SupportsFullTextSearch() bool { return false }
func (p *PostgresStore) SupportsTransactions() bool   { return true }
func (p *PostgresStore) SupportsBulkOperations() bool { return true }
func (p *PostgresStore) MaxBatchSize() int            { return 1000 }
