package store

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// ElasticConfig configures the Elasticsearch-backed store.
type ElasticConfig struct {
	Hosts          []string
	IndexPrefix    string
	Username       string
	Password       string
	RequestTimeout time.Duration
	MaxRetries     int
	EnableSSL      bool
}

// DefaultElasticConfig targets a local single-node cluster.
func DefaultElasticConfig() ElasticConfig {
	return ElasticConfig{
		Hosts:          []string{"http://localhost:9200"},
		IndexPrefix:    "phantom_ioc_",
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
	}
}

// elasticIOCDoc is the indexed form of an indicator. Source is a pointer:
// older documents in the wild carry null and must read back cleanly.
type elasticIOCDoc struct {
	TenantID      string            `json:"tenant_id"`
	ID            string            `json:"id"`
	IndicatorType string            `json:"indicator_type"`
	Value         string            `json:"value"`
	Confidence    float64           `json:"confidence"`
	Severity      string            `json:"severity"`
	Source        *string           `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	Tags          []string          `json:"tags,omitempty"`
	Context       models.IOCContext `json:"context"`
	RawData       []byte            `json:"raw_data,omitempty"`
}

func elasticDocFromIOC(tenantID string, ioc *models.IOC) elasticIOCDoc {
	return elasticIOCDoc{
		TenantID:      tenantID,
		ID:            ioc.ID,
		IndicatorType: string(ioc.IndicatorType),
		Value:         ioc.Value,
		Confidence:    ioc.Confidence,
		Severity:      string(ioc.Severity),
		Source:        nullableString(ioc.Source),
		Timestamp:     ioc.Timestamp,
		Tags:          ioc.Tags,
		Context:       ioc.Context,
		RawData:       ioc.RawData,
	}
}

func (d *elasticIOCDoc) toModel() *models.IOC {
	ioc := &models.IOC{
		ID:            d.ID,
		IndicatorType: models.IOCType(d.IndicatorType),
		Value:         d.Value,
		Confidence:    d.Confidence,
		Severity:      models.Severity(d.Severity),
		Timestamp:     d.Timestamp,
		Tags:          d.Tags,
		Context:       d.Context,
		RawData:       d.RawData,
	}
	if d.Source != nil {
		ioc.Source = *d.Source
	}
	return ioc
}

// ElasticStore keeps one index per entity, prefixed, every document
// carrying tenant_id for filter queries. Documents are addressed as
// "{tenant}:{id}" so identical uuids in different tenants never collide.
type ElasticStore struct {
	cfg    ElasticConfig
	client *elasticsearch.Client
	closed bool
	ops    opRecorder
}

// NewElasticStore builds the client; the cluster is first reached at
// Initialize.
func NewElasticStore(cfg ElasticConfig) (*ElasticStore, error) {
	if len(cfg.Hosts) == 0 {
		return nil, validationErr("at least one host is required", nil)
	}
	if cfg.IndexPrefix == "" {
		cfg.IndexPrefix = "phantom_ioc_"
	}

	esCfg := elasticsearch.Config{
		Addresses:  cfg.Hosts,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.EnableSSL {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, connectionErr("building elasticsearch client", err)
	}
	return &ElasticStore{cfg: cfg, client: client}, nil
}

func (e *ElasticStore) index(kind string) string {
	return e.cfg.IndexPrefix + kind
}

func (e *ElasticStore) docID(tenantID, id string) string {
	return tenantID + ":" + id
}

func (e *ElasticStore) checkOpen() error {
	if e.closed {
		return connectionErr("store is closed", nil)
	}
	return nil
}

func (e *ElasticStore) reqCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// readBody drains and closes an API response.
func readBody(res *esapi.Response) ([]byte, error) {
	defer res.Body.Close()
	return io.ReadAll(res.Body)
}

func (e *ElasticStore) Initialize(ctx context.Context) error {
	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return connectionErr("pinging elasticsearch", err)
	}
	res.Body.Close()
	if res.IsError() {
		return connectionErr(fmt.Sprintf("elasticsearch ping returned %s", res.Status()), nil)
	}

	for _, kind := range []string{kindIOC, kindResult, kindEnriched, "correlation"} {
		index := e.index(kind)
		exists, err := e.client.Indices.Exists([]string{index}, e.client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return connectionErr("checking index "+index, err)
		}
		exists.Body.Close()
		if exists.StatusCode == http.StatusOK {
			continue
		}

		create, err := e.client.Indices.Create(index, e.client.Indices.Create.WithContext(ctx))
		if err != nil {
			return connectionErr("creating index "+index, err)
		}
		body, _ := readBody(create)
		// A lost race on creation is fine; anything else is not.
		if create.IsError() && !bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return connectionErr(fmt.Sprintf("creating index %s: %s", index, body), nil)
		}
	}
	e.closed = false
	return nil
}

func (e *ElasticStore) Close(ctx context.Context) error {
	e.closed = true
	return nil
}

func (e *ElasticStore) HealthCheck(ctx context.Context) bool {
	if e.closed {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	res, err := e.client.Cluster.Health(e.client.Cluster.Health.WithContext(ctx))
	if err != nil {
		return false
	}
	res.Body.Close()
	return !res.IsError()
}

func (e *ElasticStore) GetMetrics(ctx context.Context, tenant *models.TenantContext) (*StoreMetrics, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	metrics := e.ops.snapshot()
	return &metrics, nil
}

// tenantTermQuery is the filter every tenant-scoped request starts from.
func tenantTermQuery(tenantID string) map[string]any {
	return map[string]any{
		"term": map[string]any{"tenant_id.keyword": tenantID},
	}
}

func (e *ElasticStore) GetIOCCount(ctx context.Context, tenant *models.TenantContext) (int64, error) {
	if err := tenant.Validate(); err != nil {
		return 0, validationErr("invalid tenant context", err)
	}
	if err := e.checkOpen(); err != nil {
		return 0, err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	query, _ := json.Marshal(map[string]any{"query": tenantTermQuery(tenant.TenantID)})
	res, err := e.client.Count(
		e.client.Count.WithContext(ctx),
		e.client.Count.WithIndex(e.index(kindIOC)),
		e.client.Count.WithBody(bytes.NewReader(query)),
	)
	if err != nil {
		return 0, connectionErr("counting iocs", err)
	}
	body, err := readBody(res)
	if err != nil {
		return 0, connectionErr("reading count response", err)
	}
	if res.IsError() {
		return 0, connectionErr(fmt.Sprintf("count returned %s", res.Status()), nil)
	}

	var parsed struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, serializationErr("decoding count response", err)
	}
	return parsed.Count, nil
}

// indexDoc writes one document with refresh enabled so reads see it.
func (e *ElasticStore) indexDoc(ctx context.Context, index, docID string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return serializationErr("encoding document", err)
	}

	res, err := e.client.Index(index,
		bytes.NewReader(data),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(docID),
		e.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return connectionErr("indexing document", err)
	}
	body, _ := readBody(res)
	if res.IsError() {
		return connectionErr(fmt.Sprintf("index returned %s: %s", res.Status(), body), nil)
	}
	return nil
}

// getDoc reads one document; found=false on 404.
func (e *ElasticStore) getDoc(ctx context.Context, index, docID string, v any) (bool, error) {
	res, err := e.client.Get(index, docID, e.client.Get.WithContext(ctx))
	if err != nil {
		return false, connectionErr("reading document", err)
	}
	body, err := readBody(res)
	if err != nil {
		return false, connectionErr("reading get response", err)
	}
	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.IsError() {
		return false, connectionErr(fmt.Sprintf("get returned %s", res.Status()), nil)
	}

	var parsed struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, serializationErr("decoding get response", err)
	}
	if err := json.Unmarshal(parsed.Source, v); err != nil {
		return false, serializationErr("decoding document source", err)
	}
	return true, nil
}

// deleteDoc removes one document; found=false on 404.
func (e *ElasticStore) deleteDoc(ctx context.Context, index, docID string) (bool, error) {
	res, err := e.client.Delete(index, docID,
		e.client.Delete.WithContext(ctx),
		e.client.Delete.WithRefresh("true"),
	)
	if err != nil {
		return false, connectionErr("deleting document", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.IsError() {
		return false, connectionErr(fmt.Sprintf("delete returned %s", res.Status()), nil)
	}
	return true, nil
}

type elasticHit struct {
	Source json.RawMessage
	Sort   []any
}

// searchHits runs a query and returns the hits with their sort values
// plus the total. Results are always sorted by id.keyword so the sort
// values can seed a search_after continuation.
func (e *ElasticStore) searchHits(ctx context.Context, index string, query map[string]any, limit, offset int) ([]elasticHit, int, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, 0, serializationErr("encoding search query", err)
	}

	opts := []func(*esapi.SearchRequest){
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(index),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithSize(limit),
		e.client.Search.WithSort("id.keyword:asc"),
		e.client.Search.WithTrackTotalHits(true),
	}
	if offset > 0 {
		opts = append(opts, e.client.Search.WithFrom(offset))
	}
	res, err := e.client.Search(opts...)
	if err != nil {
		return nil, 0, connectionErr("searching", err)
	}
	raw, err := readBody(res)
	if err != nil {
		return nil, 0, connectionErr("reading search response", err)
	}
	if res.IsError() {
		return nil, 0, connectionErr(fmt.Sprintf("search returned %s: %s", res.Status(), raw), nil)
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source json.RawMessage `json:"_source"`
				Sort   []any           `json:"sort"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, 0, serializationErr("decoding search response", err)
	}

	hits := make([]elasticHit, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		hits = append(hits, elasticHit{Source: hit.Source, Sort: hit.Sort})
	}
	return hits, parsed.Hits.Total.Value, nil
}

// searchDocs returns one page of raw hit sources plus the total.
func (e *ElasticStore) searchDocs(ctx context.Context, index string, query map[string]any, limit, offset int) ([]json.RawMessage, int, error) {
	hits, total, err := e.searchHits(ctx, index, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	sources := make([]json.RawMessage, 0, len(hits))
	for _, hit := range hits {
		sources = append(sources, hit.Source)
	}
	return sources, total, nil
}

// elasticScanPageSize bounds one search_after page.
const elasticScanPageSize = 1000

// allDocs drains every hit for a query, paging with search_after past
// the single-request result window.
func (e *ElasticStore) allDocs(ctx context.Context, index string, query map[string]any) ([]json.RawMessage, error) {
	sources := make([]json.RawMessage, 0)
	var after []any
	for {
		page := make(map[string]any, len(query)+1)
		for k, v := range query {
			page[k] = v
		}
		if after != nil {
			page["search_after"] = after
		}

		hits, _, err := e.searchHits(ctx, index, page, elasticScanPageSize, 0)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			sources = append(sources, hit.Source)
		}
		if len(hits) < elasticScanPageSize {
			return sources, nil
		}
		after = hits[len(hits)-1].Sort
	}
}

func (e *ElasticStore) StoreIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return "", validationErr("invalid ioc", err)
	}
	if err = e.checkOpen(); err != nil {
		return "", err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	doc := elasticDocFromIOC(tenant.TenantID, ioc)
	if err = e.indexDoc(ctx, e.index(kindIOC), e.docID(tenant.TenantID, ioc.ID), doc); err != nil {
		return "", err
	}
	return ioc.ID, nil
}

func (e *ElasticStore) GetIOC(ctx context.Context, id string, tenant *models.TenantContext) (_ *models.IOC, err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if !tenant.HasPermission("ioc:read") {
		return nil, permissionErr("missing ioc:read permission")
	}
	if err = e.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	var doc elasticIOCDoc
	found, err := e.getDoc(ctx, e.index(kindIOC), e.docID(tenant.TenantID, id), &doc)
	if err != nil || !found {
		return nil, err
	}
	return doc.toModel(), nil
}

func (e *ElasticStore) UpdateIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return validationErr("invalid ioc", err)
	}
	if err = e.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	var existing elasticIOCDoc
	found, err := e.getDoc(ctx, e.index(kindIOC), e.docID(tenant.TenantID, ioc.ID), &existing)
	if err != nil {
		return err
	}
	if !found {
		return notFoundErr("ioc " + ioc.ID + " not found")
	}
	return e.indexDoc(ctx, e.index(kindIOC), e.docID(tenant.TenantID, ioc.ID), elasticDocFromIOC(tenant.TenantID, ioc))
}

func (e *ElasticStore) DeleteIOC(ctx context.Context, id string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = e.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	found, err := e.deleteDoc(ctx, e.index(kindIOC), e.docID(tenant.TenantID, id))
	if err != nil {
		return err
	}
	if !found {
		return notFoundErr("ioc " + id + " not found")
	}
	return nil
}

// buildSearchQuery translates criteria into a bool filter query.
func (e *ElasticStore) buildSearchQuery(criteria *models.IOCSearchCriteria, tenantID string) map[string]any {
	filters := []map[string]any{tenantTermQuery(tenantID)}

	if criteria != nil {
		if criteria.IndicatorType != nil {
			filters = append(filters, map[string]any{
				"term": map[string]any{"indicator_type.keyword": string(*criteria.IndicatorType)},
			})
		}
		if criteria.ValuePattern != "" {
			filters = append(filters, map[string]any{
				"wildcard": map[string]any{"value.keyword": "*" + criteria.ValuePattern + "*"},
			})
		}
		if criteria.Source != "" {
			filters = append(filters, map[string]any{
				"term": map[string]any{"source.keyword": criteria.Source},
			})
		}
		if criteria.MinConfidence != nil {
			filters = append(filters, map[string]any{
				"range": map[string]any{"confidence": map[string]any{"gte": *criteria.MinConfidence}},
			})
		}
		for _, tag := range criteria.Tags {
			filters = append(filters, map[string]any{
				"term": map[string]any{"tags.keyword": tag},
			})
		}
		timeRange := map[string]any{}
		if criteria.CreatedAfter != nil {
			timeRange["gte"] = criteria.CreatedAfter.Format(time.RFC3339)
		}
		if criteria.CreatedBefore != nil {
			timeRange["lte"] = criteria.CreatedBefore.Format(time.RFC3339)
		}
		if len(timeRange) > 0 {
			filters = append(filters, map[string]any{
				"range": map[string]any{"timestamp": timeRange},
			})
		}
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
	}
}

func (e *ElasticStore) SearchIOCs(ctx context.Context, criteria *models.IOCSearchCriteria, tenant *models.TenantContext) (_ *models.SearchResults[*models.IOC], err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = e.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	limit := criteria.EffectiveLimit()
	offset := criteria.EffectiveOffset()

	sources, total, err := e.searchDocs(ctx, e.index(kindIOC), e.buildSearchQuery(criteria, tenant.TenantID), limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]*models.IOC, 0, len(sources))
	for _, source := range sources {
		var doc elasticIOCDoc
		if err = json.Unmarshal(source, &doc); err != nil {
			return nil, serializationErr("decoding search hit", err)
		}
		items = append(items, doc.toModel())
	}

	return &models.SearchResults[*models.IOC]{
		Items:      items,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    offset+len(items) < total,
	}, nil
}

func (e *ElasticStore) BulkStoreIOCs(ctx context.Context, iocs []*models.IOC, tenant *models.TenantContext) (*models.BulkOperationResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.BulkOperationResult{TotalRequested: len(iocs)}

	for _, ioc := range iocs {
		if _, err := e.StoreIOC(ctx, ioc, tenant); err != nil {
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

func (e *ElasticStore) ListIOCIDs(ctx context.Context, tenant *models.TenantContext) (_ []string, err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = e.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	query := map[string]any{"query": tenantTermQuery(tenant.TenantID)}
	sources, err := e.allDocs(ctx, e.index(kindIOC), query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(sources))
	for _, source := range sources {
		var doc struct {
			ID string `json:"id"`
		}
		if err = json.Unmarshal(source, &doc); err != nil {
			return nil, serializationErr("decoding id hit", err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// elastic derived-entity documents carry tenant_id alongside the entity.
type elasticResultDoc struct {
	TenantID string `json:"tenant_id"`
	models.IOCResult
}

type elasticEnrichedDoc struct {
	TenantID string `json:"tenant_id"`
	models.EnrichedIOC
}

type elasticCorrelationDoc struct {
	TenantID string `json:"tenant_id"`
	models.Correlation
}

func (e *ElasticStore) StoreResult(ctx context.Context, result *models.IOCResult, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = result.Validate(); err != nil {
		return validationErr("invalid result", err)
	}
	if err = e.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	doc := elasticResultDoc{TenantID: tenant.TenantID, IOCResult: *result}
	return e.indexDoc(ctx, e.index(kindResult), e.docID(tenant.TenantID, result.IOCID), doc)
}

func (e *ElasticStore) GetResult(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.IOCResult, err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = e.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	var doc elasticResultDoc
	found, err := e.getDoc(ctx, e.index(kindResult), e.docID(tenant.TenantID, iocID), &doc)
	if err != nil || !found {
		return nil, err
	}
	return &doc.IOCResult, nil
}

func (e *ElasticStore) DeleteResult(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = e.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	found, err := e.deleteDoc(ctx, e.index(kindResult), e.docID(tenant.TenantID, iocID))
	if err != nil {
		return err
	}
	if !found {
		return notFoundErr("result for ioc " + iocID + " not found")
	}
	return nil
}

func (e *ElasticStore) StoreEnrichedIOC(ctx context.Context, enriched *models.EnrichedIOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = enriched.Validate(); err != nil {
		return validationErr("invalid enriched ioc", err)
	}
	if err = e.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	doc := elasticEnrichedDoc{TenantID: tenant.TenantID, EnrichedIOC: *enriched}
	return e.indexDoc(ctx, e.index(kindEnriched), e.docID(tenant.TenantID, enriched.IOC.ID), doc)
}

func (e *ElasticStore) GetEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.EnrichedIOC, err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = e.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	var doc elasticEnrichedDoc
	found, err := e.getDoc(ctx, e.index(kindEnriched), e.docID(tenant.TenantID, iocID), &doc)
	if err != nil || !found {
		return nil, err
	}
	return &doc.EnrichedIOC, nil
}

func (e *ElasticStore) DeleteEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = e.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	found, err := e.deleteDoc(ctx, e.index(kindEnriched), e.docID(tenant.TenantID, iocID))
	if err != nil {
		return err
	}
	if !found {
		return notFoundErr("enriched ioc " + iocID + " not found")
	}
	return nil
}

func (e *ElasticStore) StoreCorrelation(ctx context.Context, corr *models.Correlation, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = corr.Validate(); err != nil {
		return "", validationErr("invalid correlation", err)
	}
	if err = e.checkOpen(); err != nil {
		return "", err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	for _, iocID := range corr.CorrelatedIOCs {
		var doc elasticIOCDoc
		found, getErr := e.getDoc(ctx, e.index(kindIOC), e.docID(tenant.TenantID, iocID), &doc)
		if getErr != nil {
			return "", getErr
		}
		if !found {
			return "", validationErr("correlated ioc "+iocID+" does not exist in tenant", nil)
		}
	}

	doc := elasticCorrelationDoc{TenantID: tenant.TenantID, Correlation: *corr}
	if err = e.indexDoc(ctx, e.index("correlation"), e.docID(tenant.TenantID, corr.ID), doc); err != nil {
		return "", err
	}
	return corr.ID, nil
}

func (e *ElasticStore) GetCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (_ []*models.Correlation, err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = e.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					tenantTermQuery(tenant.TenantID),
					{"term": map[string]any{"correlated_iocs.keyword": iocID}},
				},
			},
		},
	}
	sources, err := e.allDocs(ctx, e.index("correlation"), query)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Correlation, 0, len(sources))
	for _, source := range sources {
		var doc elasticCorrelationDoc
		if err = json.Unmarshal(source, &doc); err != nil {
			return nil, serializationErr("decoding correlation hit", err)
		}
		copied := doc.Correlation
		matches = append(matches, &copied)
	}
	return matches, nil
}

func (e *ElasticStore) DeleteCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { e.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = e.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := e.reqCtx(ctx)
	defer cancel()

	matches, err := e.GetCorrelations(ctx, iocID, tenant)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return notFoundErr("no correlations mention ioc " + iocID)
	}

	for _, corr := range matches {
		if _, err = e.deleteDoc(ctx, e.index("correlation"), e.docID(tenant.TenantID, corr.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (e *ElasticStore) StoreType() StoreType         { return StoreTypeElasticsearch }
func (e *ElasticStore) SupportsMultiTenancy() bool   { return true }
func (e *ElasticStore) SupportsFullTextSearch() bool { return true }
func (e *ElasticStore) SupportsTransactions() bool   { return false }
func (e *ElasticStore) SupportsBulkOperations() bool { return true }
func (e *ElasticStore) MaxBatchSize() int            { return 1000 }
