package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// MongoConfig configures the MongoDB-backed store.
type MongoConfig struct {
	URL              string
	Database         string
	CollectionPrefix string
	MinPoolSize      uint64
	MaxPoolSize      uint64
	ConnectTimeout   time.Duration
	WriteConcern     string
	ReadPreference   string
}

// DefaultMongoConfig targets a local instance.
func DefaultMongoConfig(url, database string) MongoConfig {
	return MongoConfig{
		URL:            url,
		Database:       database,
		MaxPoolSize:    10,
		ConnectTimeout: 5 * time.Second,
	}
}

// mongo document wrappers: every record carries tenant_id alongside the
// inlined entity so filters stay tenant-scoped.
type mongoIOCDoc struct {
	models.IOC `bson:",inline"`
	TenantID   string `bson:"tenant_id"`
}

// Results and enriched iocs mirror their key into ioc_id so the unique
// (tenant_id, ioc_id) index can enforce at-most-one per indicator.
type mongoResultDoc struct {
	ID                  string    `bson:"_id"`
	TenantID            string    `bson:"tenant_id"`
	IOCID               string    `bson:"ioc_id"`
	DetectionVerdict    string    `bson:"detection_verdict"`
	IntelligenceSummary string    `bson:"intelligence_summary,omitempty"`
	AnalysisSummary     string    `bson:"analysis_summary,omitempty"`
	ProcessingTimestamp time.Time `bson:"processing_timestamp"`
}

func (d *mongoResultDoc) toModel() *models.IOCResult {
	return &models.IOCResult{
		IOCID:               d.IOCID,
		DetectionVerdict:    d.DetectionVerdict,
		IntelligenceSummary: d.IntelligenceSummary,
		AnalysisSummary:     d.AnalysisSummary,
		ProcessingTimestamp: d.ProcessingTimestamp,
	}
}

type mongoEnrichedDoc struct {
	ID                   string                    `bson:"_id"`
	TenantID             string                    `bson:"tenant_id"`
	IOCID                string                    `bson:"ioc_id"`
	IOC                  models.IOC                `bson:"ioc"`
	EnrichmentData       map[string]map[string]any `bson:"enrichment_data,omitempty"`
	EnrichmentSources    []string                  `bson:"enrichment_sources,omitempty"`
	EnrichmentConfidence float64                   `bson:"enrichment_confidence"`
	EnrichedAt           time.Time                 `bson:"enriched_at"`
}

func (d *mongoEnrichedDoc) toModel() *models.EnrichedIOC {
	return &models.EnrichedIOC{
		IOC:                  d.IOC,
		EnrichmentData:       d.EnrichmentData,
		EnrichmentSources:    d.EnrichmentSources,
		EnrichmentConfidence: d.EnrichmentConfidence,
		EnrichedAt:           d.EnrichedAt,
	}
}

type mongoCorrelationDoc struct {
	models.Correlation `bson:",inline"`
	TenantID           string `bson:"tenant_id"`
}

// MongoStore maps each entity onto one collection with tenant-scoped
// filters. A compound text index on value and tags backs full-text search.
type MongoStore struct {
	cfg    MongoConfig
	client *mongo.Client
	db     *mongo.Database
	closed bool
	ops    opRecorder
}

// NewMongoStore validates configuration; the client connects at Initialize.
func NewMongoStore(cfg MongoConfig) (*MongoStore, error) {
	if cfg.URL == "" {
		return nil, validationErr("url is required", nil)
	}
	if cfg.Database == "" {
		return nil, validationErr("database is required", nil)
	}
	return &MongoStore{cfg: cfg}, nil
}

func (m *MongoStore) collection(name string) *mongo.Collection {
	return m.db.Collection(m.cfg.CollectionPrefix + name)
}

func (m *MongoStore) iocs() *mongo.Collection         { return m.collection("iocs") }
func (m *MongoStore) results() *mongo.Collection      { return m.collection("results") }
func (m *MongoStore) enriched() *mongo.Collection     { return m.collection("enriched") }
func (m *MongoStore) correlations() *mongo.Collection { return m.collection("correlations") }

func (m *MongoStore) checkOpen() error {
	if m.closed || m.client == nil {
		return connectionErr("store is closed", nil)
	}
	return nil
}

func wrapMongoErr(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return internalErr("deadline exceeded: "+msg, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return validationErr("conflicting document: "+msg, err)
	}
	return connectionErr(msg, err)
}

func (m *MongoStore) Initialize(ctx context.Context) error {
	if m.client == nil {
		opts := options.Client().ApplyURI(m.cfg.URL)
		if m.cfg.MaxPoolSize > 0 {
			opts.SetMaxPoolSize(m.cfg.MaxPoolSize)
		}
		if m.cfg.MinPoolSize > 0 {
			opts.SetMinPoolSize(m.cfg.MinPoolSize)
		}
		if m.cfg.ConnectTimeout > 0 {
			opts.SetConnectTimeout(m.cfg.ConnectTimeout)
		}
		if m.cfg.WriteConcern == "majority" {
			opts.SetWriteConcern(writeconcern.Majority())
		}
		if m.cfg.ReadPreference != "" {
			pref, err := readpref.ModeFromString(m.cfg.ReadPreference)
			if err != nil {
				return validationErr("invalid read preference", err)
			}
			rp, err := readpref.New(pref)
			if err != nil {
				return validationErr("invalid read preference", err)
			}
			opts.SetReadPreference(rp)
		}

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return wrapMongoErr("connecting to mongodb", err)
		}
		m.client = client
		m.db = client.Database(m.cfg.Database)
	}

	if err := m.client.Ping(ctx, nil); err != nil {
		return wrapMongoErr("pinging mongodb", err)
	}

	if err := m.ensureIndexes(ctx); err != nil {
		return err
	}
	m.closed = false
	return nil
}

// ensureIndexes creates the collection indexes; CreateMany is idempotent.
func (m *MongoStore) ensureIndexes(ctx context.Context) error {
	iocIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "indicator_type", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "confidence", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "source", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "value", Value: "text"}, {Key: "tags", Value: "text"}}},
	}
	if _, err := m.iocs().Indexes().CreateMany(ctx, iocIndexes); err != nil {
		return wrapMongoErr("creating ioc indexes", err)
	}

	unique := options.Index().SetUnique(true)
	if _, err := m.results().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "ioc_id", Value: 1}}, Options: unique,
	}); err != nil {
		return wrapMongoErr("creating result indexes", err)
	}
	if _, err := m.enriched().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "ioc_id", Value: 1}}, Options: unique,
	}); err != nil {
		return wrapMongoErr("creating enriched indexes", err)
	}
	if _, err := m.correlations().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "correlated_iocs", Value: 1}},
	}); err != nil {
		return wrapMongoErr("creating correlation indexes", err)
	}
	return nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	m.closed = true
	if m.client != nil {
		if err := m.client.Disconnect(ctx); err != nil {
			return connectionErr("disconnecting from mongodb", err)
		}
		m.client = nil
	}
	return nil
}

func (m *MongoStore) HealthCheck(ctx context.Context) bool {
	if m.closed || m.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return m.client.Ping(ctx, readpref.Primary()) == nil
}

func (m *MongoStore) GetMetrics(ctx context.Context, tenant *models.TenantContext) (*StoreMetrics, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	metrics := m.ops.snapshot()
	return &metrics, nil
}

func (m *MongoStore) GetIOCCount(ctx context.Context, tenant *models.TenantContext) (int64, error) {
	if err := tenant.Validate(); err != nil {
		return 0, validationErr("invalid tenant context", err)
	}
	if err := m.checkOpen(); err != nil {
		return 0, err
	}

	count, err := m.iocs().CountDocuments(ctx, bson.M{"tenant_id": tenant.TenantID})
	if err != nil {
		return 0, wrapMongoErr("counting iocs", err)
	}
	return count, nil
}

func (m *MongoStore) tenantFilter(tenantID, id string) bson.M {
	return bson.M{"_id": id, "tenant_id": tenantID}
}

func (m *MongoStore) StoreIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return "", validationErr("invalid ioc", err)
	}
	if err = m.checkOpen(); err != nil {
		return "", err
	}

	doc := mongoIOCDoc{IOC: *ioc, TenantID: tenant.TenantID}
	opts := options.Replace().SetUpsert(true)
	if _, err = m.iocs().ReplaceOne(ctx, m.tenantFilter(tenant.TenantID, ioc.ID), doc, opts); err != nil {
		return "", wrapMongoErr("storing ioc", err)
	}
	return ioc.ID, nil
}

func (m *MongoStore) GetIOC(ctx context.Context, id string, tenant *models.TenantContext) (_ *models.IOC, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if !tenant.HasPermission("ioc:read") {
		return nil, permissionErr("missing ioc:read permission")
	}
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	var doc mongoIOCDoc
	err = m.iocs().FindOne(ctx, m.tenantFilter(tenant.TenantID, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapMongoErr("reading ioc", err)
	}
	return &doc.IOC, nil
}

func (m *MongoStore) UpdateIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return validationErr("invalid ioc", err)
	}
	if err = m.checkOpen(); err != nil {
		return err
	}

	doc := mongoIOCDoc{IOC: *ioc, TenantID: tenant.TenantID}
	res, err := m.iocs().ReplaceOne(ctx, m.tenantFilter(tenant.TenantID, ioc.ID), doc)
	if err != nil {
		return wrapMongoErr("updating ioc", err)
	}
	if res.MatchedCount == 0 {
		return notFoundErr("ioc " + ioc.ID + " not found")
	}
	return nil
}

func (m *MongoStore) DeleteIOC(ctx context.Context, id string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = m.checkOpen(); err != nil {
		return err
	}

	res, err := m.iocs().DeleteOne(ctx, m.tenantFilter(tenant.TenantID, id))
	if err != nil {
		return wrapMongoErr("deleting ioc", err)
	}
	if res.DeletedCount == 0 {
		return notFoundErr("ioc " + id + " not found")
	}
	return nil
}

// buildSearchFilter translates criteria into a tenant-scoped query document.
func (m *MongoStore) buildSearchFilter(criteria *models.IOCSearchCriteria, tenantID string) bson.M {
	filter := bson.M{"tenant_id": tenantID}
	if criteria == nil {
		return filter
	}
	if criteria.IndicatorType != nil {
		filter["indicator_type"] = string(*criteria.IndicatorType)
	}
	if criteria.ValuePattern != "" {
		filter["value"] = bson.M{"$regex": criteria.ValuePattern, "$options": "i"}
	}
	if criteria.Source != "" {
		filter["source"] = criteria.Source
	}
	if criteria.MinConfidence != nil {
		filter["confidence"] = bson.M{"$gte": *criteria.MinConfidence}
	}
	if len(criteria.Tags) > 0 {
		filter["tags"] = bson.M{"$all": criteria.Tags}
	}
	timeFilter := bson.M{}
	if criteria.CreatedAfter != nil {
		timeFilter["$gte"] = *criteria.CreatedAfter
	}
	if criteria.CreatedBefore != nil {
		timeFilter["$lte"] = *criteria.CreatedBefore
	}
	if len(timeFilter) > 0 {
		filter["timestamp"] = timeFilter
	}
	return filter
}

func (m *MongoStore) SearchIOCs(ctx context.Context, criteria *models.IOCSearchCriteria, tenant *models.TenantContext) (_ *models.SearchResults[*models.IOC], err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	filter := m.buildSearchFilter(criteria, tenant.TenantID)
	limit := criteria.EffectiveLimit()
	offset := criteria.EffectiveOffset()

	total, err := m.iocs().CountDocuments(ctx, filter)
	if err != nil {
		return nil, wrapMongoErr("counting search matches", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := m.iocs().Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapMongoErr("searching iocs", err)
	}
	defer cursor.Close(ctx)

	items := make([]*models.IOC, 0, limit)
	for cursor.Next(ctx) {
		var doc mongoIOCDoc
		if err = cursor.Decode(&doc); err != nil {
			return nil, serializationErr("decoding search document", err)
		}
		copied := doc.IOC
		items = append(items, &copied)
	}
	if err = cursor.Err(); err != nil {
		return nil, wrapMongoErr("iterating search cursor", err)
	}

	return &models.SearchResults[*models.IOC]{
		Items:      items,
		TotalCount: int(total),
		Limit:      limit,
		Offset:     offset,
		HasMore:    offset+len(items) < int(total),
	}, nil
}

func (m *MongoStore) BulkStoreIOCs(ctx context.Context, iocs []*models.IOC, tenant *models.TenantContext) (*models.BulkOperationResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.BulkOperationResult{TotalRequested: len(iocs)}

	for _, ioc := range iocs {
		if _, err := m.StoreIOC(ctx, ioc, tenant); err != nil {
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

func (m *MongoStore) ListIOCIDs(ctx context.Context, tenant *models.TenantContext) (_ []string, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	cursor, err := m.iocs().Find(ctx, bson.M{"tenant_id": tenant.TenantID}, opts)
	if err != nil {
		return nil, wrapMongoErr("listing ioc ids", err)
	}
	defer cursor.Close(ctx)

	ids := make([]string, 0)
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err = cursor.Decode(&doc); err != nil {
			return nil, serializationErr("decoding id document", err)
		}
		ids = append(ids, doc.ID)
	}
	if err = cursor.Err(); err != nil {
		return nil, wrapMongoErr("iterating id cursor", err)
	}
	return ids, nil
}

func (m *MongoStore) StoreResult(ctx context.Context, result *models.IOCResult, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = result.Validate(); err != nil {
		return validationErr("invalid result", err)
	}
	if err = m.checkOpen(); err != nil {
		return err
	}

	doc := mongoResultDoc{
		ID:                  result.IOCID,
		TenantID:            tenant.TenantID,
		IOCID:               result.IOCID,
		DetectionVerdict:    result.DetectionVerdict,
		IntelligenceSummary: result.IntelligenceSummary,
		AnalysisSummary:     result.AnalysisSummary,
		ProcessingTimestamp: result.ProcessingTimestamp,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err = m.results().ReplaceOne(ctx, m.tenantFilter(tenant.TenantID, result.IOCID), doc, opts); err != nil {
		return wrapMongoErr("storing result", err)
	}
	return nil
}

func (m *MongoStore) GetResult(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.IOCResult, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	var doc mongoResultDoc
	err = m.results().FindOne(ctx, m.tenantFilter(tenant.TenantID, iocID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapMongoErr("reading result", err)
	}
	return doc.toModel(), nil
}

func (m *MongoStore) DeleteResult(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = m.checkOpen(); err != nil {
		return err
	}

	res, err := m.results().DeleteOne(ctx, m.tenantFilter(tenant.TenantID, iocID))
	if err != nil {
		return wrapMongoErr("deleting result", err)
	}
	if res.DeletedCount == 0 {
		return notFoundErr("result for ioc " + iocID + " not found")
	}
	return nil
}

func (m *MongoStore) StoreEnrichedIOC(ctx context.Context, enriched *models.EnrichedIOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = enriched.Validate(); err != nil {
		return validationErr("invalid enriched ioc", err)
	}
	if err = m.checkOpen(); err != nil {
		return err
	}

	doc := mongoEnrichedDoc{
		ID:                   enriched.IOC.ID,
		TenantID:             tenant.TenantID,
		IOCID:                enriched.IOC.ID,
		IOC:                  enriched.IOC,
		EnrichmentData:       enriched.EnrichmentData,
		EnrichmentSources:    enriched.EnrichmentSources,
		EnrichmentConfidence: enriched.EnrichmentConfidence,
		EnrichedAt:           enriched.EnrichedAt,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err = m.enriched().ReplaceOne(ctx, m.tenantFilter(tenant.TenantID, enriched.IOC.ID), doc, opts); err != nil {
		return wrapMongoErr("storing enriched ioc", err)
	}
	return nil
}

func (m *MongoStore) GetEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.EnrichedIOC, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	var doc mongoEnrichedDoc
	err = m.enriched().FindOne(ctx, m.tenantFilter(tenant.TenantID, iocID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapMongoErr("reading enriched ioc", err)
	}
	return doc.toModel(), nil
}

func (m *MongoStore) DeleteEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = m.checkOpen(); err != nil {
		return err
	}

	res, err := m.enriched().DeleteOne(ctx, m.tenantFilter(tenant.TenantID, iocID))
	if err != nil {
		return wrapMongoErr("deleting enriched ioc", err)
	}
	if res.DeletedCount == 0 {
		return notFoundErr("enriched ioc " + iocID + " not found")
	}
	return nil
}

func (m *MongoStore) StoreCorrelation(ctx context.Context, corr *models.Correlation, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = corr.Validate(); err != nil {
		return "", validationErr("invalid correlation", err)
	}
	if err = m.checkOpen(); err != nil {
		return "", err
	}

	present, err := m.iocs().CountDocuments(ctx, bson.M{
		"tenant_id": tenant.TenantID,
		"_id":       bson.M{"$in": corr.CorrelatedIOCs},
	})
	if err != nil {
		return "", wrapMongoErr("checking correlated iocs", err)
	}
	if int(present) != len(corr.CorrelatedIOCs) {
		return "", validationErr("one or more correlated iocs do not exist in tenant", nil)
	}

	doc := mongoCorrelationDoc{Correlation: *corr, TenantID: tenant.TenantID}
	opts := options.Replace().SetUpsert(true)
	if _, err = m.correlations().ReplaceOne(ctx, m.tenantFilter(tenant.TenantID, corr.ID), doc, opts); err != nil {
		return "", wrapMongoErr("storing correlation", err)
	}
	return corr.ID, nil
}

func (m *MongoStore) GetCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (_ []*models.Correlation, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	filter := bson.M{"tenant_id": tenant.TenantID, "correlated_iocs": iocID}
	cursor, err := m.correlations().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, wrapMongoErr("querying correlations", err)
	}
	defer cursor.Close(ctx)

	matches := make([]*models.Correlation, 0)
	for cursor.Next(ctx) {
		var doc mongoCorrelationDoc
		if err = cursor.Decode(&doc); err != nil {
			return nil, serializationErr("decoding correlation", err)
		}
		copied := doc.Correlation
		matches = append(matches, &copied)
	}
	if err = cursor.Err(); err != nil {
		return nil, wrapMongoErr("iterating correlations", err)
	}
	return matches, nil
}

func (m *MongoStore) DeleteCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = m.checkOpen(); err != nil {
		return err
	}

	res, err := m.correlations().DeleteMany(ctx, bson.M{
		"tenant_id":       tenant.TenantID,
		"correlated_iocs": iocID,
	})
	if err != nil {
		return wrapMongoErr("deleting correlations", err)
	}
	if res.DeletedCount == 0 {
		return notFoundErr("no correlations mention ioc " + iocID)
	}
	return nil
}

func (m *MongoStore) StoreType() StoreType         { return StoreTypeMongo }
func (m *MongoStore) SupportsMultiTenancy() bool   { return true }
func (m *MongoStore) SupportsFullTextSearch() bool { return true }
func (m *MongoStore) SupportsTransactions() bool   { return false }
func (m *MongoStore) SupportsBulkOperations() bool { return true }
func (m *MongoStore) MaxBatchSize() int            { return 1000 }
