package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
	"github.com/harborgrid-justin/phantom-spire-sub011/internal/serializer"
)

// Entity kind directories under each tenant.
const (
	kindIOC          = "ioc"
	kindResult       = "result"
	kindEnriched     = "enriched"
	kindCorrelations = "correlations"
)

// LocalFileConfig configures the file-backed store.
type LocalFileConfig struct {
	BasePath    string
	Compression bool
	Format      serializer.Format
	CreateDirs  bool
	Permissions os.FileMode
}

// DefaultLocalFileConfig writes JSON envelopes under basePath.
func DefaultLocalFileConfig(basePath string) LocalFileConfig {
	return LocalFileConfig{
		BasePath:    basePath,
		Format:      serializer.FormatJSON,
		CreateDirs:  true,
		Permissions: 0o644,
	}
}

// LocalFileStore persists one envelope file per entity under
// {base}/{tenant}/{kind}/{id}. Searches are linear directory scans, which
// is the accepted cost of this backend.
type LocalFileStore struct {
	cfg    LocalFileConfig
	codec  *serializer.Serializer
	mu     sync.RWMutex
	closed bool
	ops    opRecorder
}

// NewLocalFileStore builds the store and its serialization pipeline.
func NewLocalFileStore(cfg LocalFileConfig) (*LocalFileStore, error) {
	if cfg.BasePath == "" {
		return nil, validationErr("base_path is required", nil)
	}
	if cfg.Format == "" {
		cfg.Format = serializer.FormatJSON
	}
	if cfg.Permissions == 0 {
		cfg.Permissions = 0o644
	}

	compression := serializer.CompressionNone
	if cfg.Compression {
		compression = serializer.CompressionGzip
	}
	codec, err := serializer.New(serializer.Config{
		Format:          cfg.Format,
		Compression:     compression,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, internalErr("building serializer", err)
	}

	return &LocalFileStore{cfg: cfg, codec: codec}, nil
}

func (l *LocalFileStore) entityPath(tenantID, kind, id string) string {
	return filepath.Join(l.cfg.BasePath, tenantID, kind, id+".dat")
}

func (l *LocalFileStore) kindDir(tenantID, kind string) string {
	return filepath.Join(l.cfg.BasePath, tenantID, kind)
}

func (l *LocalFileStore) checkOpen() error {
	if l.closed {
		return connectionErr("store is closed", nil)
	}
	return nil
}

// writeEntity encodes and writes one record, creating directories on demand.
func (l *LocalFileStore) writeEntity(tenantID, kind, id string, v any) error {
	data, err := l.codec.Encode(v)
	if err != nil {
		return codecErr(err)
	}

	dir := l.kindDir(tenantID, kind)
	if l.cfg.CreateDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return connectionErr("creating directory "+dir, err)
		}
	}

	path := l.entityPath(tenantID, kind, id)
	if err := os.WriteFile(path, data, l.cfg.Permissions); err != nil {
		return connectionErr("writing "+path, err)
	}
	return nil
}

// readEntity decodes one record; found=false on a clean miss.
func (l *LocalFileStore) readEntity(tenantID, kind, id string, v any) (bool, error) {
	path := l.entityPath(tenantID, kind, id)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, connectionErr("reading "+path, err)
	}
	if err := l.codec.Decode(data, v); err != nil {
		return false, codecErr(err)
	}
	return true, nil
}

func (l *LocalFileStore) deleteEntity(tenantID, kind, id string) error {
	path := l.entityPath(tenantID, kind, id)
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return notFoundErr(kind + " " + id + " not found")
	}
	if err != nil {
		return connectionErr("removing "+path, err)
	}
	return nil
}

// listEntityIDs enumerates record ids in a kind directory.
func (l *LocalFileStore) listEntityIDs(tenantID, kind string) ([]string, error) {
	entries, err := os.ReadDir(l.kindDir(tenantID, kind))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, connectionErr("listing "+l.kindDir(tenantID, kind), err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dat") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".dat"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *LocalFileStore) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.CreateDirs {
		if err := os.MkdirAll(l.cfg.BasePath, 0o755); err != nil {
			return connectionErr("creating base path "+l.cfg.BasePath, err)
		}
	} else if _, err := os.Stat(l.cfg.BasePath); err != nil {
		return connectionErr("base path unavailable: "+l.cfg.BasePath, err)
	}
	l.closed = false
	return nil
}

func (l *LocalFileStore) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *LocalFileStore) HealthCheck(ctx context.Context) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false
	}
	_, err := os.Stat(l.cfg.BasePath)
	return err == nil
}

func (l *LocalFileStore) GetMetrics(ctx context.Context, tenant *models.TenantContext) (*StoreMetrics, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	metrics := l.ops.snapshot()
	return &metrics, nil
}

func (l *LocalFileStore) GetIOCCount(ctx context.Context, tenant *models.TenantContext) (int64, error) {
	if err := tenant.Validate(); err != nil {
		return 0, validationErr("invalid tenant context", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.checkOpen(); err != nil {
		return 0, err
	}

	ids, err := l.listEntityIDs(tenant.TenantID, kindIOC)
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func (l *LocalFileStore) StoreIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return "", validationErr("invalid ioc", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkOpen(); err != nil {
		return "", err
	}

	if err = l.writeEntity(tenant.TenantID, kindIOC, ioc.ID, ioc); err != nil {
		return "", err
	}
	return ioc.ID, nil
}

func (l *LocalFileStore) GetIOC(ctx context.Context, id string, tenant *models.TenantContext) (_ *models.IOC, err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if !tenant.HasPermission("ioc:read") {
		return nil, permissionErr("missing ioc:read permission")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if err = l.checkOpen(); err != nil {
		return nil, err
	}

	var ioc models.IOC
	found, err := l.readEntity(tenant.TenantID, kindIOC, id, &ioc)
	if err != nil || !found {
		return nil, err
	}
	return &ioc, nil
}

func (l *LocalFileStore) UpdateIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return validationErr("invalid ioc", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkOpen(); err != nil {
		return err
	}

	if _, statErr := os.Stat(l.entityPath(tenant.TenantID, kindIOC, ioc.ID)); statErr != nil {
		return notFoundErr("ioc " + ioc.ID + " not found")
	}
	return l.writeEntity(tenant.TenantID, kindIOC, ioc.ID, ioc)
}

func (l *LocalFileStore) DeleteIOC(ctx context.Context, id string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkOpen(); err != nil {
		return err
	}
	return l.deleteEntity(tenant.TenantID, kindIOC, id)
}

func (l *LocalFileStore) SearchIOCs(ctx context.Context, criteria *models.IOCSearchCriteria, tenant *models.TenantContext) (_ *models.SearchResults[*models.IOC], err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if err = l.checkOpen(); err != nil {
		return nil, err
	}

	ids, err := l.listEntityIDs(tenant.TenantID, kindIOC)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.IOC, 0)
	for _, id := range ids {
		var ioc models.IOC
		found, readErr := l.readEntity(tenant.TenantID, kindIOC, id, &ioc)
		if readErr != nil {
			return nil, readErr
		}
		if found && criteria.Matches(&ioc) {
			copied := ioc
			matches = append(matches, &copied)
		}
	}

	return models.PageOf(matches, criteria.EffectiveLimit(), criteria.EffectiveOffset()), nil
}

func (l *LocalFileStore) BulkStoreIOCs(ctx context.Context, iocs []*models.IOC, tenant *models.TenantContext) (*models.BulkOperationResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	start := time.Now()
	result := &models.BulkOperationResult{TotalRequested: len(iocs)}

	for _, ioc := range iocs {
		if _, err := l.StoreIOC(ctx, ioc, tenant); err != nil {
			result.RecordFailure(ioc.ID)
			continue
		}
		result.RecordSuccess()
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}

func (l *LocalFileStore) ListIOCIDs(ctx context.Context, tenant *models.TenantContext) (_ []string, err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if err = l.checkOpen(); err != nil {
		return nil, err
	}
	return l.listEntityIDs(tenant.TenantID, kindIOC)
}

func (l *LocalFileStore) StoreResult(ctx context.Context, result *models.IOCResult, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = result.Validate(); err != nil {
		return validationErr("invalid result", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkOpen(); err != nil {
		return err
	}
	return l.writeEntity(tenant.TenantID, kindResult, result.IOCID, result)
}

func (l *LocalFileStore) GetResult(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.IOCResult, err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if err = l.checkOpen(); err != nil {
		return nil, err
	}

	var result models.IOCResult
	found, err := l.readEntity(tenant.TenantID, kindResult, iocID, &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

func (l *LocalFileStore) DeleteResult(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkOpen(); err != nil {
		return err
	}
	return l.deleteEntity(tenant.TenantID, kindResult, iocID)
}

func (l *LocalFileStore) StoreEnrichedIOC(ctx context.Context, enriched *models.EnrichedIOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = enriched.Validate(); err != nil {
		return validationErr("invalid enriched ioc", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkOpen(); err != nil {
		return err
	}
	return l.writeEntity(tenant.TenantID, kindEnriched, enriched.IOC.ID, enriched)
}

func (l *LocalFileStore) GetEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.EnrichedIOC, err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if err = l.checkOpen(); err != nil {
		return nil, err
	}

	var enriched models.EnrichedIOC
	found, err := l.readEntity(tenant.TenantID, kindEnriched, iocID, &enriched)
	if err != nil || !found {
		return nil, err
	}
	return &enriched, nil
}

func (l *LocalFileStore) DeleteEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkOpen(); err != nil {
		return err
	}
	return l.deleteEntity(tenant.TenantID, kindEnriched, iocID)
}

func (l *LocalFileStore) StoreCorrelation(ctx context.Context, corr *models.Correlation, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = corr.Validate(); err != nil {
		return "", validationErr("invalid correlation", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkOpen(); err != nil {
		return "", err
	}

	for _, iocID := range corr.CorrelatedIOCs {
		if _, statErr := os.Stat(l.entityPath(tenant.TenantID, kindIOC, iocID)); statErr != nil {
			return "", validationErr("correlated ioc "+iocID+" does not exist in tenant", nil)
		}
	}

	if err = l.writeEntity(tenant.TenantID, kindCorrelations, corr.ID, corr); err != nil {
		return "", err
	}
	return corr.ID, nil
}

func (l *LocalFileStore) GetCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (_ []*models.Correlation, err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if err = l.checkOpen(); err != nil {
		return nil, err
	}

	ids, err := l.listEntityIDs(tenant.TenantID, kindCorrelations)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Correlation, 0)
	for _, id := range ids {
		var corr models.Correlation
		found, readErr := l.readEntity(tenant.TenantID, kindCorrelations, id, &corr)
		if readErr != nil {
			return nil, readErr
		}
		if found && corr.Mentions(iocID) {
			copied := corr
			matches = append(matches, &copied)
		}
	}
	return matches, nil
}

func (l *LocalFileStore) DeleteCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { l.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkOpen(); err != nil {
		return err
	}

	ids, err := l.listEntityIDs(tenant.TenantID, kindCorrelations)
	if err != nil {
		return err
	}

	deleted := 0
	for _, id := range ids {
		var corr models.Correlation
		found, readErr := l.readEntity(tenant.TenantID, kindCorrelations, id, &corr)
		if readErr != nil {
			return readErr
		}
		if !found || !corr.Mentions(iocID) {
			continue
		}
		if err = l.deleteEntity(tenant.TenantID, kindCorrelations, id); err != nil {
			return err
		}
		deleted++
	}
	if deleted == 0 {
		return notFoundErr(fmt.Sprintf("no correlations mention ioc %s", iocID))
	}
	return nil
}

func (l *LocalFileStore) StoreType() StoreType         { return StoreTypeLocalFile }
func (l *LocalFileStore) SupportsMultiTenancy() bool   { return true }
func (l *LocalFileStore) SupportsFullTextSearch() bool { return false }
func (l *LocalFileStore) SupportsTransactions() bool   { return false }
func (l *LocalFileStore) SupportsBulkOperations() bool { return true }
func (l *LocalFileStore) MaxBatchSize() int            { return 1000 }
