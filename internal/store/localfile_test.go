package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
	"github.com/harborgrid-justin/phantom-spire-sub011/internal/serializer"
)

func TestLocalFileStore_Conformance(t *testing.T) {
	s, err := NewLocalFileStore(DefaultLocalFileConfig(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	runStoreConformance(t, s)
}

func TestLocalFileStore_ConformanceGzipMsgpack(t *testing.T) {
	cfg := DefaultLocalFileConfig(t.TempDir())
	cfg.Format = serializer.FormatMessagePack
	cfg.Compression = true

	s, err := NewLocalFileStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	runStoreConformance(t, s)
}

func TestLocalFileStore_RequiresBasePath(t *testing.T) {
	_, err := NewLocalFileStore(LocalFileConfig{})
	assert.Equal(t, KindValidation, Kind(err))
}

func TestLocalFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tenant := models.NewTenantContext("tenant-a")

	first, err := NewLocalFileStore(DefaultLocalFileConfig(dir))
	require.NoError(t, err)
	require.NoError(t, first.Initialize(ctx))

	in := testIOC("persist.example.com")
	_, err = first.StoreIOC(ctx, in, tenant)
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	second, err := NewLocalFileStore(DefaultLocalFileConfig(dir))
	require.NoError(t, err)
	require.NoError(t, second.Initialize(ctx))

	out, err := second.GetIOC(ctx, in.ID, tenant)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Value, out.Value)
}

func TestLocalFileStore_CorruptFileReportsSerialization(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tenant := models.NewTenantContext("tenant-a")

	s, err := NewLocalFileStore(DefaultLocalFileConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx))

	in := testIOC("corrupt.example.com")
	_, err = s.StoreIOC(ctx, in, tenant)
	require.NoError(t, err)

	path := filepath.Join(dir, tenant.TenantID, kindIOC, in.ID+".dat")
	require.NoError(t, os.WriteFile(path, []byte("{not an envelope"), 0o644))

	_, err = s.GetIOC(ctx, in.ID, tenant)
	assert.Equal(t, KindSerialization, Kind(err))
}

func TestLocalFileStore_TenantsGetSeparateDirectories(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewLocalFileStore(DefaultLocalFileConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx))

	in := testIOC("layout.example.com")
	_, err = s.StoreIOC(ctx, in, models.NewTenantContext("tenant-a"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "tenant-a", kindIOC, in.ID+".dat"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "tenant-b"))
	assert.True(t, os.IsNotExist(err))
}
