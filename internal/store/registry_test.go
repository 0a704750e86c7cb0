package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/serializer"
)

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	registry := NewRegistry()

	assert.Equal(t, []StoreType{
		StoreTypeElasticsearch,
		StoreTypeLocalFile,
		StoreTypeMemory,
		StoreTypeMongo,
		StoreTypePostgres,
		StoreTypeRedis,
	}, registry.Available())
}

func TestRegistry_UnknownStoreType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Factory("etcd")
	assert.Equal(t, KindValidation, Kind(err))

	_, err = registry.CreateStore("etcd", nil)
	assert.Equal(t, KindValidation, Kind(err))
}

func TestRegistry_CreateMemoryStore(t *testing.T) {
	registry := NewRegistry()

	s, err := registry.CreateStore(StoreTypeMemory, nil)
	require.NoError(t, err)
	assert.Equal(t, StoreTypeMemory, s.StoreType())
}

func TestRegistry_FactoryValidation(t *testing.T) {
	tests := []struct {
		name      string
		storeType StoreType
		config    map[string]string
		errMsg    string
	}{
		{
			name:      "localfile missing base_path",
			storeType: StoreTypeLocalFile,
			config:    map[string]string{},
			errMsg:    "base_path",
		},
		{
			name:      "localfile bad format",
			storeType: StoreTypeLocalFile,
			config:    map[string]string{"base_path": "/tmp/x", "format": "bincode"},
			errMsg:    "unsupported file format",
		},
		{
			name:      "redis missing url",
			storeType: StoreTypeRedis,
			config:    map[string]string{},
			errMsg:    "url",
		},
		{
			name:      "redis bad scheme",
			storeType: StoreTypeRedis,
			config:    map[string]string{"url": "http://localhost:6379"},
			errMsg:    "redis://",
		},
		{
			name:      "postgres bad scheme",
			storeType: StoreTypePostgres,
			config:    map[string]string{"url": "mysql://localhost/db"},
			errMsg:    "postgres://",
		},
		{
			name:      "mongo missing database",
			storeType: StoreTypeMongo,
			config:    map[string]string{"url": "mongodb://localhost:27017"},
			errMsg:    "database",
		},
		{
			name:      "elastic missing hosts",
			storeType: StoreTypeElasticsearch,
			config:    map[string]string{},
			errMsg:    "hosts",
		},
		{
			name:      "elastic bad host scheme",
			storeType: StoreTypeElasticsearch,
			config:    map[string]string{"hosts": "localhost:9200"},
			errMsg:    "http://",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()

			_, err := registry.CreateStore(tt.storeType, tt.config)

			require.Error(t, err)
			assert.Equal(t, KindValidation, Kind(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRegistry_FactoryNumericOptions(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.CreateStore(StoreTypeRedis, map[string]string{
		"url":             "redis://localhost:6379",
		"max_connections": "plenty",
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, Kind(err))

	s, err := registry.CreateStore(StoreTypeLocalFile, map[string]string{
		"base_path":   t.TempDir(),
		"format":      string(serializer.FormatCBOR),
		"compression": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, StoreTypeLocalFile, s.StoreType())
}

func TestRegistry_RequiredConfigKeys(t *testing.T) {
	registry := NewRegistry()

	factory, err := registry.Factory(StoreTypeMongo)
	require.NoError(t, err)
	assert.Equal(t, []string{"url", "database"}, factory.RequiredConfigKeys())

	factory, err = registry.Factory(StoreTypeMemory)
	require.NoError(t, err)
	assert.Empty(t, factory.RequiredConfigKeys())
}
