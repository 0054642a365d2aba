package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_TypesenseConfig(t *testing.T) {
	t.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	t.Setenv("TYPESENSE_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"TYPESENSE_URL", "TYPESENSE_API_KEY", "SEARCH_BACKEND", "SEARCH_CHUNK_SIZE", "SEARCH_SCROLL_KEEP_ALIVE", "OPENSEARCH_ADDRESSES"} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, "xyz", cfg.Typesense.APIKey)
	assert.Equal(t, "opensearch", cfg.Search.Backend)
	assert.Equal(t, 1000, cfg.Search.ChunkSize)
	assert.Equal(t, 10000, cfg.Search.MaxResultWindow)
	assert.Equal(t, 2*time.Minute, cfg.Search.ScrollKeepAlive)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.OpenSearch.Addresses)
}

func TestLoad_SearchOverrides(t *testing.T) {
	t.Setenv("SEARCH_BACKEND", "memory")
	t.Setenv("SEARCH_CHUNK_SIZE", "250")
	t.Setenv("SEARCH_SCROLL_KEEP_ALIVE", "90s")
	t.Setenv("OPENSEARCH_ADDRESSES", "http://a:9200, http://b:9200,")
	t.Setenv("SEARCH_SEED_DIR", "/var/lib/seed")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Search.Backend)
	assert.Equal(t, 250, cfg.Search.ChunkSize)
	assert.Equal(t, 90*time.Second, cfg.Search.ScrollKeepAlive)
	assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.OpenSearch.Addresses)
	assert.Equal(t, "/var/lib/seed", cfg.Search.SeedDir)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("SEARCH_BACKEND", "solr")

	_, err := Load()
	assert.Error(t, err)
}

func TestAppConfig_IndexName(t *testing.T) {
	app := AppConfig{Env: "production"}
	assert.Equal(t, "companies_production", app.IndexName("companies"))
}
