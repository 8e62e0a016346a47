package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
upstream:
  base_url: http://catalog.local:8080/
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "catalog-bff", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, SourceHTTP, cfg.Upstream.Source)
	assert.Equal(t, "http://catalog.local:8080", cfg.Upstream.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "/collections", cfg.Upstream.CollectionsPath)
	assert.Equal(t, "/subscriptionplans", cfg.Upstream.PlansPath)
	assert.Equal(t, "/checkauth", cfg.Upstream.AuthCheckPath)
	assert.Equal(t, 10000, cfg.Upstream.Timeout)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, "catalog_sid", cfg.Session.CookieName)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Camunda.Enabled)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadFromFile_EnvOverridesAndExpansion(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "2500")
	t.Setenv("TEST_REDIS_ADDR", "127.0.0.1:6390")

	path := writeConfig(t, `
upstream:
  base_url: http://catalog.local
session:
  store: Redis
database:
  redis:
    address: ${TEST_REDIS_ADDR}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2500, cfg.Upstream.Timeout)
	assert.Equal(t, SessionStoreRedis, cfg.Session.Store, "store name is lower-cased")
	assert.Equal(t, "127.0.0.1:6390", cfg.Database.Redis.Address)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing base url",
			body:    "upstream:\n  source: http\n",
			wantErr: "upstream.base_url is required",
		},
		{
			name:    "unknown source",
			body:    "upstream:\n  source: ftp\n  base_url: http://x\n",
			wantErr: "upstream.source must be",
		},
		{
			name:    "postgres source needs host",
			body:    "upstream:\n  source: postgres\n  base_url: http://x\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "redis store needs address",
			body:    "upstream:\n  base_url: http://x\nsession:\n  store: redis\n",
			wantErr: "database.redis.address is required",
		},
		{
			name:    "plan cache needs redis",
			body:    "upstream:\n  base_url: http://x\ncache:\n  plans_enabled: true\n",
			wantErr: "database.redis.address is required",
		},
		{
			name:    "unknown session store",
			body:    "upstream:\n  base_url: http://x\nsession:\n  store: disk\n",
			wantErr: "session.store must be",
		},
		{
			name:    "camunda enabled without broker",
			body:    "upstream:\n  base_url: http://x\ncamunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_PostgresSource(t *testing.T) {
	path := writeConfig(t, `
upstream:
  source: postgres
  base_url: http://auth.local
database:
  postgres:
    host: db
    database: catalog
    user: reader
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, SourcePostgres, cfg.Upstream.Source)
	assert.Equal(t, "host=db port=5432 user=reader password= dbname=catalog sslmode=disable", cfg.Database.Postgres.GetDSN())
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}
