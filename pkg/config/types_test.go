package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDatabaseConfigUnmarshalYAML(t *testing.T) {
	input := `
host: db.internal
port: 5432
user: tke
password: secret
database: tke
ssl_mode: require
conn_max_lifetime: 45m
`
	var cfg DatabaseConfig
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "tke", cfg.User)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, 45*time.Minute, cfg.ConnMaxLifetime)
}

func TestQdrantConfigUnmarshalYAML(t *testing.T) {
	input := `
addr: qdrant.internal:6334
cases_collection: cases
issues_collection: issues
vector_dim: 1024
`
	var cfg QdrantConfig
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))

	assert.Equal(t, "qdrant.internal:6334", cfg.Addr)
	assert.Equal(t, "cases", cfg.CasesCollection)
	assert.Equal(t, "issues", cfg.IssuesCollection)
	assert.Equal(t, 1024, cfg.VectorDim)
}

func TestRBACConfigUnmarshalYAML(t *testing.T) {
	input := `
strict_mode: true
protected_tool_roles:
  ingest_case: [admin]
  resolve_review: [admin, reviewer]
`
	var cfg RBACConfig
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))

	assert.True(t, cfg.StrictMode)
	assert.Equal(t, []string{"admin"}, cfg.ProtectedToolRoles["ingest_case"])
	assert.Equal(t, []string{"admin", "reviewer"}, cfg.ProtectedToolRoles["resolve_review"])
}

func TestCacheTTLConfigUnmarshalYAML(t *testing.T) {
	input := `
embedding: 24h
search: 5m
rerank: 1h
`
	var cfg CacheTTLConfig
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))

	assert.Equal(t, 24*time.Hour, cfg.Embedding)
	assert.Equal(t, 5*time.Minute, cfg.Search)
	assert.Equal(t, time.Hour, cfg.Rerank)
}

func TestValidationConfigUnmarshalYAML(t *testing.T) {
	input := `
enabled: true
auto_correct_threshold: 0.9
page_render_dpi: 150
rows_per_page_fallback: 50
libreoffice_path: /usr/bin/libreoffice
max_retries: 3
`
	var cfg ValidationConfig
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))

	assert.True(t, cfg.Enabled)
	assert.InDelta(t, 0.9, cfg.AutoCorrectThreshold, 0.0001)
	assert.Equal(t, 150, cfg.PageRenderDPI)
	assert.Equal(t, 50, cfg.RowsPerPageFallback)
	assert.Equal(t, 3, cfg.MaxRetries)
}
