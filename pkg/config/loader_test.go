package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tke.yaml"), []byte(content), 0o644))
}

func TestInitializeFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, dir, cfg.ConfigDir())
}

func TestInitializeMergesUserValuesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
http_port: "9090"
database:
  host: db.internal
  database: tke
qdrant:
  addr: qdrant.internal:6334
  cases_collection: cases
  issues_collection: issues
  vector_dim: 1024
`)

	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "tke", cfg.Database.Database)
	// Unset fields keep their defaults.
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "qdrant.internal:6334", cfg.Qdrant.Addr)
}

func TestInitializeExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TKE_DB_PASSWORD", "s3cr3t")
	writeConfigFile(t, dir, `
database:
  host: localhost
  database: tke
  password: ${TKE_DB_PASSWORD}
`)

	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Database.Password)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "database: [this is not valid")

	_, err := Initialize(dir)
	require.Error(t, err)
}

func TestInitializeRejectsFailedValidation(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
database:
  host: localhost
  database: tke
vlm_concurrency:
  max_in_flight: -1
`)

	_, err := Initialize(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestLoadFallsBackToDefaultsWhenDirectoryMissing(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "does-not-exist-and-is-fine"))
	// A missing config directory is treated the same as a missing file:
	// defaults apply and no error is returned.
	require.NoError(t, err)
}
