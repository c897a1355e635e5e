package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigConvenienceMethods(t *testing.T) {
	cfg := &Config{
		configDir: "/test/config",
		RBAC: RBACConfig{
			StrictMode: true,
			ProtectedToolRoles: map[string][]string{
				"ingest_case": {"admin"},
			},
		},
	}

	t.Run("ConfigDir", func(t *testing.T) {
		assert.Equal(t, "/test/config", cfg.ConfigDir())
	})

	t.Run("Stats", func(t *testing.T) {
		stats := cfg.Stats()
		assert.Equal(t, 1, stats.ProtectedTools)
		assert.True(t, stats.StrictMode)
	})
}

func TestConfigStatsEmptyRegistry(t *testing.T) {
	cfg := &Config{}
	stats := cfg.Stats()
	assert.Equal(t, 0, stats.ProtectedTools)
	assert.False(t, stats.StrictMode)
}
