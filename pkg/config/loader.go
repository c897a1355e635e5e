package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors Config's YAML-visible fields. Kept separate from Config
// so Config can carry the unexported configDir field without yaml trying
// (and failing) to marshal it.
type yamlConfig struct {
	HTTPPort       string               `yaml:"http_port,omitempty"`
	Database       DatabaseConfig       `yaml:"database,omitempty"`
	Redis          RedisConfig          `yaml:"redis,omitempty"`
	Qdrant         QdrantConfig         `yaml:"qdrant,omitempty"`
	Services       ServicesConfig       `yaml:"services,omitempty"`
	Validation     ValidationConfig     `yaml:"validation,omitempty"`
	RBAC           RBACConfig           `yaml:"rbac,omitempty"`
	CacheTTL       CacheTTLConfig       `yaml:"cache_ttl,omitempty"`
	VLMConcurrency VLMConcurrencyConfig `yaml:"vlm_concurrency,omitempty"`
}

// Initialize loads tke.yaml from configDir, merges it over the built-in
// defaults, validates the result, and returns a ready-to-use Config.
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("loading configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration loaded", "protected_tools", len(cfg.RBAC.ProtectedToolRoles))
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	path := filepath.Join(configDir, "tke.yaml")

	var user yamlConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
	case os.IsNotExist(err):
		slog.Warn("tke.yaml not found, using built-in defaults only", "path", path)
	default:
		return nil, NewLoadError(path, err)
	}

	cfg := defaultConfig()
	cfg.configDir = configDir

	// mergo.WithOverride: non-zero fields from the user file win over defaults.
	if err := mergo.Merge(cfg, &Config{
		HTTPPort:       user.HTTPPort,
		Database:       user.Database,
		Redis:          user.Redis,
		Qdrant:         user.Qdrant,
		Services:       user.Services,
		Validation:     user.Validation,
		RBAC:           user.RBAC,
		CacheTTL:       user.CacheTTL,
		VLMConcurrency: user.VLMConcurrency,
	}, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	return cfg, nil
}
