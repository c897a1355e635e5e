package config

// Config is the umbrella configuration object built once at startup and
// passed down to every component constructor. Nothing below main.go reaches
// into the environment or the filesystem directly.
type Config struct {
	configDir string

	Database       DatabaseConfig
	Redis          RedisConfig
	Qdrant         QdrantConfig
	Services       ServicesConfig
	Validation     ValidationConfig
	RBAC           RBACConfig
	CacheTTL       CacheTTLConfig
	VLMConcurrency VLMConcurrencyConfig

	HTTPPort string
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string { return c.configDir }

// Stats summarizes the loaded configuration for startup/health logging.
type Stats struct {
	ProtectedTools int
	StrictMode     bool
}

// Stats returns a small snapshot useful for the health endpoint.
func (c *Config) Stats() Stats {
	return Stats{
		ProtectedTools: len(c.RBAC.ProtectedToolRoles),
		StrictMode:     c.RBAC.StrictMode,
	}
}
