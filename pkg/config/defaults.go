package config

import "time"

// defaultConfig returns the built-in configuration applied before any
// user-provided tke.yaml is merged on top: auto-correct threshold 0.90,
// page render DPI 150, rows-per-page fallback 50, cache TTLs 24h/5m/1h,
// VLM concurrency 4 in-flight.
func defaultConfig() *Config {
	return &Config{
		HTTPPort: "8080",
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "tke",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Qdrant: QdrantConfig{
			Addr:             "localhost:6334",
			CasesCollection:  "cases",
			IssuesCollection: "issues",
			VectorDim:        1024,
		},
		Validation: ValidationConfig{
			Enabled:              true,
			AutoCorrectThreshold: 0.90,
			PageRenderDPI:        150,
			RowsPerPageFallback:  50,
			LibreOfficePath:      "libreoffice",
			MaxRetries:           3,
		},
		RBAC: RBACConfig{
			StrictMode:         false,
			ProtectedToolRoles: map[string][]string{},
		},
		CacheTTL: CacheTTLConfig{
			Embedding: 24 * time.Hour,
			Search:    5 * time.Minute,
			Rerank:    1 * time.Hour,
		},
		VLMConcurrency: VLMConcurrencyConfig{
			MaxInFlight: 4,
			JobTimeout:  600 * time.Second,
		},
	}
}
