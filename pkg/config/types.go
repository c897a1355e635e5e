package config

import "time"

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode,omitempty"`
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
}

// RedisConfig holds cache/job-store connection settings (C11, C2 job store).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// QdrantConfig holds the dual vector-collection store settings (C6, C9).
type QdrantConfig struct {
	Addr             string `yaml:"addr"`
	APIKey           string `yaml:"api_key,omitempty"`
	UseTLS           bool   `yaml:"use_tls,omitempty"`
	CasesCollection  string `yaml:"cases_collection,omitempty"`
	IssuesCollection string `yaml:"issues_collection,omitempty"`
	VectorDim        int    `yaml:"vector_dim,omitempty"`
}

// ServicesConfig holds base URLs/credentials for the external black-box
// services the pipeline depends on (embedding, reranking, chat LLM, VLM).
type ServicesConfig struct {
	EmbedURL   string `yaml:"embed_url"`
	RerankURL  string `yaml:"rerank_url"`
	LLMBaseURL string `yaml:"llm_base_url"`
	LLMAPIKey  string `yaml:"llm_api_key,omitempty"`
	LLMModel   string `yaml:"llm_model,omitempty"`

	VLMBaseURL    string `yaml:"vlm_base_url"`
	VLMAPIKey     string `yaml:"vlm_api_key,omitempty"`
	VLMWebhookURL string `yaml:"vlm_webhook_url,omitempty"`
}

// ValidationConfig tunes the C5 page-render + VLM-correction pass.
type ValidationConfig struct {
	Enabled              bool    `yaml:"enabled"`
	AutoCorrectThreshold float64 `yaml:"auto_correct_threshold,omitempty"`
	PageRenderDPI        int     `yaml:"page_render_dpi,omitempty"`
	RowsPerPageFallback  int     `yaml:"rows_per_page_fallback,omitempty"`
	LibreOfficePath      string  `yaml:"libreoffice_path,omitempty"`
	MaxPages             int     `yaml:"max_pages,omitempty"` // 0 = unlimited
	MaxRetries           int     `yaml:"max_retries,omitempty"`
}

// RBACConfig holds the per-tool role allowlist and the strict-mode flag (C12).
type RBACConfig struct {
	StrictMode         bool                `yaml:"strict_mode"`
	ProtectedToolRoles map[string][]string `yaml:"protected_tool_roles,omitempty"`
}

// CacheTTLConfig holds per-namespace TTLs for C11.
type CacheTTLConfig struct {
	Embedding time.Duration `yaml:"embedding,omitempty"`
	Search    time.Duration `yaml:"search,omitempty"`
	Rerank    time.Duration `yaml:"rerank,omitempty"`
}

// VLMConcurrencyConfig bounds in-flight per-image VLM submissions.
type VLMConcurrencyConfig struct {
	MaxInFlight int           `yaml:"max_in_flight,omitempty"`
	JobTimeout  time.Duration `yaml:"job_timeout,omitempty"`
}
