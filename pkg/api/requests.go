package api

// IngestRequest is the body of POST /cases.
type IngestRequest struct {
	Path                 string  `json:"path" binding:"required"`
	Validate             bool    `json:"validate"`
	AutoCorrectThreshold float64 `json:"auto_correct_threshold,omitempty"`
	VLMEnrich            bool    `json:"vlm_enrich"`
	ForceReindex         bool    `json:"force_reindex"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Text       string          `json:"text" binding:"required"`
	Mode       string          `json:"mode,omitempty"`
	TopK       int             `json:"top_k,omitempty"`
	Filters    queryFilters    `json:"filters,omitempty"`
	ReturnSQL  bool            `json:"return_sql,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
}

// queryFilters mirrors models.Filters for request binding purposes.
type queryFilters struct {
	PartNumber   string `json:"part_number,omitempty"`
	Material     string `json:"material,omitempty"`
	TrialVersion string `json:"trial_version,omitempty"`
	Result       string `json:"result,omitempty"`
}
