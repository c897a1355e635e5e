package models

// Intent is the query-expander's classification of a natural-language query.
type Intent string

const (
	IntentStructured Intent = "STRUCTURED"
	IntentSemantic   Intent = "SEMANTIC"
	IntentHybrid     Intent = "HYBRID"
)

// SearchMode selects which retriever(s) the hybrid searcher dispatches to.
type SearchMode string

const (
	ModeAuto       SearchMode = "AUTO"
	ModeStructured SearchMode = "STRUCTURED"
	ModeSemantic   SearchMode = "SEMANTIC"
	ModeHybrid     SearchMode = "HYBRID"
)

// Granularity is the semantic searcher's case-vs-issue routing decision.
type Granularity string

const (
	GranularityCase   Granularity = "CASE_LEVEL"
	GranularityIssue  Granularity = "ISSUE_LEVEL"
	GranularityHybrid Granularity = "HYBRID"
)

// ResultType tags whether a search result came from the case or issue collection.
type ResultType string

const (
	ResultTypeCase  ResultType = "case"
	ResultTypeIssue ResultType = "issue"
)

// ResultSource tags which retriever(s) contributed a fused result.
type ResultSource string

const (
	SourceStructured ResultSource = "structured"
	SourceSemantic   ResultSource = "semantic"
)

// SearchResult is one ranked hit, carrying the payload fields from the data
// model plus ranking bookkeeping: Score (set by the retriever or by fusion)
// and Sources (set only by the hybrid path's fusion).
type SearchResult struct {
	Type    ResultType     `json:"type"`
	Score   float64        `json:"score"`
	Sources []ResultSource `json:"sources,omitempty"` // populated only by RRF fusion

	CaseID       string      `json:"case_id"`
	IssueID      string      `json:"issue_id,omitempty"`
	PartNumber   string      `json:"part_number,omitempty"`
	Material     string      `json:"material,omitempty"`
	TrialVersion string      `json:"trial_version,omitempty"`
	Category     string      `json:"category,omitempty"`
	Problem      string      `json:"problem,omitempty"`
	Solution     string      `json:"solution,omitempty"`
	ResultT1     TrialResult `json:"result_t1,omitempty"`
	ResultT2     TrialResult `json:"result_t2,omitempty"`
	Severity     Severity    `json:"severity,omitempty"`
	Tags         []string    `json:"tags,omitempty"`
	KeyInsights  []string    `json:"key_insights,omitempty"`
}

// SearchResponse is the hybrid searcher's top-level return value.
type SearchResponse struct {
	Query            string         `json:"query"`
	ExpandedQuery    string         `json:"expanded_query,omitempty"`
	Mode             SearchMode     `json:"mode"`
	IntentConfidence float64        `json:"intent_confidence"`
	SynonymsUsed     []string       `json:"synonyms_used,omitempty"`
	TotalFound       int            `json:"total_found"`
	Results          []SearchResult `json:"results"`
	GeneratedSQL     string         `json:"generated_sql,omitempty"` // only set when return_sql was requested
	DependencyError  bool           `json:"dependency_error,omitempty"`
}

// SQLResult is the tabular result of executing a generated SELECT.
type SQLResult struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	RowCount   int      `json:"row_count"`
	TotalCount int      `json:"total_count"`
	Error      string   `json:"error,omitempty"`
}

// Filters narrows a search by structured fields; any zero value means "unset".
type Filters struct {
	PartNumber   string `json:"part_number,omitempty"`
	Material     string `json:"material,omitempty"`
	TrialVersion string `json:"trial_version,omitempty"`
	Result       string `json:"result,omitempty"`
}
