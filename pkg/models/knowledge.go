package models

import "time"

// Synonym maps a colloquial/ASR surface form to a canonical term.
type Synonym struct {
	Canonical  string    `json:"canonical"`
	Surface    string    `json:"surface"`
	TermType   string    `json:"term_type"`
	Confidence float64   `json:"confidence"`
	UsageCount int       `json:"usage_count"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
	Source     string    `json:"source"`
}

// Learning is an error-pattern record surfaced into the text-to-SQL prompt.
type Learning struct {
	Title          string    `json:"title"`
	Text           string    `json:"text"`
	LearningType   string    `json:"learning_type"`
	TablesAffected []string  `json:"tables_affected,omitempty"`
	UsageCount     int       `json:"usage_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// ValidatedQuery is a known-good question/SQL example seeded to text-to-SQL.
type ValidatedQuery struct {
	Name       string   `json:"name"`
	Question   string   `json:"question"`
	SQL        string   `json:"sql"`
	TablesUsed []string `json:"tables_used,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// QueryLogEntry records one natural-language query for later learning/tuning.
type QueryLogEntry struct {
	Original        string    `json:"original"`
	Expanded        string    `json:"expanded,omitempty"`
	Intent          string    `json:"intent,omitempty"`
	SQL             string    `json:"sql,omitempty"`
	ResultCount     int       `json:"result_count"`
	ExecutionTimeMS int       `json:"execution_time_ms"`
	UserFeedback    string    `json:"user_feedback,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
