package textsql

import (
	_ "embed"
	"encoding/json"
)

//go:embed schemas.json
var schemasJSON []byte

// tableSchema is one static table description for layer 1 of the prompt.
type tableSchema struct {
	Table             string   `json:"table"`
	Description       string   `json:"description"`
	ImportantColumns  []string `json:"important_columns"`
	Notes             string   `json:"notes"`
}

func loadTableSchemas() ([]tableSchema, error) {
	var schemas []tableSchema
	if err := json.Unmarshal(schemasJSON, &schemas); err != nil {
		return nil, err
	}
	return schemas, nil
}

// businessRules are layer 2's static gotchas, gathered from the corpus's
// own idiosyncrasies (ASR-noisy columns, JSONB array columns, etc).
var businessRules = []string{
	"result_t1/result_t2 only ever hold 'OK', 'NG', or empty string; never compare against other values.",
	"A case with zero issues is valid (total_issues=0); do not assume every case has rows in issues.",
	"severity, defect_types, tags, key_insights, suggested_actions describe images rolled up onto the owning issue, not raw per-image data.",
	"Always filter soft-deleted rows is not applicable: deletion in this schema is a hard DELETE (issues cascade from cases), so no deleted_at column exists.",
}
