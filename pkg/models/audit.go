package models

import "time"

// ResultStatus is the outcome of a gated tool invocation, as derived by the
// audit sink from the tool's result.
type ResultStatus string

const (
	ResultStatusSuccess       ResultStatus = "success"
	ResultStatusError         ResultStatus = "error"
	ResultStatusNotConfigured ResultStatus = "not_configured"
	ResultStatusUnknown       ResultStatus = "unknown"
)

// AuditRecord is an append-only record of one protected tool invocation.
type AuditRecord struct {
	UserID       string       `json:"user_id,omitempty"` // empty when the invocation ran with a nil UserContext
	ToolName     string       `json:"tool_name"`
	ParamsHash   string       `json:"params_hash"` // sha256(json(sorted(params)))[:16], 16 hex chars
	ResultStatus ResultStatus `json:"result_status"`
	LatencyMS    int64        `json:"latency_ms"`
	Timestamp    time.Time    `json:"timestamp"`
}

// UserContext flows with every query and gates protected tool calls.
// A nil *UserContext is valid only when strict mode is off.
type UserContext struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	OrgID  string   `json:"org_id,omitempty"`
}
