// Package audit implements C13: a best-effort append-only sink that records
// one AuditRecord per gated tool invocation, deriving result_status from the
// tool's own result value rather than requiring callers to classify it.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/unergybot/tke/pkg/models"
)

// Recorder is the subset of pkg/store.AuditStore the sink needs.
type Recorder interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
}

// Sink builds and best-effort delivers audit records.
type Sink struct {
	store Recorder
}

// New builds a Sink over store.
func New(store Recorder) *Sink {
	return &Sink{store: store}
}

// Record builds the audit record for one invocation and appends it to the
// durable store. Delivery is best-effort: append failures are logged, never
// returned, so a broken audit sink can never fail the caller's request.
func (s *Sink) Record(ctx context.Context, userID, toolName string, params any, start time.Time, result any) {
	rec := &models.AuditRecord{
		UserID:       userID,
		ToolName:     toolName,
		ParamsHash:   paramsHash(params),
		ResultStatus: resultStatus(result),
		LatencyMS:    time.Since(start).Milliseconds(),
		Timestamp:    start,
	}

	if err := s.store.Append(ctx, rec); err != nil {
		slog.Error("audit append failed", "tool_name", toolName, "error", err)
	}
}

// paramsHash computes sha256(json(sorted(params)))[:16 hex chars]. Params is
// first round-tripped through a generic map so that keys sort
// deterministically regardless of struct field order.
func paramsHash(params any) string {
	normalized := normalize(params)
	encoded, err := json.Marshal(normalized)
	if err != nil {
		encoded = []byte(`"unserializable"`)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:16]
}

// normalize re-marshals params through map[string]any so object keys sort
// the same way regardless of input shape (struct, map, pointer).
func normalize(params any) any {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	return sortKeys(generic)
}

func sortKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]any, len(val))
		for _, k := range keys {
			ordered[k] = sortKeys(val[k])
		}
		return ordered
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = sortKeys(e)
		}
		return out
	default:
		return val
	}
}

// resultStatus derives a ResultStatus from a tool's result value:
//   - a map containing an "error" key                 -> error
//   - a string status containing "not_configured"      -> not_configured
//   - a string containing "error" or "fail"             -> error
//   - a non-empty result with none of the above         -> success
//   - nil / empty                                       -> unknown
func resultStatus(result any) models.ResultStatus {
	if result == nil {
		return models.ResultStatusUnknown
	}

	if m, ok := result.(map[string]any); ok {
		if _, hasError := m["error"]; hasError {
			return models.ResultStatusError
		}
		if status, ok := m["status"].(string); ok {
			return statusFromString(status)
		}
		if len(m) == 0 {
			return models.ResultStatusUnknown
		}
		return models.ResultStatusSuccess
	}

	if s, ok := result.(string); ok {
		if s == "" {
			return models.ResultStatusUnknown
		}
		return statusFromString(s)
	}

	return models.ResultStatusSuccess
}

func statusFromString(s string) models.ResultStatus {
	lower := strings.ToLower(s)
	switch {
	case lower == "":
		return models.ResultStatusUnknown
	case strings.Contains(lower, "not_configured"):
		return models.ResultStatusNotConfigured
	case strings.Contains(lower, "error"), strings.Contains(lower, "fail"):
		return models.ResultStatusError
	default:
		return models.ResultStatusSuccess
	}
}
