package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unergybot/tke/pkg/models"
)

type fakeRecorder struct {
	recorded *models.AuditRecord
	err      error
}

func (f *fakeRecorder) Append(_ context.Context, rec *models.AuditRecord) error {
	f.recorded = rec
	return f.err
}

func TestRecordDerivesSuccessFromPlainResult(t *testing.T) {
	rec := &fakeRecorder{}
	s := New(rec)

	s.Record(context.Background(), "u1", "query", map[string]any{"b": 1, "a": 2}, time.Now(), map[string]any{"results": []any{}})

	require.NotNil(t, rec.recorded)
	assert.Equal(t, models.ResultStatusSuccess, rec.recorded.ResultStatus)
	assert.Equal(t, "query", rec.recorded.ToolName)
	assert.Len(t, rec.recorded.ParamsHash, 16)
}

func TestRecordDerivesErrorFromErrorKey(t *testing.T) {
	rec := &fakeRecorder{}
	s := New(rec)

	s.Record(context.Background(), "u1", "ingest_case", map[string]any{}, time.Now(), map[string]any{"error": "boom"})

	assert.Equal(t, models.ResultStatusError, rec.recorded.ResultStatus)
}

func TestRecordDerivesNotConfiguredFromStatusString(t *testing.T) {
	rec := &fakeRecorder{}
	s := New(rec)

	s.Record(context.Background(), "u1", "get_stats", nil, time.Now(), map[string]any{"status": "vlm_not_configured"})

	assert.Equal(t, models.ResultStatusNotConfigured, rec.recorded.ResultStatus)
}

func TestRecordDerivesUnknownFromEmptyResult(t *testing.T) {
	rec := &fakeRecorder{}
	s := New(rec)

	s.Record(context.Background(), "u1", "get_stats", nil, time.Now(), "")

	assert.Equal(t, models.ResultStatusUnknown, rec.recorded.ResultStatus)
}

func TestParamsHashIsOrderIndependent(t *testing.T) {
	h1 := paramsHash(map[string]any{"a": 1, "b": 2})
	h2 := paramsHash(map[string]any{"b": 2, "a": 1})
	assert.Equal(t, h1, h2)
}

func TestRecordDoesNotPanicWhenAppendFails(t *testing.T) {
	rec := &fakeRecorder{err: assertErr{}}
	s := New(rec)
	assert.NotPanics(t, func() {
		s.Record(context.Background(), "u1", "query", nil, time.Now(), "ok")
	})
}

type assertErr struct{}

func (assertErr) Error() string { return "append failed" }
