package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/orchestrator"
	"github.com/unergybot/tke/pkg/store"
)

type fakeOrchestrator struct {
	ingestCaseID string
	ingestErr    error
	queryResp    *models.SearchResponse
	queryErr     error
	queryOpts    orchestrator.QueryOptions
	deleteErr    error
	stats        *orchestrator.Stats
	statsErr     error
}

func (f *fakeOrchestrator) IngestCase(context.Context, *models.UserContext, string, orchestrator.IngestOptions) (string, error) {
	return f.ingestCaseID, f.ingestErr
}

func (f *fakeOrchestrator) Query(_ context.Context, _ *models.UserContext, _ string, opts orchestrator.QueryOptions) (*models.SearchResponse, error) {
	f.queryOpts = opts
	return f.queryResp, f.queryErr
}

func (f *fakeOrchestrator) DeleteCase(context.Context, *models.UserContext, string) error {
	return f.deleteErr
}

func (f *fakeOrchestrator) GetStats(context.Context, *models.UserContext) (*orchestrator.Stats, error) {
	return f.stats, f.statsErr
}

type fakeReviewQueue struct {
	items      []*store.ReviewItem
	listErr    error
	resolved   bool
	resolveErr error
}

func (f *fakeReviewQueue) ListPending(context.Context) ([]*store.ReviewItem, error) {
	return f.items, f.listErr
}

func (f *fakeReviewQueue) Resolve(context.Context, string, string, string, bool) error {
	f.resolved = true
	return f.resolveErr
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestIngestCaseHandlerReturnsCaseID(t *testing.T) {
	orch := &fakeOrchestrator{ingestCaseID: "case-1"}
	s := NewServer(orch, &fakeReviewQueue{}, nil)

	rec := doRequest(s, http.MethodPost, "/cases", IngestRequest{Path: "/data/case.xlsx"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "case-1", resp.CaseID)
}

func TestIngestCaseHandlerMapsConflictToHTTP409(t *testing.T) {
	orch := &fakeOrchestrator{ingestErr: fmt.Errorf("%w: case case-1 already indexed", models.ErrConflict)}
	s := NewServer(orch, &fakeReviewQueue{}, nil)

	rec := doRequest(s, http.MethodPost, "/cases", IngestRequest{Path: "/data/case.xlsx"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIngestCaseHandlerRejectsMissingPath(t *testing.T) {
	s := NewServer(&fakeOrchestrator{}, &fakeReviewQueue{}, nil)

	rec := doRequest(s, http.MethodPost, "/cases", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryHandlerDefaultsModeToAuto(t *testing.T) {
	orch := &fakeOrchestrator{queryResp: &models.SearchResponse{Query: "leak", TotalFound: 2}}
	s := NewServer(orch, &fakeReviewQueue{}, nil)

	rec := doRequest(s, http.MethodPost, "/query", QueryRequest{Text: "leak"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalFound)
	assert.Equal(t, models.ModeAuto, orch.queryOpts.Mode)
}

func TestQueryHandlerMapsPermissionErrorToHTTP403(t *testing.T) {
	orch := &fakeOrchestrator{queryErr: models.ErrPermission}
	s := NewServer(orch, &fakeReviewQueue{}, nil)

	rec := doRequest(s, http.MethodPost, "/query", QueryRequest{Text: "leak"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteCaseHandlerSucceeds(t *testing.T) {
	s := NewServer(&fakeOrchestrator{}, &fakeReviewQueue{}, nil)

	rec := doRequest(s, http.MethodDelete, "/cases/case-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsHandlerReturnsAggregatedCounts(t *testing.T) {
	orch := &fakeOrchestrator{stats: &orchestrator.Stats{RelationalCases: 3, VectorCases: 3}}
	s := NewServer(orch, &fakeReviewQueue{}, nil)

	rec := doRequest(s, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats orchestrator.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.RelationalCases)
}

func TestListReviewQueueHandlerReturnsItems(t *testing.T) {
	reviews := &fakeReviewQueue{items: []*store.ReviewItem{{CaseID: "c1", IssueID: "i1"}}}
	s := NewServer(&fakeOrchestrator{}, reviews, nil)

	rec := doRequest(s, http.MethodGet, "/review-queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveReviewHandlerInvokesReviewQueue(t *testing.T) {
	reviews := &fakeReviewQueue{}
	s := NewServer(&fakeOrchestrator{}, reviews, nil)

	rec := doRequest(s, http.MethodPost, "/review-queue/issue-1/resolve", ResolveReviewRequest{ImageID: "img-1", Accept: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reviews.resolved)
}

func TestHealthHandlerReturnsHealthyWhenNoDBConfigured(t *testing.T) {
	s := NewServer(&fakeOrchestrator{}, &fakeReviewQueue{}, nil)

	rec := doRequest(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
