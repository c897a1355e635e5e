package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unergybot/tke/pkg/indexer"
	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/rbac"
	"github.com/unergybot/tke/pkg/store"
)

type fakeIndexer struct {
	indexed    *models.Case
	deleted    string
	indexErr   error
	deleteErr  error
}

func (f *fakeIndexer) IndexCase(_ context.Context, c *models.Case, _ bool) (indexer.Result, error) {
	if f.indexErr != nil {
		return indexer.Result{}, f.indexErr
	}
	f.indexed = c
	return indexer.Result{CasePoints: 1, IssuePoints: len(c.Issues)}, nil
}

func (f *fakeIndexer) DeleteCase(_ context.Context, caseID string) error {
	f.deleted = caseID
	return f.deleteErr
}

type fakePipeline struct {
	resp   *models.SearchResponse
	err    error
	called bool
}

func (f *fakePipeline) Search(context.Context, string, models.SearchMode, int, models.Filters, bool) (*models.SearchResponse, error) {
	f.called = true
	return f.resp, f.err
}

type fakeCases struct {
	existing *models.Case
	counts   store.RelationalCounts
}

func (f *fakeCases) UpsertCase(context.Context, *models.Case) error { return nil }
func (f *fakeCases) DeleteCase(context.Context, string) error       { return nil }
func (f *fakeCases) GetCase(context.Context, string) (*models.Case, error) {
	return f.existing, nil
}
func (f *fakeCases) Counts(context.Context) (store.RelationalCounts, error) {
	return f.counts, nil
}

type fakeVectors struct{ count uint64 }

func (f *fakeVectors) Count(context.Context, string) (uint64, error) { return f.count, nil }

type fakeQueryLog struct{ entries []*models.QueryLogEntry }

func (f *fakeQueryLog) Record(_ context.Context, e *models.QueryLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

type fakeSink struct{ calls int }

func (f *fakeSink) Record(context.Context, string, string, any, time.Time, any) { f.calls++ }

func TestQueryDeniedByGateNeverReachesPipeline(t *testing.T) {
	gate := rbac.New(map[string][]string{ToolQuery: {"admin"}}, true)
	pipeline := &fakePipeline{resp: &models.SearchResponse{}}
	o := New(Config{Pipeline: pipeline, Gate: gate})

	_, err := o.Query(context.Background(), nil, "q", QueryOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPermission))
	assert.False(t, pipeline.called)
}

func TestQuerySucceedsAndLogsWhenAllowed(t *testing.T) {
	pipeline := &fakePipeline{resp: &models.SearchResponse{Results: []models.SearchResult{{CaseID: "c1"}}, TotalFound: 1}}
	qlog := &fakeQueryLog{}
	o := New(Config{Pipeline: pipeline, QueryLog: qlog})

	resp, err := o.Query(context.Background(), nil, "q", QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalFound)
	require.Len(t, qlog.entries, 1)
	assert.Equal(t, "q", qlog.entries[0].Original)
}

func TestCheckConflictRejectsExistingCaseWithoutForceReindex(t *testing.T) {
	cases := &fakeCases{existing: &models.Case{CaseID: "dup-1"}}
	o := New(Config{Cases: cases})

	err := o.checkConflict(context.Background(), "dup-1", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
}

func TestCheckConflictAllowsForceReindex(t *testing.T) {
	cases := &fakeCases{existing: &models.Case{CaseID: "dup-1"}}
	o := New(Config{Cases: cases})

	assert.NoError(t, o.checkConflict(context.Background(), "dup-1", true))
}

func TestDeleteCaseInvokesIndexer(t *testing.T) {
	ix := &fakeIndexer{}
	o := New(Config{Indexer: ix})

	err := o.DeleteCase(context.Background(), nil, "case-1")
	require.NoError(t, err)
	assert.Equal(t, "case-1", ix.deleted)
}

func TestGetStatsAggregatesRelationalAndVectorCounts(t *testing.T) {
	cases := &fakeCases{counts: store.RelationalCounts{Cases: 3, Issues: 7}}
	vectors := &fakeVectors{count: 5}
	o := New(Config{Cases: cases, Vectors: vectors, CasesCollection: "cases", IssuesCollection: "issues"})

	stats, err := o.GetStats(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.RelationalCases)
	assert.Equal(t, int64(7), stats.RelationalIssues)
	assert.Equal(t, uint64(5), stats.VectorCases)
	assert.Equal(t, uint64(5), stats.VectorIssues)
}

func TestAuditRecordsEveryCall(t *testing.T) {
	sink := &fakeSink{}
	ix := &fakeIndexer{}
	o := New(Config{Indexer: ix, Sink: sink})

	_ = o.DeleteCase(context.Background(), nil, "case-1")
	assert.Equal(t, 1, sink.calls)
}
