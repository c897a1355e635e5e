package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/vectorstore"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i)}
	}
	return vecs, nil
}

type fakeVectors struct {
	upserts map[string][]vectorstore.Point
	deletes []string
	err     error
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{upserts: map[string][]vectorstore.Point{}}
}

func (f *fakeVectors) EnsureCollection(context.Context, string, int) error { return nil }

func (f *fakeVectors) UpsertBatch(_ context.Context, collection string, points []vectorstore.Point) error {
	if f.err != nil {
		return f.err
	}
	f.upserts[collection] = append(f.upserts[collection], points...)
	return nil
}

func (f *fakeVectors) DeleteByMatch(_ context.Context, collection, key, value string) error {
	f.deletes = append(f.deletes, collection+":"+key+"="+value)
	return nil
}

type fakeCases struct {
	upserted []*models.Case
	deleted  []string
	err      error
}

func (f *fakeCases) UpsertCase(_ context.Context, c *models.Case) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, c)
	return nil
}

func (f *fakeCases) DeleteCase(_ context.Context, caseID string) error {
	f.deleted = append(f.deleted, caseID)
	return nil
}

func sampleCase() *models.Case {
	return &models.Case{
		CaseID:      "TS-PN-1-INT-1",
		PartNumber:  "PN-1",
		Material:    "HIPS",
		TotalIssues: 1,
		KeyInsights: []string{"调整模温有效"},
		Issues: []*models.Issue{
			{
				IssueID:  "TS-PN-1-INT-1-1-21",
				CaseID:   "TS-PN-1-INT-1",
				Problem:  "披锋问题",
				Solution: "调整模温",
				ResultT1: models.ResultNG,
				ResultT2: models.ResultOK,
				Images: []*models.ImageRef{
					{
						ImageID:          "img1",
						DefectType:       "flash",
						Severity:         models.SeverityHigh,
						Tags:             []string{"外观"},
						KeyInsights:      []string{"模温过高"},
						SuggestedActions: []string{"降低模温"},
						MappingValidation: models.MappingValidation{
							Confidence: 0.92,
						},
					},
				},
			},
		},
	}
}

func TestIndexCaseWritesBothStores(t *testing.T) {
	embed := &fakeEmbedder{}
	vectors := newFakeVectors()
	cases := &fakeCases{}
	ix := New(embed, vectors, cases, "cases", "issues")

	result, err := ix.IndexCase(context.Background(), sampleCase(), false)
	require.NoError(t, err)
	assert.Equal(t, Result{CasePoints: 1, IssuePoints: 1}, result)
	require.Len(t, cases.upserted, 1)
	require.Len(t, vectors.upserts["cases"], 1)
	require.Len(t, vectors.upserts["issues"], 1)

	issuePoint := vectors.upserts["issues"][0]
	assert.Equal(t, "flash", issuePoint.Payload["defect_types"].([]string)[0])
	assert.Equal(t, string(models.SeverityHigh), issuePoint.Payload["severity"])
	assert.InDelta(t, 0.92, issuePoint.Payload["vlm_confidence"], 0.001)
}

func TestIndexCaseForceReindexDeletesFirst(t *testing.T) {
	embed := &fakeEmbedder{}
	vectors := newFakeVectors()
	cases := &fakeCases{}
	ix := New(embed, vectors, cases, "cases", "issues")

	_, err := ix.IndexCase(context.Background(), sampleCase(), true)
	require.NoError(t, err)
	assert.Contains(t, vectors.deletes, "cases:case_id=TS-PN-1-INT-1")
	assert.Contains(t, vectors.deletes, "issues:case_id=TS-PN-1-INT-1")
	assert.Contains(t, cases.deleted, "TS-PN-1-INT-1")
}

func TestIndexCaseSkipsVectorWriteWhenRelationalWriteFails(t *testing.T) {
	embed := &fakeEmbedder{}
	vectors := newFakeVectors()
	cases := &fakeCases{err: errors.New("db down")}
	ix := New(embed, vectors, cases, "cases", "issues")

	_, err := ix.IndexCase(context.Background(), sampleCase(), false)
	require.Error(t, err)
	assert.Empty(t, vectors.upserts["cases"])
	assert.Empty(t, embed.calls)
}

func TestIndexCaseSurfacesStateInconsistencyWhenVectorWriteFails(t *testing.T) {
	embed := &fakeEmbedder{}
	vectors := newFakeVectors()
	vectors.err = errors.New("qdrant unreachable")
	cases := &fakeCases{}
	ix := New(embed, vectors, cases, "cases", "issues")

	_, err := ix.IndexCase(context.Background(), sampleCase(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStateInconsistency)
	assert.Len(t, cases.upserted, 1)
}

func TestAggregateIssueDedupsTagsAndTakesMaxSeverity(t *testing.T) {
	issue := &models.Issue{
		Images: []*models.ImageRef{
			{Tags: []string{"a", "b"}, Severity: models.SeverityLow},
			{Tags: []string{"a", "c"}, Severity: models.SeverityHigh},
		},
	}
	aggregateIssue(issue)
	assert.Equal(t, []string{"a", "b", "c"}, issue.Tags)
	assert.Equal(t, models.SeverityHigh, issue.Severity)
	assert.True(t, issue.HasImages)
	assert.Equal(t, 2, issue.ImageCount)
}

func TestAggregateIssueZeroConfidenceWithNoImages(t *testing.T) {
	issue := &models.Issue{}
	aggregateIssue(issue)
	assert.Equal(t, float64(0), issue.VLMConfidence)
	assert.False(t, issue.HasImages)
}

func TestComposeCaseSummaryIncludesHeaderAndTopProblems(t *testing.T) {
	summary := composeCaseSummary(sampleCase())
	assert.Contains(t, summary, "零件号 PN-1 材料 HIPS 1 个问题")
	assert.Contains(t, summary, "披锋问题")
	assert.Contains(t, summary, "调整模温有效")
}

func TestComposeIssueTextSkipsEmptyFields(t *testing.T) {
	issue := &models.Issue{Problem: "披锋问题"}
	text := composeIssueText(issue)
	assert.Equal(t, "问题:披锋问题", text)
}
