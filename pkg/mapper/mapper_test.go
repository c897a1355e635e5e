package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unergybot/tke/pkg/models"
)

func issueAt(row int) *models.Issue {
	return &models.Issue{ExcelRow: row}
}

func TestAssignPicksClosestAboveIssue(t *testing.T) {
	issues := []*models.Issue{issueAt(21), issueAt(40), issueAt(60)}
	img := &models.ImageRef{Anchor: models.Anchor{RowStart: 42, RowEnd: 58}}

	dropped := Assign(issues, []*models.ImageRef{img})

	assert.Empty(t, dropped)
	assert.Len(t, issues[1].Images, 1)
	assert.Empty(t, issues[0].Images)
	assert.Empty(t, issues[2].Images)
	assert.Equal(t, models.MatchPrimary, img.SpatialMatch.Type)
	assert.InDelta(t, 0.8, img.SpatialMatch.Confidence, 0.001)
}

func TestAssignDropsImageWithNoCandidateMatch(t *testing.T) {
	issues := []*models.Issue{issueAt(5)}
	img := &models.ImageRef{Anchor: models.Anchor{RowStart: 200, RowEnd: 210}}

	dropped := Assign(issues, []*models.ImageRef{img})

	require.Len(t, dropped, 1)
	assert.Empty(t, issues[0].Images)
}

func TestAssignRecomputesHasImagesAndCount(t *testing.T) {
	issue := issueAt(10)
	img := &models.ImageRef{Anchor: models.Anchor{RowStart: 12, RowEnd: 20}}

	Assign([]*models.Issue{issue}, []*models.ImageRef{img})

	assert.True(t, issue.HasImages)
	assert.Equal(t, 1, issue.ImageCount)
	assert.Equal(t, 1, issue.ImageMappingStatus.Total)
}

func TestAssignInlineForShortSpanOverlap(t *testing.T) {
	issue := issueAt(15)
	img := &models.ImageRef{Anchor: models.Anchor{RowStart: 14, RowEnd: 16}}

	Assign([]*models.Issue{issue}, []*models.ImageRef{img})

	assert.Equal(t, models.MatchInline, img.SpatialMatch.Type)
	assert.InDelta(t, 0.85, img.SpatialMatch.Confidence, 0.001)
}

func TestAssignTopOffsetBoostCapsAtOne(t *testing.T) {
	issue := issueAt(39)
	img := &models.ImageRef{Anchor: models.Anchor{RowStart: 40, RowEnd: 50, RowOffsTop: 200000}}

	Assign([]*models.Issue{issue}, []*models.ImageRef{img})

	assert.LessOrEqual(t, img.SpatialMatch.Confidence, 1.0)
}
