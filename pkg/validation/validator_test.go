package validation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/vlmclient"
)

func sampleCaseForValidation() *models.Case {
	img := &models.ImageRef{ImageID: "img1", FilePath: "/images/img1.jpg"}
	issueA := &models.Issue{IssueID: "case-1-1", RowID: "r1", ExcelRow: 20, Images: []*models.ImageRef{img}}
	issueB := &models.Issue{IssueID: "case-1-2", RowID: "r2", ExcelRow: 22}
	return &models.Case{CaseID: "case-1", Issues: []*models.Issue{issueA, issueB}}
}

func TestApplyCorrectionConfirmedKeepsAssignment(t *testing.T) {
	c := sampleCaseForValidation()
	corrected, review := applyCorrection(c, imageValidation{
		ImageID: "img1", Status: "confirmed", Confidence: 0.95,
		CurrentMapping: "r1", ValidatedMapping: "r1",
	}, 0.90)

	assert.False(t, corrected)
	assert.False(t, review)
	img, owner := findImage(c, "img1")
	require.NotNil(t, img)
	assert.Equal(t, "case-1-1", owner.IssueID)
	assert.Equal(t, models.MappingValidated, img.MappingValidation.Status)
	assert.Equal(t, models.MethodVLMConfirmed, img.MappingValidation.Method)
}

func TestApplyCorrectionMovesImageAboveThreshold(t *testing.T) {
	c := sampleCaseForValidation()
	corrected, review := applyCorrection(c, imageValidation{
		ImageID: "img1", Status: "corrected", Confidence: 0.93,
		CurrentMapping: "r1", ValidatedMapping: "r2",
	}, 0.90)

	assert.True(t, corrected)
	assert.False(t, review)
	img, owner := findImage(c, "img1")
	require.NotNil(t, img)
	assert.Equal(t, "case-1-2", owner.IssueID)
	assert.Equal(t, models.MethodVLMCorrected, img.MappingValidation.Method)
	assert.Len(t, c.Issues[0].Images, 0, "image must be removed from its original issue")
}

func TestApplyCorrectionBelowThresholdMarksReviewRequired(t *testing.T) {
	c := sampleCaseForValidation()
	corrected, review := applyCorrection(c, imageValidation{
		ImageID: "img1", Status: "corrected", Confidence: 0.5,
		CurrentMapping: "r1", ValidatedMapping: "r2",
	}, 0.90)

	assert.False(t, corrected)
	assert.True(t, review)
	img, owner := findImage(c, "img1")
	require.NotNil(t, img)
	assert.Equal(t, "case-1-1", owner.IssueID, "image stays put when confidence is below threshold")
	assert.Equal(t, models.MappingReviewNeeded, img.MappingValidation.Status)
}

func TestApplyCorrectionUnknownValidatedIssueMarksReviewRequired(t *testing.T) {
	c := sampleCaseForValidation()
	_, review := applyCorrection(c, imageValidation{
		ImageID: "img1", Status: "corrected", Confidence: 0.99,
		CurrentMapping: "r1", ValidatedMapping: "r99",
	}, 0.90)

	assert.True(t, review)
}

func TestRecomputeMappingStatusCountsPerIssue(t *testing.T) {
	c := sampleCaseForValidation()
	c.Issues[0].Images[0].MappingValidation.Status = models.MappingValidated
	recomputeMappingStatus(c)

	assert.Equal(t, 1, c.Issues[0].ImageMappingStatus.Total)
	assert.Equal(t, 1, c.Issues[0].ImageMappingStatus.Validated)
	assert.True(t, c.Issues[0].HasImages)
	assert.False(t, c.Issues[1].HasImages)
}

type fakeVLMClient struct {
	response *pageValidationResponse
	err      error
}

func (f *fakeVLMClient) SubmitFile(context.Context, string, vlmclient.SubmitOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

func (f *fakeVLMClient) WaitForResult(context.Context, string, time.Duration) (*vlmclient.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := json.Marshal(f.response)
	return &vlmclient.Result{Status: vlmclient.StatusCompleted, Result: raw}, nil
}

func TestBuildPageContextOnlyIncludesRowsWithinRange(t *testing.T) {
	c := sampleCaseForValidation()
	page := Page{Number: 1, RowStart: 19, RowEnd: 20}
	ctx := buildPageContext(c.CaseID, page, c.Issues, currentAssignments(c))

	assert.Len(t, ctx.Rows, 1)
	assert.Equal(t, "r1", ctx.Rows[0].RowID)
	assert.True(t, pageHasWork(ctx))
}

func TestValidatorSubmitPageParsesResponse(t *testing.T) {
	vlm := &fakeVLMClient{response: &pageValidationResponse{Images: []imageValidation{
		{ImageID: "img1", Status: "confirmed", Confidence: 0.9},
	}}}
	v := New(nil, vlm, 0.9)

	resp, err := v.submitPage(context.Background(), Page{Number: 1}, pageContext{CaseID: "case-1"})
	require.NoError(t, err)
	assert.Len(t, resp.Images, 1)
	assert.Equal(t, "img1", resp.Images[0].ImageID)
}
