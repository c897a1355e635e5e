package validation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/vlmclient"
)

// Summary is the correction-pass outcome returned alongside the mutated Case.
type Summary struct {
	AutoCorrected     int
	PendingReview     int
	AverageConfidence float64
}

// VLMClient is the subset of vlmclient.Client the validator needs.
type VLMClient interface {
	SubmitFile(ctx context.Context, path string, opts vlmclient.SubmitOptions) (string, error)
	WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*vlmclient.Result, error)
}

// Validator runs the page-render + VLM-confirm-or-correct pass over a
// freshly extracted and mapped Case.
type Validator struct {
	renderer       *Renderer
	vlm            VLMClient
	threshold      float64
	jobTimeout     time.Duration
}

// New builds a Validator. threshold is config.ValidationConfig.AutoCorrectThreshold.
func New(renderer *Renderer, vlm VLMClient, threshold float64) *Validator {
	return &Validator{renderer: renderer, vlm: vlm, threshold: threshold, jobTimeout: 2 * time.Minute}
}

// Validate renders spreadsheetPath's pages, submits each page with ≥1 issue
// and ≥1 image to the VLM, and applies the correction policy to c in place.
// A page-level VLM failure sets c.ValidationStatus to failed but does not
// abort processing of the remaining pages.
// thresholdOverride, when non-zero, replaces the Validator's configured
// auto-correct threshold for this call only (the per-ingest_case
// auto_correct_threshold option).
func (v *Validator) Validate(ctx context.Context, c *models.Case, spreadsheetPath, renderDir string, thresholdOverride float64) (*Summary, error) {
	threshold := v.threshold
	if thresholdOverride != 0 {
		threshold = thresholdOverride
	}

	pages, err := v.renderer.RenderPages(ctx, spreadsheetPath, renderDir)
	if err != nil {
		c.ValidationStatus = models.ValidationFailed
		return nil, err
	}

	imageToIssue := currentAssignments(c)
	c.ValidationStatus = models.ValidationCompleted

	var (
		autoCorrected, pendingReview int
		confidenceSum                float64
		confidenceCount              int
	)

	for _, page := range pages {
		pctx := buildPageContext(c.CaseID, page, c.Issues, imageToIssue)
		if !pageHasWork(pctx) {
			continue
		}

		resp, err := v.submitPage(ctx, page, pctx)
		if err != nil {
			slog.Error("page validation failed, keeping anchor-based mapping",
				"case_id", c.CaseID, "page", page.Number, "error", err)
			c.ValidationStatus = models.ValidationFailed
			continue
		}

		for _, iv := range resp.Images {
			corrected, review := applyCorrection(c, iv, threshold)
			if corrected {
				autoCorrected++
			}
			if review {
				pendingReview++
			}
			confidenceSum += iv.Confidence
			confidenceCount++
		}
	}

	recomputeMappingStatus(c)

	summary := &Summary{AutoCorrected: autoCorrected, PendingReview: pendingReview}
	if confidenceCount > 0 {
		summary.AverageConfidence = confidenceSum / float64(confidenceCount)
	}
	return summary, nil
}

// submitPage sends the rendered page image only; the original anchored
// image files named in pctx.Images are not attached separately, since the
// rendered page already shows each image inline at its anchor position.
func (v *Validator) submitPage(ctx context.Context, page Page, pctx pageContext) (*pageValidationResponse, error) {
	contextJSON, err := json.Marshal(pctx)
	if err != nil {
		return nil, err
	}

	jobID, err := v.vlm.SubmitFile(ctx, page.ImageDir, vlmclient.SubmitOptions{
		Template: "mapping_validation",
		Options: map[string]any{
			"mapping_context": json.RawMessage(contextJSON),
		},
	})
	if err != nil {
		return nil, err
	}

	result, err := v.vlm.WaitForResult(ctx, jobID, v.jobTimeout)
	if err != nil {
		return nil, err
	}

	var resp pageValidationResponse
	if err := json.Unmarshal(result.Result, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// currentAssignments maps each image ID to the row_id of the issue it is
// currently attached to, the "current_mapping" field of the VLM payload.
// The VLM answers in row_ids (r1, r2, ...), not issue_ids, since that's
// the only identifier buildPageContext gives it for each row.
func currentAssignments(c *models.Case) map[string]string {
	out := make(map[string]string)
	for _, issue := range c.Issues {
		for _, img := range issue.Images {
			out[img.ImageID] = issue.RowID
		}
	}
	return out
}
