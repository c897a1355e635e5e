// Package enrich drives per-image VLM enrichment: submitting each embedded
// picture to the vision-language model for defect/description analysis and
// writing the result back onto the ImageRef. Submissions run with a bounded
// semaphore so one slow or failing image never stalls or aborts the case.
package enrich

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/vlmclient"
)

const defaultMaxInFlight = 4

const imageAnalysisTemplate = "image_analysis"

// Client narrows pkg/vlmclient.Client to the two calls enrichment uses.
type Client interface {
	SubmitFile(ctx context.Context, path string, opts vlmclient.SubmitOptions) (string, error)
	WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*vlmclient.Result, error)
}

type imageAnalysis struct {
	Description       string   `json:"vl_description"`
	DefectType        string   `json:"defect_type"`
	EquipmentPart     string   `json:"equipment_part"`
	TextInImage       string   `json:"text_in_image"`
	VisualAnnotations []string `json:"visual_annotations"`
	Severity          string   `json:"severity"`
	Tags              []string `json:"tags"`
	KeyInsights       []string `json:"key_insights"`
	SuggestedActions  []string `json:"suggested_actions"`
}

// Enricher submits embedded images for VLM analysis with bounded concurrency.
type Enricher struct {
	vlm         Client
	maxInFlight int
	jobTimeout  time.Duration
}

// New builds an Enricher. maxInFlight<=0 defaults to 4; jobTimeout<=0
// defaults to 600s, matching the VLM job wait default.
func New(vlm Client, maxInFlight int, jobTimeout time.Duration) *Enricher {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	if jobTimeout <= 0 {
		jobTimeout = 600 * time.Second
	}
	return &Enricher{vlm: vlm, maxInFlight: maxInFlight, jobTimeout: jobTimeout}
}

// EnrichCase submits every image across every issue of c for analysis. A
// per-image failure is logged and leaves that image's VLM fields empty; it
// never aborts the rest of the batch and never returns an error itself.
func (e *Enricher) EnrichCase(ctx context.Context, c *models.Case) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxInFlight)

	for _, issue := range c.Issues {
		for _, img := range issue.Images {
			img := img
			g.Go(func() error {
				e.enrichOne(gctx, img)
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (e *Enricher) enrichOne(ctx context.Context, img *models.ImageRef) {
	jobID, err := e.vlm.SubmitFile(ctx, img.FilePath, vlmclient.SubmitOptions{Template: imageAnalysisTemplate})
	if err != nil {
		slog.Error("vlm image enrichment submit failed", "image_id", img.ImageID, "error", err)
		return
	}

	result, err := e.vlm.WaitForResult(ctx, jobID, e.jobTimeout)
	if err != nil {
		slog.Error("vlm image enrichment wait failed", "image_id", img.ImageID, "error", err)
		return
	}
	if result.Error != "" {
		slog.Error("vlm image enrichment job failed", "image_id", img.ImageID, "error", result.Error)
		return
	}

	var analysis imageAnalysis
	if err := json.Unmarshal(result.Result, &analysis); err != nil {
		slog.Error("vlm image enrichment result unparseable", "image_id", img.ImageID, "error", err)
		return
	}

	img.VLDescription = analysis.Description
	img.DefectType = analysis.DefectType
	img.EquipmentPart = analysis.EquipmentPart
	img.TextInImage = analysis.TextInImage
	img.VisualAnnotations = analysis.VisualAnnotations
	img.Severity = models.Severity(analysis.Severity)
	img.Tags = analysis.Tags
	img.KeyInsights = analysis.KeyInsights
	img.SuggestedActions = analysis.SuggestedActions
}
