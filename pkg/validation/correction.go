package validation

import "github.com/unergybot/tke/pkg/models"

// applyCorrection mutates the case's issues in place according to one
// image's VLM validation verdict, and reports which counter it affected.
//
// Policy:
//   - confirmed, or validated == current: mark validated, method vlm_confirmed.
//   - different validated issue and confidence >= threshold: move the image
//     to the validated issue, mark validated, method vlm_corrected.
//   - different validated issue below threshold, or validated issue unknown:
//     keep the original assignment, mark review_required.
func applyCorrection(c *models.Case, v imageValidation, threshold float64) (autoCorrected, pendingReview bool) {
	img, fromIssue := findImage(c, v.ImageID)
	if img == nil {
		return false, false
	}

	if v.Status == "confirmed" || v.ValidatedMapping == "" || v.ValidatedMapping == v.CurrentMapping {
		img.MappingValidation = models.MappingValidation{
			Status:     models.MappingValidated,
			Method:     models.MethodVLMConfirmed,
			Confidence: v.Confidence,
			Reason:     v.Reasoning,
		}
		return false, false
	}

	target := findIssueByRowID(c, v.ValidatedMapping)
	if target == nil || v.Confidence < threshold {
		img.MappingValidation = models.MappingValidation{
			Status:     models.MappingReviewNeeded,
			Method:     fromImageMethod(img),
			Confidence: v.Confidence,
			Reason:     v.Reasoning,
		}
		return false, true
	}

	moveImage(c, fromIssue, target, img)
	img.MappingValidation = models.MappingValidation{
		Status:     models.MappingValidated,
		Method:     models.MethodVLMCorrected,
		Confidence: v.Confidence,
		Reason:     v.Reasoning,
	}
	return true, false
}

func fromImageMethod(img *models.ImageRef) models.MappingMethod {
	if img.MappingValidation.Method != "" {
		return img.MappingValidation.Method
	}
	return models.MethodAnchorBased
}

// findImage locates an image by ID across all of the case's issues,
// returning both the image and its current owning issue.
func findImage(c *models.Case, imageID string) (*models.ImageRef, *models.Issue) {
	for _, issue := range c.Issues {
		for _, img := range issue.Images {
			if img.ImageID == imageID {
				return img, issue
			}
		}
	}
	return nil, nil
}

// findIssueByRowID locates an issue by its row_id (r1, r2, ...), the
// identifier the VLM's validated_mapping and current_mapping fields use,
// matching the original correction engine's row_lookup keyed on row_id
// rather than issue_id.
func findIssueByRowID(c *models.Case, rowID string) *models.Issue {
	for _, issue := range c.Issues {
		if issue.RowID == rowID {
			return issue
		}
	}
	return nil
}

// moveImage removes img from its current issue (deduplicating any other
// stray reference first) and appends it once to target.
func moveImage(c *models.Case, from *models.Issue, target *models.Issue, img *models.ImageRef) {
	for _, issue := range c.Issues {
		issue.Images = removeImage(issue.Images, img.ImageID)
	}
	target.Images = append(target.Images, img)
}

func removeImage(images []*models.ImageRef, imageID string) []*models.ImageRef {
	out := images[:0]
	for _, img := range images {
		if img.ImageID != imageID {
			out = append(out, img)
		}
	}
	return out
}

// recomputeMappingStatus recounts each issue's ImageMappingStatus from its
// current images, called after every correction pass.
func recomputeMappingStatus(c *models.Case) {
	for _, issue := range c.Issues {
		status := models.ImageMappingStatus{Total: len(issue.Images)}
		for _, img := range issue.Images {
			switch img.MappingValidation.Status {
			case models.MappingValidated:
				status.Validated++
			case models.MappingReviewNeeded:
				status.PendingReview++
			}
		}
		issue.ImageMappingStatus = status
		issue.HasImages = len(issue.Images) > 0
		issue.ImageCount = len(issue.Images)
	}
}
