package validation

import "github.com/unergybot/tke/pkg/models"

// pageContext is the JSON payload submitted to the VLM alongside the
// rendered page image and the original extracted image files.
type pageContext struct {
	CaseID string           `json:"case_id"`
	Rows   []pageContextRow `json:"rows"`
	Images []pageContextImg `json:"images"`
}

type pageContextRow struct {
	RowID  string `json:"row_id"`
	Number int    `json:"issue_number"`
	Column map[string]string `json:"columns"`
}

type pageContextImg struct {
	ImageID       string `json:"image_id"`
	FileName      string `json:"file_name"`
	Anchor        models.Anchor `json:"anchor"`
	CurrentMapping string `json:"current_mapping"` // row_id the image is currently assigned to
}

// imageValidation is one entry of the VLM's per-image validation response.
type imageValidation struct {
	ImageID          string  `json:"image_id"`
	Status           string  `json:"status"` // "confirmed" or "corrected"
	Confidence       float64 `json:"confidence"`
	CurrentMapping   string  `json:"current_mapping"`
	ValidatedMapping string  `json:"validated_mapping"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// pageValidationResponse is the strict-JSON shape requested from the VLM.
type pageValidationResponse struct {
	Images []imageValidation `json:"images"`
}

// buildPageContext assembles the mapping context for one page: every issue
// whose excel_row falls inside [page.RowStart, page.RowEnd], and every
// image currently attached to one of those issues, with its assigned row_id.
// Images are selected by owning issue, not by their own anchor rows.
func buildPageContext(caseID string, page Page, issues []*models.Issue, imageToIssue map[string]string) pageContext {
	ctx := pageContext{CaseID: caseID}

	for _, issue := range issues {
		if issue.ExcelRow < page.RowStart || issue.ExcelRow > page.RowEnd {
			continue
		}
		ctx.Rows = append(ctx.Rows, pageContextRow{
			RowID:  issue.RowID,
			Number: issue.IssueNumber,
			Column: map[string]string{
				"problem":  issue.Problem,
				"solution": issue.Solution,
			},
		})

		for _, img := range issue.Images {
			ctx.Images = append(ctx.Images, pageContextImg{
				ImageID:        img.ImageID,
				FileName:       img.FilePath,
				Anchor:         img.Anchor,
				CurrentMapping: imageToIssue[img.ImageID],
			})
		}
	}
	return ctx
}

// pageHasWork reports whether a page has at least one issue and one image,
// the precondition for submitting it to the VLM.
func pageHasWork(ctx pageContext) bool {
	return len(ctx.Rows) > 0 && len(ctx.Images) > 0
}
