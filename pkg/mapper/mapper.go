// Package mapper implements C4, the image-issue mapper: a pure spatial
// heuristic that assigns each extracted image to exactly one issue based on
// row-distance scoring, with no I/O and no external dependency.
package mapper

import (
	"sort"

	"github.com/unergybot/tke/pkg/models"
)

// candidate is one (issue, image) pairing with a viable match.
type candidate struct {
	issue       *models.Issue
	matchType   models.MatchType
	confidence  float64
	rowDistance int
}

// Assign scores every (issue, image) pair by the spatial heuristic and
// assigns each image to its best-matching issue's Images slice, dropping
// images with no candidate match (still left on disk, just unattached).
// Assign mutates issues in place and returns the images that were dropped.
func Assign(issues []*models.Issue, images []*models.ImageRef) (dropped []*models.ImageRef) {
	for _, img := range images {
		var candidates []candidate
		for _, issue := range issues {
			if m, ok := match(issue.ExcelRow, img.Anchor); ok {
				candidates = append(candidates, candidate{issue, m.matchType, m.confidence, m.rowDistance})
			}
		}
		if len(candidates) == 0 {
			dropped = append(dropped, img)
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].confidence != candidates[j].confidence {
				return candidates[i].confidence > candidates[j].confidence
			}
			return candidates[i].rowDistance < candidates[j].rowDistance
		})
		best := candidates[0]
		img.SpatialMatch = models.SpatialMatch{
			Type:        best.matchType,
			Confidence:  best.confidence,
			RowDistance: best.rowDistance,
		}
		best.issue.Images = append(best.issue.Images, img)
	}

	for _, issue := range issues {
		issue.HasImages = len(issue.Images) > 0
		issue.ImageCount = len(issue.Images)
		issue.ImageMappingStatus.Total = len(issue.Images)
	}
	return dropped
}

type matchResult struct {
	matchType   models.MatchType
	confidence  float64
	rowDistance int
}

// match scores one (issue row, image anchor) pair per the spatial heuristic:
// the image's row_start..row_end span is the reference, and an issue row
// strictly above the image's start is the expected (and best-scoring) case.
func match(issueRow int, anchor models.Anchor) (matchResult, bool) {
	rowStart, rowEnd := anchor.RowStart, anchor.RowEnd
	if rowEnd < rowStart {
		rowEnd = rowStart
	}
	span := rowEnd - rowStart

	switch {
	case issueRow < rowStart:
		d := rowStart - issueRow
		switch {
		case d <= 3:
			conf := min1(1.0 - 0.10*float64(d))
			return boosted(matchResult{models.MatchPrimary, round2(conf), d}, anchor, d), true
		case d <= 8:
			conf := maxf(0.6, 0.85-0.05*float64(d))
			return boosted(matchResult{models.MatchSecondary, round2(conf), d}, anchor, d), true
		case d <= 50:
			conf := maxf(0.4, 0.65-0.01*float64(d))
			return boosted(matchResult{models.MatchTertiary, round2(conf), d}, anchor, d), true
		default:
			return matchResult{}, false
		}

	case issueRow <= rowEnd: // within image span
		if span <= 3 {
			return matchResult{models.MatchInline, 0.85, 0}, true
		}
		return matchResult{models.MatchOverlap, 0.70, 0}, true

	default: // issueRow > rowEnd
		d := issueRow - rowEnd
		if d > 5 {
			return matchResult{}, false
		}
		conf := maxf(0.0, 0.35-0.07*float64(d))
		return matchResult{models.MatchPostImage, round2(conf), 0}, true
	}
}

// boosted applies the +0.05 (capped at 1.0) boost when the anchor has a
// non-trivial top offset and the issue is within 5 rows above the image
// (the whole primary range and the first two rows of the secondary range).
func boosted(m matchResult, anchor models.Anchor, d int) matchResult {
	if anchor.RowOffsTop > 100000 && d <= 5 {
		m.confidence = round2(min1(m.confidence + 0.05))
	}
	return m
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
