package hybridsearch

import (
	"crypto/md5"
	"encoding/hex"
	"sort"

	"github.com/unergybot/tke/pkg/models"
)

const rrfK = 60

// fuse combines structured and semantic result lists with Reciprocal Rank
// Fusion (k=60): for every result, score += 1/(k+rank) across both lists it
// appears in, tagging which source(s) contributed. Dedup key is
// issue_id || case_id || hash(problem).
func fuse(structured, semantic []models.SearchResult) []models.SearchResult {
	byKey := make(map[string]*models.SearchResult)
	order := make([]string, 0, len(structured)+len(semantic))

	addRanked := func(results []models.SearchResult, source models.ResultSource) {
		for rank, r := range results {
			key := dedupKey(r)
			existing, ok := byKey[key]
			if !ok {
				r := r
				r.Score = 0
				r.Sources = nil
				byKey[key] = &r
				order = append(order, key)
				existing = byKey[key]
			}
			existing.Score += 1.0 / float64(rrfK+rank+1)
			existing.Sources = appendSource(existing.Sources, source)
		}
	}

	addRanked(structured, models.SourceStructured)
	addRanked(semantic, models.SourceSemantic)

	out := make([]models.SearchResult, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func appendSource(sources []models.ResultSource, s models.ResultSource) []models.ResultSource {
	for _, existing := range sources {
		if existing == s {
			return sources
		}
	}
	return append(sources, s)
}

func dedupKey(r models.SearchResult) string {
	if r.IssueID != "" {
		return "issue:" + r.IssueID
	}
	if r.CaseID != "" {
		return "case:" + r.CaseID
	}
	return "problem:" + hashProblem(r.Problem)
}

func hashProblem(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
