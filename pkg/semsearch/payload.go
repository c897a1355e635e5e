package semsearch

import "github.com/unergybot/tke/pkg/models"

// payloadToResult projects a vector-store payload map back onto the search
// result shape shared by every retriever, per §3's result schema. externalID
// is the point's recovered natural key (case_id for a case point, issue_id
// for an issue point).
func payloadToResult(kind models.ResultType, externalID string, score float64, payload map[string]any) models.SearchResult {
	r := models.SearchResult{Type: kind, Score: score}

	r.CaseID, _ = stringField(payload, "case_id")
	r.PartNumber, _ = stringField(payload, "part_number")
	r.Material, _ = stringField(payload, "material")
	r.TrialVersion, _ = stringField(payload, "trial_version")
	r.Category, _ = stringField(payload, "category")
	r.Problem, _ = stringField(payload, "problem")
	r.Solution, _ = stringField(payload, "solution")

	if v, ok := stringField(payload, "result_t1"); ok {
		r.ResultT1 = models.TrialResult(v)
	}
	if v, ok := stringField(payload, "result_t2"); ok {
		r.ResultT2 = models.TrialResult(v)
	}
	if v, ok := stringField(payload, "severity"); ok {
		r.Severity = models.Severity(v)
	}

	r.Tags = stringSliceField(payload, "tags")
	r.KeyInsights = stringSliceField(payload, "key_insights")

	if kind == models.ResultTypeIssue {
		r.IssueID = externalID
	} else {
		r.CaseID = externalID
	}

	return r
}

func stringField(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func stringSliceField(payload map[string]any, key string) []string {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	switch typed := v.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
