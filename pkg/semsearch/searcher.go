// Package semsearch implements C9: adaptive case/issue-level vector search
// with cross-encoder reranking and metadata-driven score boosting.
package semsearch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/vectorstore"
)

const (
	caseScoreThreshold  = 0.5
	issueScoreThreshold = 0.4

	okBoost         = 1.15
	partNumberBoost = 1.3
)

// Embedder is the subset of pkg/embedclient.Client the searcher needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is the subset of pkg/vectorstore.Store the searcher needs.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, topK int, scoreThreshold float32, filter map[string]any) ([]vectorstore.ScoredPoint, error)
}

// GranularityClassifier picks case-level vs. issue-level vs. hybrid routing.
// This module ships no implementation and pkg/app passes nil, which is a
// valid zero value (ISSUE_LEVEL is then assumed, per spec's stated default).
type GranularityClassifier interface {
	Classify(ctx context.Context, query string) (models.Granularity, error)
}

// Searcher runs the adaptive semantic search over the case/issue vector
// collections.
type Searcher struct {
	embed           Embedder
	vectors         VectorSearcher
	reranker        Reranker
	classifier      GranularityClassifier
	casesCollection string
	issuesCollection string
}

// New builds a Searcher. reranker and classifier may be nil.
func New(embed Embedder, vectors VectorSearcher, reranker Reranker, classifier GranularityClassifier, casesCollection, issuesCollection string) *Searcher {
	return &Searcher{
		embed:            embed,
		vectors:          vectors,
		reranker:         reranker,
		classifier:       classifier,
		casesCollection:  casesCollection,
		issuesCollection: issuesCollection,
	}
}

// Response is C9's search outcome.
type Response struct {
	Query      string
	Mode       models.Granularity
	Results    []models.SearchResult
	TotalFound int
}

// Search embeds query, classifies granularity (if classify is requested),
// and dispatches to the case-level, issue-level, or both paths.
func (s *Searcher) Search(ctx context.Context, query string, topK int, filters models.Filters, classify bool) (*Response, error) {
	vector, err := s.embed.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependency, err)
	}

	mode := models.GranularityIssue
	if classify && s.classifier != nil {
		if g, err := s.classifier.Classify(ctx, query); err == nil {
			mode = g
		}
	}

	var results []models.SearchResult
	switch mode {
	case models.GranularityCase:
		results, err = s.searchCases(ctx, vector, topK, filters)
	case models.GranularityHybrid:
		caseResults, errC := s.searchCases(ctx, vector, topK, filters)
		issueResults, errI := s.searchIssues(ctx, query, vector, topK, filters)
		if errC != nil && errI != nil {
			return nil, errC
		}
		results = interleave(caseResults, issueResults)
		if len(results) > topK {
			results = results[:topK]
		}
		err = nil
	default:
		results, err = s.searchIssues(ctx, query, vector, topK, filters)
	}
	if err != nil {
		return nil, err
	}

	return &Response{Query: query, Mode: mode, Results: results, TotalFound: len(results)}, nil
}

func (s *Searcher) searchCases(ctx context.Context, vector []float32, topK int, filters models.Filters) ([]models.SearchResult, error) {
	filter := caseFilter(filters)
	points, err := s.vectors.Search(ctx, s.casesCollection, vector, topK, caseScoreThreshold, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependency, err)
	}

	results := make([]models.SearchResult, len(points))
	for i, p := range points {
		results[i] = payloadToResult(models.ResultTypeCase, p.ExternalID, float64(p.Score), p.Payload)
	}
	return results, nil
}

func (s *Searcher) searchIssues(ctx context.Context, query string, vector []float32, topK int, filters models.Filters) ([]models.SearchResult, error) {
	filter := issueFilter(filters)
	points, err := s.vectors.Search(ctx, s.issuesCollection, vector, topK*3, issueScoreThreshold, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependency, err)
	}

	scores := s.rerankScores(ctx, query, points)

	results := make([]models.SearchResult, len(points))
	for i, p := range points {
		score := float64(p.Score)
		if s, ok := scores[resultID(p)]; ok {
			score = s
		}
		score = applyMetadataBoost(score, query, p.Payload)
		results[i] = payloadToResult(models.ResultTypeIssue, p.ExternalID, score, p.Payload)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// rerankScores calls the external cross-encoder over query vs. each
// candidate's problem+solution text (image descriptions are not included).
// On failure it returns
// nil, and the caller falls back to the original vector scores.
func (s *Searcher) rerankScores(ctx context.Context, query string, points []vectorstore.ScoredPoint) map[string]float64 {
	if s.reranker == nil || len(points) == 0 {
		return nil
	}

	docs := make([]RerankDoc, len(points))
	for i, p := range points {
		docs[i] = RerankDoc{ID: resultID(p), Text: rerankText(p.Payload)}
	}

	scores, err := s.reranker.Rerank(ctx, query, docs)
	if err != nil {
		return nil
	}
	return scores
}

func resultID(p vectorstore.ScoredPoint) string { return p.ExternalID }

func rerankText(payload map[string]any) string {
	var parts []string
	if v, ok := stringField(payload, "problem"); ok && v != "" {
		parts = append(parts, v)
	}
	if v, ok := stringField(payload, "solution"); ok && v != "" {
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}

// applyMetadataBoost implements the two fixed multiplicative boosts: an OK
// trial result, and the payload's part_number appearing inside the query.
func applyMetadataBoost(score float64, query string, payload map[string]any) float64 {
	if t1, _ := stringField(payload, "result_t1"); t1 == "OK" {
		score *= okBoost
	} else if t2, _ := stringField(payload, "result_t2"); t2 == "OK" {
		score *= okBoost
	}
	if pn, ok := stringField(payload, "part_number"); ok && pn != "" && strings.Contains(query, pn) {
		score *= partNumberBoost
	}
	return score
}

func interleave(a, b []models.SearchResult) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(a)+len(b))
	for i := 0; i < len(a) || i < len(b); i++ {
		if i < len(a) {
			out = append(out, a[i])
		}
		if i < len(b) {
			out = append(out, b[i])
		}
	}
	return out
}

func caseFilter(f models.Filters) map[string]any {
	filter := map[string]any{}
	if f.PartNumber != "" {
		filter["part_number"] = f.PartNumber
	}
	return filter
}

func issueFilter(f models.Filters) map[string]any {
	filter := caseFilter(f)
	if f.TrialVersion != "" {
		filter["trial_version"] = f.TrialVersion
	}
	if f.Result != "" {
		filter["result_t1"] = f.Result
	}
	return filter
}
