// Package hybridsearch implements C10: the top-level query pipeline that
// expands a raw question, dispatches it to the structured and/or semantic
// retrievers, fuses their results with Reciprocal Rank Fusion, and caches
// the response.
package hybridsearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unergybot/tke/pkg/cache"
	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/queryexpand"
	"github.com/unergybot/tke/pkg/semsearch"
	"github.com/unergybot/tke/pkg/textsql"
)

const resultCacheTTL = 5 * time.Minute

// Expander is the subset of pkg/queryexpand.Expander the pipeline needs.
type Expander interface {
	Expand(ctx context.Context, raw string) queryexpand.Result
}

// SQLGenerator is the subset of pkg/textsql.Generator the pipeline needs.
type SQLGenerator interface {
	Generate(ctx context.Context, question, expanded string) (*textsql.Generation, error)
	Execute(ctx context.Context, sql string, limit int) (*models.SQLResult, error)
}

// SemanticSearcher is the subset of pkg/semsearch.Searcher the pipeline needs.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, topK int, filters models.Filters, classify bool) (*semsearch.Response, error)
}

// Pipeline wires the expander, text-to-SQL generator, semantic searcher,
// and result cache behind the single C10 search contract.
type Pipeline struct {
	expander Expander
	sql      SQLGenerator
	semantic SemanticSearcher
	cache    *cache.Cache
}

// New builds a Pipeline. cache may be nil (result caching is then skipped).
func New(expander Expander, sql SQLGenerator, semantic SemanticSearcher, c *cache.Cache) *Pipeline {
	return &Pipeline{expander: expander, sql: sql, semantic: semantic, cache: c}
}

// Search runs the full C10 pipeline: cache check, expansion, mode dispatch,
// fusion, and cache write.
func (p *Pipeline) Search(ctx context.Context, query string, mode models.SearchMode, topK int, filters models.Filters, returnSQL bool) (*models.SearchResponse, error) {
	cacheKey := ""
	if p.cache != nil {
		cacheKey = cache.SearchKey(query, string(mode), filters, topK)
		var cached models.SearchResponse
		if p.cache.GetSearch(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	expansion := p.expander.Expand(ctx, query)
	effectiveMode := mode
	if mode == models.ModeAuto {
		effectiveMode = intentToMode(expansion.Intent)
	}

	resp := &models.SearchResponse{
		Query:            query,
		ExpandedQuery:    expansion.Expanded,
		Mode:             effectiveMode,
		IntentConfidence: expansion.Confidence,
		SynonymsUsed:     expansion.SynonymsUsed,
	}

	var err error
	switch effectiveMode {
	case models.ModeStructured:
		err = p.runStructured(ctx, expansion, topK, filters, resp, returnSQL)
	case models.ModeHybrid:
		err = p.runHybrid(ctx, expansion, topK, filters, resp, returnSQL)
	default:
		err = p.runSemantic(ctx, expansion.Expanded, topK, filters, resp)
	}
	if err != nil {
		resp.DependencyError = true
	}

	resp.TotalFound = len(resp.Results)

	if p.cache != nil && err == nil {
		p.cache.SetSearch(ctx, cacheKey, resp)
	}
	return resp, nil
}

func (p *Pipeline) runStructured(ctx context.Context, expansion queryexpand.Result, topK int, filters models.Filters, resp *models.SearchResponse, returnSQL bool) error {
	results, sql, err := p.structuredResults(ctx, expansion, topK, filters)
	if err != nil {
		return p.runSemantic(ctx, expansion.Expanded, topK, filters, resp)
	}
	resp.Results = results
	if returnSQL {
		resp.GeneratedSQL = sql
	}
	return nil
}

func (p *Pipeline) runSemantic(ctx context.Context, query string, topK int, filters models.Filters, resp *models.SearchResponse) error {
	semResp, err := p.semantic.Search(ctx, query, topK, filters, true)
	if err != nil {
		return err
	}
	resp.Results = semResp.Results
	return nil
}

func (p *Pipeline) runHybrid(ctx context.Context, expansion queryexpand.Result, topK int, filters models.Filters, resp *models.SearchResponse, returnSQL bool) error {
	var (
		structured []models.SearchResult
		semantic   []models.SearchResult
		sql        string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, generatedSQL, err := p.structuredResults(gctx, expansion, topK*2, filters)
		if err != nil {
			return nil // partial-result policy: structured failure doesn't abort the hybrid path
		}
		structured = results
		sql = generatedSQL
		return nil
	})
	g.Go(func() error {
		semResp, err := p.semantic.Search(gctx, expansion.Expanded, topK*2, filters, true)
		if err != nil {
			return nil
		}
		semantic = semResp.Results
		return nil
	})
	_ = g.Wait()

	resp.Results = fuse(structured, semantic)
	if len(resp.Results) > topK {
		resp.Results = resp.Results[:topK]
	}
	if returnSQL {
		resp.GeneratedSQL = sql
	}
	return nil
}

// structuredResults generates and executes SQL for expansion, applying
// filters as an outer WHERE clause over the generated statement rather than
// splicing into its own WHERE (the generated SQL's shape is not known ahead
// of time, so wrapping is the safe way to add filter conditions).
func (p *Pipeline) structuredResults(ctx context.Context, expansion queryexpand.Result, topK int, filters models.Filters) ([]models.SearchResult, string, error) {
	gen, err := p.sql.Generate(ctx, expansion.Original, expansion.Expanded)
	if err != nil {
		return nil, "", err
	}
	if !gen.Valid {
		return nil, "", fmt.Errorf("%w: %s", models.ErrValidation, gen.Error)
	}

	sql := applyFilters(gen.SQL, filters, gen.TablesUsed)
	result, err := p.sql.Execute(ctx, sql, topK)
	if err != nil {
		return nil, "", err
	}
	if result.Error != "" {
		return nil, "", fmt.Errorf("%w: %s", models.ErrValidation, result.Error)
	}

	return rowsToResults(result), gen.SQL, nil
}

// applyFilters wraps sql's result set in an outer WHERE clause, but only
// with conditions on columns the queried table(s) actually expose:
// part_number/material live on cases, trial_version/result_t1/result_t2
// live on issues. A query that hits only one of the two tables must not
// be filtered on the other's columns, or it fails outright.
func applyFilters(sql string, filters models.Filters, tablesUsed []string) string {
	conditions := filterConditions(filters, tablesUsed)
	if len(conditions) == 0 {
		return sql
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS _hybrid_filtered WHERE %s",
		strings.TrimSuffix(strings.TrimSpace(sql), ";"), strings.Join(conditions, " AND "))
}

func filterConditions(f models.Filters, tablesUsed []string) []string {
	hasCases := len(tablesUsed) == 0 || containsTable(tablesUsed, "cases")
	hasIssues := len(tablesUsed) == 0 || containsTable(tablesUsed, "issues")

	var out []string
	if hasCases && f.PartNumber != "" {
		out = append(out, fmt.Sprintf("part_number = '%s'", escapeLiteral(f.PartNumber)))
	}
	if hasCases && f.Material != "" {
		out = append(out, fmt.Sprintf("material = '%s'", escapeLiteral(f.Material)))
	}
	if hasIssues && f.TrialVersion != "" {
		out = append(out, fmt.Sprintf("trial_version = '%s'", escapeLiteral(f.TrialVersion)))
	}
	if hasIssues && f.Result != "" {
		out = append(out, fmt.Sprintf("(result_t1 = '%s' OR result_t2 = '%s')", escapeLiteral(f.Result), escapeLiteral(f.Result)))
	}
	return out
}

func containsTable(tables []string, name string) bool {
	for _, t := range tables {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func intentToMode(intent models.Intent) models.SearchMode {
	switch intent {
	case models.IntentStructured:
		return models.ModeStructured
	case models.IntentHybrid:
		return models.ModeHybrid
	default:
		return models.ModeSemantic
	}
}

// rowsToResults projects a generic SQLResult onto SearchResult by column
// name, leaving any column this schema doesn't recognize unset.
func rowsToResults(result *models.SQLResult) []models.SearchResult {
	colIndex := make(map[string]int, len(result.Columns))
	for i, col := range result.Columns {
		colIndex[col] = i
	}

	out := make([]models.SearchResult, 0, len(result.Rows))
	for _, row := range result.Rows {
		r := models.SearchResult{Type: models.ResultTypeIssue}
		r.CaseID = rowString(row, colIndex, "case_id")
		r.IssueID = rowString(row, colIndex, "issue_id")
		r.PartNumber = rowString(row, colIndex, "part_number")
		r.Material = rowString(row, colIndex, "material")
		r.TrialVersion = rowString(row, colIndex, "trial_version")
		r.Category = rowString(row, colIndex, "category")
		r.Problem = rowString(row, colIndex, "problem")
		r.Solution = rowString(row, colIndex, "solution")
		r.ResultT1 = models.TrialResult(rowString(row, colIndex, "result_t1"))
		r.ResultT2 = models.TrialResult(rowString(row, colIndex, "result_t2"))
		r.Severity = models.Severity(rowString(row, colIndex, "severity"))
		if r.CaseID == "" && r.IssueID == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func rowString(row []any, colIndex map[string]int, col string) string {
	i, ok := colIndex[col]
	if !ok || i >= len(row) || row[i] == nil {
		return ""
	}
	s, _ := row[i].(string)
	return s
}
