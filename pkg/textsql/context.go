package textsql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/unergybot/tke/pkg/models"
)

const (
	maxValidatedExamples = 3
	maxLearnings         = 3
)

// KnowledgeProvider is the subset of pkg/store.KnowledgeStore layers 3 and 5 need.
type KnowledgeProvider interface {
	TopLearnings(ctx context.Context, limit int) ([]*models.Learning, error)
	AllValidatedQueries(ctx context.Context) ([]*models.ValidatedQuery, error)
}

// SynonymLister is the subset of pkg/store.SynonymStore layer 4 needs.
type SynonymLister interface {
	ListAll(ctx context.Context) ([]*models.Synonym, error)
}

// buildContext assembles the six-layer prompt context for question/expanded,
// in the fixed order: schemas, business rules, similar validated queries,
// defect synonyms, top learnings, runtime introspection (on demand only,
// so layer 6 contributes nothing here).
func (g *Generator) buildContext(ctx context.Context, question, expanded string) (string, []string, error) {
	var used []string
	var b strings.Builder

	schemas, err := loadTableSchemas()
	if err != nil {
		return "", nil, fmt.Errorf("load table schemas: %w", err)
	}
	b.WriteString("## Table schemas\n")
	for _, s := range schemas {
		fmt.Fprintf(&b, "- %s: %s Important columns: %s. Notes: %s\n",
			s.Table, s.Description, strings.Join(s.ImportantColumns, "; "), s.Notes)
	}
	used = append(used, "table_schemas")

	b.WriteString("\n## Business rules\n")
	for _, r := range businessRules {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	used = append(used, "business_rules")

	queryText := expanded
	if queryText == "" {
		queryText = question
	}

	validated, err := g.knowledge.AllValidatedQueries(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("load validated queries: %w", err)
	}
	similar := topSimilarQueries(queryText, validated, maxValidatedExamples)
	if len(similar) > 0 {
		b.WriteString("\n## Similar known-good queries\n")
		for _, vq := range similar {
			fmt.Fprintf(&b, "- Q: %s\n  SQL: %s\n", vq.Question, vq.SQL)
		}
		used = append(used, "similar_validated_queries")
	}

	synonyms, err := g.synonyms.ListAll(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("load synonyms: %w", err)
	}
	relevant := relevantDefectSynonyms(queryText, synonyms)
	if len(relevant) > 0 {
		b.WriteString("\n## Relevant defect terminology\n")
		for _, syn := range relevant {
			fmt.Fprintf(&b, "- %s means %s\n", syn.Surface, syn.Canonical)
		}
		used = append(used, "defect_synonyms")
	}

	learnings, err := g.knowledge.TopLearnings(ctx, maxLearnings)
	if err != nil {
		return "", nil, fmt.Errorf("load learnings: %w", err)
	}
	if len(learnings) > 0 {
		b.WriteString("\n## Past learnings\n")
		for _, l := range learnings {
			fmt.Fprintf(&b, "- %s: %s\n", l.Title, l.Text)
		}
		used = append(used, "learnings")
	}

	return b.String(), used, nil
}

// topSimilarQueries ranks validated queries by word-overlap count against
// text, where wordSet treats each character (rune) as a word, a placeholder for future vector similarity per spec.md §4.8 layer 3.
func topSimilarQueries(text string, all []*models.ValidatedQuery, limit int) []*models.ValidatedQuery {
	type scored struct {
		vq    *models.ValidatedQuery
		score int
	}
	words := wordSet(text)

	var ranked []scored
	for _, vq := range all {
		score := overlapCount(words, wordSet(vq.Question))
		if score > 0 {
			ranked = append(ranked, scored{vq, score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]*models.ValidatedQuery, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.vq)
	}
	return out
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, r := range text {
		set[string(r)] = true
	}
	return set
}

func overlapCount(a, b map[string]bool) int {
	count := 0
	for w := range a {
		if b[w] {
			count++
		}
	}
	return count
}

// relevantDefectSynonyms returns every term_type=="defect" synonym whose
// surface or canonical form appears literally in text.
func relevantDefectSynonyms(text string, all []*models.Synonym) []*models.Synonym {
	var out []*models.Synonym
	for _, syn := range all {
		if syn.TermType != "defect" {
			continue
		}
		if strings.Contains(text, syn.Surface) || strings.Contains(text, syn.Canonical) {
			out = append(out, syn)
		}
	}
	return out
}
