// Package queryexpand implements C7: cleaning an ASR-transcribed or typed
// query, expanding colloquial surface terms to their canonical form, and
// classifying the caller's intent so the hybrid searcher knows which
// retriever(s) to dispatch to.
package queryexpand

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/unergybot/tke/pkg/models"
)

// fillerTokens are ASR artifacts stripped unconditionally before expansion.
var fillerTokens = []string{"嗯", "啊", "那个", "就是", "然后", "额", "呃", "这个"}

var (
	repeatedRunRe  = regexp.MustCompile(`(.)\1{2,}`)
	repeatedPairRe = regexp.MustCompile(`(.{2})\1+`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

var structuredKeywords = []string{
	"多少", "统计", "T1", "T2", "OK", "NG", "分布", "占比", "排名", "最多", "最少", "列出",
}

var semanticKeywords = []string{
	"怎么", "如何", "为什么", "原因", "解决", "类似", "建议",
}

// IntentClassifier is the LLM fallback used when keyword counting yields no
// signal on either side. This module ships no implementation and pkg/app
// passes nil, which is a valid zero value (SEMANTIC at 0.5 is then assumed).
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (models.Intent, float64, error)
}

// SynonymProvider is the subset of pkg/store.SynonymStore the expander needs.
type SynonymProvider interface {
	ListAll(ctx context.Context) ([]*models.Synonym, error)
	RecordUsage(ctx context.Context, canonical, surface string) error
}

// Result is the outcome of expanding one raw query.
type Result struct {
	Original     string
	Cleaned      string
	Expanded     string
	Intent       models.Intent
	Confidence   float64
	SynonymsUsed []string
}

// Expander holds the in-memory synonym cache; Refresh(ctx) must be called
// at least once before Expand returns any synonym replacements.
type Expander struct {
	synonyms   SynonymProvider
	classifier IntentClassifier

	mu    sync.RWMutex
	cache []*models.Synonym // sorted by surface length descending
}

// New builds an Expander. classifier may be nil.
func New(synonyms SynonymProvider, classifier IntentClassifier) *Expander {
	return &Expander{synonyms: synonyms, classifier: classifier}
}

// Refresh reloads the synonym table from the backing store, replacing the
// in-memory cache atomically.
func (e *Expander) Refresh(ctx context.Context) error {
	rows, err := e.synonyms.ListAll(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return len([]rune(rows[i].Surface)) > len([]rune(rows[j].Surface))
	})

	e.mu.Lock()
	e.cache = rows
	e.mu.Unlock()
	return nil
}

// Expand cleans raw, applies synonym expansion, and classifies intent.
func (e *Expander) Expand(ctx context.Context, raw string) Result {
	cleaned := scrub(raw)
	expanded, used := e.applySynonyms(ctx, cleaned)
	intent, confidence := e.classifyIntent(ctx, expanded)

	return Result{
		Original:     raw,
		Cleaned:      cleaned,
		Expanded:     expanded,
		Intent:       intent,
		Confidence:   confidence,
		SynonymsUsed: used,
	}
}

// scrub removes ASR filler tokens, collapses repeated-character and
// repeated-two-character-token runs, and normalizes whitespace.
func scrub(raw string) string {
	s := raw
	for _, tok := range fillerTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = repeatedPairRe.ReplaceAllString(s, "$1")
	s = repeatedRunRe.ReplaceAllString(s, "$1")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// applySynonyms replaces the longest-matching surface forms first so a
// longer phrase is never shadowed by one of its own substrings.
func (e *Expander) applySynonyms(ctx context.Context, cleaned string) (string, []string) {
	e.mu.RLock()
	cache := e.cache
	e.mu.RUnlock()

	text := cleaned
	var used []string
	for _, syn := range cache {
		if syn.Surface == "" || syn.Surface == syn.Canonical {
			continue
		}
		if !strings.Contains(text, syn.Surface) {
			continue
		}
		text = strings.ReplaceAll(text, syn.Surface, syn.Canonical)
		used = append(used, syn.Surface+"->"+syn.Canonical)
		_ = e.synonyms.RecordUsage(ctx, syn.Canonical, syn.Surface)
	}
	return text, used
}

func (e *Expander) classifyIntent(ctx context.Context, text string) (models.Intent, float64) {
	structuredHits := countHits(text, structuredKeywords)
	semanticHits := countHits(text, semanticKeywords)

	switch {
	case structuredHits > 0 && semanticHits == 0:
		return models.IntentStructured, 0.9
	case semanticHits > 0 && structuredHits == 0:
		return models.IntentSemantic, 0.9
	case structuredHits > 0 && semanticHits > 0:
		return models.IntentHybrid, 0.8
	}

	if e.classifier != nil {
		if intent, confidence, err := e.classifier.Classify(ctx, text); err == nil {
			return intent, confidence
		}
	}
	return models.IntentSemantic, 0.5
}

func countHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}
