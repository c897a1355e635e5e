package queryexpand

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unergybot/tke/pkg/models"
)

type fakeSynonyms struct {
	rows    []*models.Synonym
	recorded []string
}

func (f *fakeSynonyms) ListAll(context.Context) ([]*models.Synonym, error) {
	return f.rows, nil
}

func (f *fakeSynonyms) RecordUsage(_ context.Context, canonical, surface string) error {
	f.recorded = append(f.recorded, canonical+":"+surface)
	return nil
}

type fakeClassifier struct {
	intent models.Intent
	conf   float64
	err    error
}

func (f *fakeClassifier) Classify(context.Context, string) (models.Intent, float64, error) {
	return f.intent, f.conf, f.err
}

func TestScrubRemovesFillersAndCollapsesRepeats(t *testing.T) {
	out := scrub("嗯这个披披披锋锋问题就是那个怎么解决")
	assert.NotContains(t, out, "嗯")
	assert.NotContains(t, out, "那个")
	assert.Contains(t, out, "披")
	assert.NotContains(t, out, "披披披")
}

func TestExpandAppliesLongestSurfaceFirst(t *testing.T) {
	synonyms := &fakeSynonyms{rows: []*models.Synonym{
		{Canonical: "飞边", Surface: "披锋", Confidence: 0.9},
		{Canonical: "黑点", Surface: "黑点问题", Confidence: 0.8},
	}}
	e := New(synonyms, nil)
	require.NoError(t, e.Refresh(context.Background()))

	result := e.Expand(context.Background(), "黑点问题怎么解决")
	assert.Contains(t, result.Expanded, "黑点")
	assert.NotEmpty(t, result.SynonymsUsed)
	assert.NotEmpty(t, synonyms.recorded)
}

func TestClassifyIntentStructuredOnly(t *testing.T) {
	e := New(&fakeSynonyms{}, nil)
	intent, conf := e.classifyIntent(context.Background(), "T1有多少个NG")
	assert.Equal(t, models.IntentStructured, intent)
	assert.InDelta(t, 0.9, conf, 0.001)
}

func TestClassifyIntentSemanticOnly(t *testing.T) {
	e := New(&fakeSynonyms{}, nil)
	intent, conf := e.classifyIntent(context.Background(), "披锋问题怎么解决")
	assert.Equal(t, models.IntentSemantic, intent)
	assert.InDelta(t, 0.9, conf, 0.001)
}

func TestClassifyIntentHybridWhenBothSidesHit(t *testing.T) {
	e := New(&fakeSynonyms{}, nil)
	intent, conf := e.classifyIntent(context.Background(), "T1有多少个类似的原因")
	assert.Equal(t, models.IntentHybrid, intent)
	assert.InDelta(t, 0.8, conf, 0.001)
}

func TestClassifyIntentFallsBackToClassifier(t *testing.T) {
	e := New(&fakeSynonyms{}, &fakeClassifier{intent: models.IntentStructured, conf: 0.77})
	intent, conf := e.classifyIntent(context.Background(), "没有关键词的问题")
	assert.Equal(t, models.IntentStructured, intent)
	assert.InDelta(t, 0.77, conf, 0.001)
}

func TestClassifyIntentDefaultsSemanticWhenClassifierFails(t *testing.T) {
	e := New(&fakeSynonyms{}, &fakeClassifier{err: errors.New("llm down")})
	intent, conf := e.classifyIntent(context.Background(), "没有关键词的问题")
	assert.Equal(t, models.IntentSemantic, intent)
	assert.InDelta(t, 0.5, conf, 0.001)
}
