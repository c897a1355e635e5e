// Package indexer implements C6: writing a Case and its Issues to both the
// relational store and the two vector collections under a best-effort,
// delete-first atomicity policy.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/vectorstore"
)

// Embedder produces L2-normalized vectors for a batch of texts, in the
// same order. Implemented by pkg/embedclient.Client.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the subset of pkg/vectorstore.Store the indexer needs.
type VectorStore interface {
	EnsureCollection(ctx context.Context, collection string, dim int) error
	UpsertBatch(ctx context.Context, collection string, points []vectorstore.Point) error
	DeleteByMatch(ctx context.Context, collection, key, value string) error
}

// CaseRepo is the subset of pkg/store.CaseStore the indexer needs.
type CaseRepo interface {
	UpsertCase(ctx context.Context, c *models.Case) error
	DeleteCase(ctx context.Context, caseID string) error
}

// Result reports how many vector points were written for one IndexCase call.
type Result struct {
	CasePoints  int
	IssuePoints int
}

// Indexer wires the two collections and the relational repository behind
// the case/issue ingestion contract.
type Indexer struct {
	embed            Embedder
	vectors          VectorStore
	cases            CaseRepo
	casesCollection  string
	issuesCollection string
}

// New builds an Indexer targeting the given collection names.
func New(embed Embedder, vectors VectorStore, cases CaseRepo, casesCollection, issuesCollection string) *Indexer {
	return &Indexer{
		embed:            embed,
		vectors:          vectors,
		cases:            cases,
		casesCollection:  casesCollection,
		issuesCollection: issuesCollection,
	}
}

// EnsureCollections creates both collections with the given cosine vector
// dimension if they do not already exist. Call once at startup.
func (ix *Indexer) EnsureCollections(ctx context.Context, dim int) error {
	if err := ix.vectors.EnsureCollection(ctx, ix.casesCollection, dim); err != nil {
		return err
	}
	return ix.vectors.EnsureCollection(ctx, ix.issuesCollection, dim)
}

// IndexCase writes c and its issues to both stores. When forceReindex is
// true, every prior vector point and relational row for c.CaseID is deleted
// first, so issues removed from c since the last ingestion do not linger.
//
// If the relational write fails, no vector write is attempted. If the
// relational write succeeds but the vector write fails, the error wraps
// models.ErrStateInconsistency; rerunning IndexCase with forceReindex=true
// is safe because step 1 re-cleans before rewriting.
func (ix *Indexer) IndexCase(ctx context.Context, c *models.Case, forceReindex bool) (Result, error) {
	if forceReindex {
		if err := ix.deleteAll(ctx, c.CaseID); err != nil {
			return Result{}, err
		}
	}

	for _, issue := range c.Issues {
		aggregateIssue(issue)
	}

	if err := ix.cases.UpsertCase(ctx, c); err != nil {
		return Result{}, err
	}

	result, err := ix.upsertVectors(ctx, c)
	if err != nil {
		return result, fmt.Errorf("%w: relational write for case %s succeeded but vector write failed: %v",
			models.ErrStateInconsistency, c.CaseID, err)
	}
	return result, nil
}

// DeleteCase removes every vector and relational row for caseID. Safe to
// call on a case that does not exist.
func (ix *Indexer) DeleteCase(ctx context.Context, caseID string) error {
	return ix.deleteAll(ctx, caseID)
}

func (ix *Indexer) deleteAll(ctx context.Context, caseID string) error {
	var errs []error
	if err := ix.vectors.DeleteByMatch(ctx, ix.casesCollection, "case_id", caseID); err != nil {
		errs = append(errs, err)
	}
	if err := ix.vectors.DeleteByMatch(ctx, ix.issuesCollection, "case_id", caseID); err != nil {
		errs = append(errs, err)
	}
	if err := ix.cases.DeleteCase(ctx, caseID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (ix *Indexer) upsertVectors(ctx context.Context, c *models.Case) (Result, error) {
	summary := composeCaseSummary(c)
	caseVectors, err := ix.embed.EmbedBatch(ctx, []string{summary})
	if err != nil {
		return Result{}, fmt.Errorf("embed case summary: %w", err)
	}
	if len(caseVectors) != 1 {
		return Result{}, fmt.Errorf("%w: embed case summary: expected 1 vector, got %d", models.ErrDependency, len(caseVectors))
	}

	casePayload := casePayload(c, summary)
	if err := ix.vectors.UpsertBatch(ctx, ix.casesCollection, []vectorstore.Point{
		{ExternalID: c.CaseID, Vector: caseVectors[0], Payload: casePayload},
	}); err != nil {
		return Result{}, fmt.Errorf("upsert case point: %w", err)
	}

	if len(c.Issues) == 0 {
		return Result{CasePoints: 1}, nil
	}

	texts := make([]string, len(c.Issues))
	for i, issue := range c.Issues {
		texts[i] = composeIssueText(issue)
	}
	issueVectors, err := ix.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{CasePoints: 1}, fmt.Errorf("embed issues: %w", err)
	}
	if len(issueVectors) != len(c.Issues) {
		return Result{CasePoints: 1}, fmt.Errorf("%w: embed issues: expected %d vectors, got %d",
			models.ErrDependency, len(c.Issues), len(issueVectors))
	}

	points := make([]vectorstore.Point, len(c.Issues))
	for i, issue := range c.Issues {
		points[i] = vectorstore.Point{
			ExternalID: issue.IssueID,
			Vector:     issueVectors[i],
			Payload:    issuePayload(c, issue, texts[i]),
		}
	}
	if err := ix.vectors.UpsertBatch(ctx, ix.issuesCollection, points); err != nil {
		return Result{CasePoints: 1}, fmt.Errorf("upsert issue points: %w", err)
	}

	return Result{CasePoints: 1, IssuePoints: len(points)}, nil
}

// composeCaseSummary builds the text fed to the case-level embedding.
func composeCaseSummary(c *models.Case) string {
	parts := []string{fmt.Sprintf("零件号 %s 材料 %s %d 个问题", c.PartNumber, c.Material, c.TotalIssues)}

	problems := 0
	for _, issue := range c.Issues {
		if problems >= 3 {
			break
		}
		if issue.Problem == "" {
			continue
		}
		parts = append(parts, issue.Problem)
		problems++
	}

	insights := 0
	for _, k := range c.KeyInsights {
		if insights >= 2 {
			break
		}
		if k == "" {
			continue
		}
		parts = append(parts, k)
		insights++
	}

	return strings.Join(parts, " ")
}

// composeIssueText builds the text fed to one issue's embedding: a labeled
// concatenation of the issue's own fields plus every attached image's VLM
// enrichment, skipping empty fields.
func composeIssueText(issue *models.Issue) string {
	var segments []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			segments = append(segments, label+value)
		}
	}

	add("问题:", issue.Problem)
	add("对策:", issue.Solution)
	for _, img := range issue.Images {
		add("图像描述:", img.VLDescription)
		add("缺陷类型:", img.DefectType)
		add("图中文字:", img.TextInImage)
	}
	add("型试:", issue.TrialVersion)
	add("结果T1:", string(issue.ResultT1))
	add("结果T2:", string(issue.ResultT2))
	add("项目:", issue.Category)

	return strings.Join(segments, " ")
}

// aggregateIssue recomputes an issue's image rollups from its current
// Images slice, per the payload aggregation rules: defect_types flattened,
// severity by high>medium>low, tags/key_insights/suggested_actions
// deduplicated in insertion order and truncated, vlm_confidence as the max
// per-image mapping-validation confidence (0 if the issue has no images).
func aggregateIssue(issue *models.Issue) {
	var defectTypes []string
	var severities []models.Severity
	var maxConfidence float64

	tags := newDedupAppender(10)
	keyInsights := newDedupAppender(5)
	suggestedActions := newDedupAppender(5)

	for _, img := range issue.Images {
		if img.DefectType != "" {
			defectTypes = append(defectTypes, img.DefectType)
		}
		if img.Severity != "" {
			severities = append(severities, img.Severity)
		}
		tags.addAll(img.Tags)
		keyInsights.addAll(img.KeyInsights)
		suggestedActions.addAll(img.SuggestedActions)
		if img.MappingValidation.Confidence > maxConfidence {
			maxConfidence = img.MappingValidation.Confidence
		}
	}

	issue.DefectTypes = defectTypes
	issue.Severity = models.MaxSeverity(severities)
	issue.Tags = tags.values
	issue.KeyInsights = keyInsights.values
	issue.SuggestedActions = suggestedActions.values
	issue.VLMConfidence = maxConfidence
	issue.HasImages = len(issue.Images) > 0
	issue.ImageCount = len(issue.Images)
}

type dedupAppender struct {
	limit  int
	seen   map[string]bool
	values []string
}

func newDedupAppender(limit int) *dedupAppender {
	return &dedupAppender{limit: limit, seen: map[string]bool{}}
}

func (d *dedupAppender) addAll(values []string) {
	for _, v := range values {
		if v == "" || d.seen[v] || len(d.values) >= d.limit {
			continue
		}
		d.seen[v] = true
		d.values = append(d.values, v)
	}
}

func casePayload(c *models.Case, summary string) map[string]any {
	return map[string]any{
		"part_number":       c.PartNumber,
		"internal_number":   c.InternalNumber,
		"mold_type":         c.MoldType,
		"material":          c.Material,
		"color":             c.Color,
		"total_issues":      c.TotalIssues,
		"source_file":       c.SourceFile,
		"vlm_processed":     c.VLMProcessed,
		"vlm_summary":       c.VLMSummary,
		"vlm_confidence":    c.VLMConfidence,
		"tags":              c.Tags,
		"key_insights":      c.KeyInsights,
		"validation_status": string(c.ValidationStatus),
		"text_summary":      summary,
		"case_id":           c.CaseID,
	}
}

func issuePayload(c *models.Case, issue *models.Issue, combinedText string) map[string]any {
	return map[string]any{
		"case_id":              c.CaseID,
		"part_number":          c.PartNumber,
		"material":             c.Material,
		"issue_number":         issue.IssueNumber,
		"row_id":               issue.RowID,
		"excel_row":            issue.ExcelRow,
		"trial_version":        issue.TrialVersion,
		"category":             issue.Category,
		"problem":              issue.Problem,
		"solution":             issue.Solution,
		"result_t1":            string(issue.ResultT1),
		"result_t2":            string(issue.ResultT2),
		"cause_classification": issue.CauseClassification,
		"defect_types":         issue.DefectTypes,
		"severity":             string(issue.Severity),
		"tags":                 issue.Tags,
		"key_insights":         issue.KeyInsights,
		"suggested_actions":    issue.SuggestedActions,
		"vlm_confidence":       issue.VLMConfidence,
		"has_images":           issue.HasImages,
		"image_count":          issue.ImageCount,
		"combined_text":        combinedText,
	}
}
