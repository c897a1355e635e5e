// Package orchestrator is C14: it places the extraction, mapping,
// validation, enrichment, indexing, and query components (all constructed
// by pkg/app.Build) behind the four public operations (ingest_case, query,
// delete_case, get_stats), gating and auditing every call.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/unergybot/tke/pkg/cache"
	"github.com/unergybot/tke/pkg/extractor"
	"github.com/unergybot/tke/pkg/indexer"
	"github.com/unergybot/tke/pkg/mapper"
	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/rbac"
	"github.com/unergybot/tke/pkg/store"
	"github.com/unergybot/tke/pkg/validation"
)

// Tool names, used both as the RBAC gate's keys and the audit log's
// tool_name field.
const (
	ToolIngestCase = "ingest_case"
	ToolQuery      = "query"
	ToolDeleteCase = "delete_case"
	ToolGetStats   = "get_stats"
)

// CaseRepo is the subset of pkg/store.CaseStore the orchestrator needs
// beyond what pkg/indexer already requires.
type CaseRepo interface {
	indexer.CaseRepo
	GetCase(ctx context.Context, caseID string) (*models.Case, error)
	Counts(ctx context.Context) (store.RelationalCounts, error)
}

// VectorCounter is the subset of pkg/vectorstore.Store the stats operation needs.
type VectorCounter interface {
	Count(ctx context.Context, collection string) (uint64, error)
}

// QueryLogger is the subset of pkg/store.QueryLogStore the query operation needs.
type QueryLogger interface {
	Record(ctx context.Context, entry *models.QueryLogEntry) error
}

// Indexer is the subset of pkg/indexer.Indexer the orchestrator needs.
type Indexer interface {
	IndexCase(ctx context.Context, c *models.Case, forceReindex bool) (indexer.Result, error)
	DeleteCase(ctx context.Context, caseID string) error
}

// SearchPipeline is the subset of pkg/hybridsearch.Pipeline the orchestrator needs.
type SearchPipeline interface {
	Search(ctx context.Context, query string, mode models.SearchMode, topK int, filters models.Filters, returnSQL bool) (*models.SearchResponse, error)
}

// Validator is the subset of pkg/validation.Validator the orchestrator needs.
type Validator interface {
	Validate(ctx context.Context, c *models.Case, spreadsheetPath, renderDir string, thresholdOverride float64) (*validation.Summary, error)
}

// Enricher is the subset of pkg/enrich.Enricher the orchestrator needs.
type Enricher interface {
	EnrichCase(ctx context.Context, c *models.Case)
}

// CacheStats reports the cache's hit/miss counters for the stats operation.
type CacheStats interface {
	Stats() map[cache.Namespace]cache.NamespaceStats
}

// AuditSink is the subset of pkg/audit.Sink the orchestrator needs.
type AuditSink interface {
	Record(ctx context.Context, userID, toolName string, params any, start time.Time, result any)
}

// Orchestrator wires every component behind the four public operations.
type Orchestrator struct {
	extractor        *extractor.Extractor
	validator        Validator // nil when validation is disabled
	enricher         Enricher  // nil when VLM enrichment is disabled
	indexer          Indexer
	pipeline         SearchPipeline
	cases            CaseRepo
	vectors          VectorCounter
	casesCollection  string
	issuesCollection string
	queryLog         QueryLogger // nil disables query logging
	cacheStats       CacheStats  // nil omits cache stats
	gate             *rbac.Gate
	sink             AuditSink
	renderDir        string
}

// Config bundles the constructor's dependencies.
type Config struct {
	Extractor        *extractor.Extractor
	Validator        Validator
	Enricher         Enricher
	Indexer          Indexer
	Pipeline         SearchPipeline
	Cases            CaseRepo
	Vectors          VectorCounter
	CasesCollection  string
	IssuesCollection string
	QueryLog         QueryLogger
	CacheStats       CacheStats
	Gate             *rbac.Gate
	Sink             AuditSink
	RenderDir        string
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		extractor:        cfg.Extractor,
		validator:        cfg.Validator,
		enricher:         cfg.Enricher,
		indexer:          cfg.Indexer,
		pipeline:         cfg.Pipeline,
		cases:            cfg.Cases,
		vectors:          cfg.Vectors,
		casesCollection:  cfg.CasesCollection,
		issuesCollection: cfg.IssuesCollection,
		queryLog:         cfg.QueryLog,
		cacheStats:       cfg.CacheStats,
		gate:             cfg.Gate,
		sink:             cfg.Sink,
		renderDir:        cfg.RenderDir,
	}
}

// IngestOptions tunes one ingest_case call.
type IngestOptions struct {
	Validate             bool
	AutoCorrectThreshold float64 // 0 means "use the validator's configured default"
	VLMEnrich            bool
	ForceReindex         bool
}

// IngestCase runs C3 -> C4 -> (C5) -> (per-image C2) -> C6 over the
// spreadsheet at path and returns the new case's ID.
func (o *Orchestrator) IngestCase(ctx context.Context, user *models.UserContext, path string, opts IngestOptions) (result string, err error) {
	params := map[string]any{"path": path, "validate": opts.Validate, "vlm_enrich": opts.VLMEnrich, "force_reindex": opts.ForceReindex}
	start := time.Now()
	defer func() { o.audit(ctx, user, ToolIngestCase, params, start, result, err) }()

	if err = o.checkAllowed(ToolIngestCase, user); err != nil {
		return "", err
	}

	c, images, err := o.extractor.Extract(path)
	if err != nil {
		return "", err
	}

	if dropped := mapper.Assign(c.Issues, images); len(dropped) > 0 {
		slog.Warn("images dropped: no matching issue", "case_id", c.CaseID, "count", len(dropped))
	}

	if conflictErr := o.checkConflict(ctx, c.CaseID, opts.ForceReindex); conflictErr != nil {
		return "", conflictErr
	}

	if opts.Validate && o.validator != nil {
		renderDir := filepath.Join(o.renderDir, c.CaseID)
		if _, vErr := o.validator.Validate(ctx, c, path, renderDir, opts.AutoCorrectThreshold); vErr != nil {
			slog.Error("vlm validation pass failed; proceeding with anchor-based mapping", "case_id", c.CaseID, "error", vErr)
			c.ValidationStatus = models.ValidationFailed
		}
	}

	if opts.VLMEnrich && o.enricher != nil {
		o.enricher.EnrichCase(ctx, c)
		c.VLMProcessed = true
	}

	if _, err = o.indexer.IndexCase(ctx, c, true); err != nil {
		return "", err
	}

	return c.CaseID, nil
}

// QueryOptions tunes one query call.
type QueryOptions struct {
	Mode       models.SearchMode
	TopK       int
	Filters    models.Filters
	ReturnSQL  bool
	SessionID  string
}

// Query runs C12 gate -> C10 hybrid search -> C13 audit over text.
func (o *Orchestrator) Query(ctx context.Context, user *models.UserContext, text string, opts QueryOptions) (resp *models.SearchResponse, err error) {
	params := map[string]any{"text": text, "mode": string(opts.Mode), "top_k": opts.TopK, "filters": opts.Filters}
	start := time.Now()
	defer func() { o.audit(ctx, user, ToolQuery, params, start, auditableResponse(resp), err) }()

	if err = o.checkAllowed(ToolQuery, user); err != nil {
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	resp, err = o.pipeline.Search(ctx, text, opts.Mode, topK, opts.Filters, opts.ReturnSQL)
	if err != nil {
		return resp, err
	}

	if o.queryLog != nil {
		entry := &models.QueryLogEntry{
			Original:        text,
			Expanded:        resp.ExpandedQuery,
			Intent:          string(resp.Mode),
			SQL:             resp.GeneratedSQL,
			ResultCount:     resp.TotalFound,
			ExecutionTimeMS: int(time.Since(start).Milliseconds()),
			SessionID:       opts.SessionID,
		}
		if logErr := o.queryLog.Record(ctx, entry); logErr != nil {
			slog.Error("query log write failed", "error", logErr)
		}
	}

	return resp, nil
}

// DeleteCase removes a case from both stores.
func (o *Orchestrator) DeleteCase(ctx context.Context, user *models.UserContext, caseID string) (err error) {
	params := map[string]any{"case_id": caseID}
	start := time.Now()
	defer func() { o.audit(ctx, user, ToolDeleteCase, params, start, "deleted", err) }()

	if err = o.checkAllowed(ToolDeleteCase, user); err != nil {
		return err
	}
	return o.indexer.DeleteCase(ctx, caseID)
}

// Stats summarizes relational counts, vector counts, and cache stats.
type Stats struct {
	RelationalCases  int64                                    `json:"relational_cases"`
	RelationalIssues int64                                    `json:"relational_issues"`
	VectorCases      uint64                                   `json:"vector_cases"`
	VectorIssues     uint64                                   `json:"vector_issues"`
	Cache            map[cache.Namespace]cache.NamespaceStats `json:"cache,omitempty"`
}

// GetStats reports relational counts, vector counts, and cache stats.
func (o *Orchestrator) GetStats(ctx context.Context, user *models.UserContext) (stats *Stats, err error) {
	start := time.Now()
	defer func() { o.audit(ctx, user, ToolGetStats, nil, start, stats, err) }()

	if err = o.checkAllowed(ToolGetStats, user); err != nil {
		return nil, err
	}

	out := &Stats{}
	relational, err := o.cases.Counts(ctx)
	if err != nil {
		return nil, err
	}
	out.RelationalCases = relational.Cases
	out.RelationalIssues = relational.Issues

	if out.VectorCases, err = o.vectors.Count(ctx, o.casesCollection); err != nil {
		return nil, err
	}
	if out.VectorIssues, err = o.vectors.Count(ctx, o.issuesCollection); err != nil {
		return nil, err
	}

	if o.cacheStats != nil {
		out.Cache = o.cacheStats.Stats()
	}

	return out, nil
}

// checkConflict enforces the ConflictError policy: a case already indexed
// may only be re-ingested when the caller passes force_reindex.
func (o *Orchestrator) checkConflict(ctx context.Context, caseID string, forceReindex bool) error {
	if forceReindex {
		return nil
	}
	existing, err := o.cases.GetCase(ctx, caseID)
	if err == nil && existing != nil {
		return fmt.Errorf("%w: case %s already indexed; pass force_reindex to overwrite", models.ErrConflict, caseID)
	}
	return nil
}

func (o *Orchestrator) checkAllowed(tool string, user *models.UserContext) error {
	if o.gate == nil {
		return nil
	}
	return o.gate.Allow(tool, user)
}

// audit best-effort records one tool invocation. A nil Sink makes this a
// no-op, matching how the gate is nil-safe too.
func (o *Orchestrator) audit(ctx context.Context, user *models.UserContext, tool string, params any, start time.Time, result any, err error) {
	if o.sink == nil {
		return
	}
	userID := ""
	if user != nil {
		userID = user.UserID
	}
	auditResult := result
	if err != nil {
		auditResult = map[string]any{"error": err.Error()}
	}
	o.sink.Record(ctx, userID, tool, params, start, auditResult)
}

// auditableResponse reports "success"/"error" for a search
// response so the audit sink's string-based status derivation applies
// cleanly even though SearchResponse itself isn't an error-shaped value.
func auditableResponse(resp *models.SearchResponse) any {
	if resp == nil {
		return nil
	}
	if resp.DependencyError {
		return "error"
	}
	return "success"
}
