// Package app wires every component into a ready-to-use Orchestrator, the
// composition step shared by cmd/tke (the HTTP server) and cmd/tke-ingest
// (the CLI).
package app

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"

	"github.com/unergybot/tke/pkg/audit"
	"github.com/unergybot/tke/pkg/cache"
	"github.com/unergybot/tke/pkg/config"
	"github.com/unergybot/tke/pkg/database"
	"github.com/unergybot/tke/pkg/embedclient"
	"github.com/unergybot/tke/pkg/enrich"
	"github.com/unergybot/tke/pkg/extractor"
	"github.com/unergybot/tke/pkg/hybridsearch"
	"github.com/unergybot/tke/pkg/indexer"
	"github.com/unergybot/tke/pkg/orchestrator"
	"github.com/unergybot/tke/pkg/queryexpand"
	"github.com/unergybot/tke/pkg/rbac"
	"github.com/unergybot/tke/pkg/semsearch"
	"github.com/unergybot/tke/pkg/store"
	"github.com/unergybot/tke/pkg/textsql"
	"github.com/unergybot/tke/pkg/validation"
	"github.com/unergybot/tke/pkg/vectorstore"
	"github.com/unergybot/tke/pkg/vlmclient"
)

// App bundles every constructed component a caller (HTTP server or CLI)
// might need, beyond the Orchestrator itself.
type App struct {
	Config     *config.Config
	DB         *database.Client
	Orch       *orchestrator.Orchestrator
	Reviews    *store.ReviewStore
	Extractor  *extractor.Extractor
	RenderDir  string
}

// Build loads configuration from configDir, connects every backing service,
// and wires the full C1-C14 pipeline behind a single Orchestrator.
// imagesDir and renderDir are where extracted images and rendered
// validation pages are written.
func Build(ctx context.Context, configDir, imagesDir, renderDir string) (*App, error) {
	cfg, err := config.Initialize(configDir)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	dbCfg := database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	qdrantHost, qdrantPort, err := splitHostPort(cfg.Qdrant.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant address %q: %w", cfg.Qdrant.Addr, err)
	}
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   qdrantHost,
		Port:   qdrantPort,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	vectors := vectorstore.New(qdrantClient)
	if err := vectors.EnsureCollection(ctx, cfg.Qdrant.CasesCollection, cfg.Qdrant.VectorDim); err != nil {
		return nil, fmt.Errorf("ensure cases collection: %w", err)
	}
	if err := vectors.EnsureCollection(ctx, cfg.Qdrant.IssuesCollection, cfg.Qdrant.VectorDim); err != nil {
		return nil, fmt.Errorf("ensure issues collection: %w", err)
	}

	embedder := embedclient.New(cfg.Services.EmbedURL)
	reranker := semsearch.NewHTTPReranker(cfg.Services.RerankURL)
	chatClient := textsql.NewOpenAIChatClient(cfg.Services.LLMAPIKey, cfg.Services.LLMBaseURL, cfg.Services.LLMModel)
	jobStore := vlmclient.NewRedisJobStore(redisClient)
	vlm := vlmclient.New(cfg.Services.VLMBaseURL, cfg.Services.VLMAPIKey, cfg.Services.VLMWebhookURL, jobStore)

	caseStore := store.NewCaseStore(dbClient.Pool)
	synonymStore := store.NewSynonymStore(dbClient.Pool)
	knowledgeStore := store.NewKnowledgeStore(dbClient.Pool)
	queryLogStore := store.NewQueryLogStore(dbClient.Pool)
	auditStore := store.NewAuditStore(dbClient.Pool)
	reviewStore := store.NewReviewStore(dbClient.Pool, caseStore)

	sqlGen, err := textsql.NewWithDefaultEncoder(chatClient, knowledgeStore, synonymStore, dbClient.Pool)
	if err != nil {
		return nil, fmt.Errorf("build text-to-SQL generator: %w", err)
	}

	searcher := semsearch.New(embedder, vectors, reranker, nil, cfg.Qdrant.CasesCollection, cfg.Qdrant.IssuesCollection)
	expander := queryexpand.New(synonymStore, nil)
	if err := expander.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load synonym table: %w", err)
	}

	resultCache := cache.New(redisClient, cache.TTLs{
		Embedding: cfg.CacheTTL.Embedding,
		Search:    cfg.CacheTTL.Search,
		Rerank:    cfg.CacheTTL.Rerank,
	})
	pipeline := hybridsearch.New(expander, sqlGen, searcher, resultCache)

	ix := indexer.New(embedder, vectors, caseStore, cfg.Qdrant.CasesCollection, cfg.Qdrant.IssuesCollection)
	ext := extractor.New(imagesDir)

	renderer := validation.NewRenderer(cfg.Validation.LibreOfficePath, float64(cfg.Validation.PageRenderDPI), cfg.Validation.RowsPerPageFallback)
	var validator *validation.Validator
	if cfg.Validation.Enabled {
		validator = validation.New(renderer, vlm, cfg.Validation.AutoCorrectThreshold)
	}

	enricher := enrich.New(vlm, cfg.VLMConcurrency.MaxInFlight, cfg.VLMConcurrency.JobTimeout)

	gate := rbac.New(cfg.RBAC.ProtectedToolRoles, cfg.RBAC.StrictMode)
	sink := audit.New(auditStore)

	var orchValidator orchestrator.Validator
	if validator != nil {
		orchValidator = validator
	}

	orch := orchestrator.New(orchestrator.Config{
		Extractor:        ext,
		Validator:        orchValidator,
		Enricher:         enricher,
		Indexer:          ix,
		Pipeline:         pipeline,
		Cases:            caseStore,
		Vectors:          vectors,
		CasesCollection:  cfg.Qdrant.CasesCollection,
		IssuesCollection: cfg.Qdrant.IssuesCollection,
		QueryLog:         queryLogStore,
		CacheStats:       resultCache,
		Gate:             gate,
		Sink:             sink,
		RenderDir:        renderDir,
	})

	return &App{
		Config:    cfg,
		DB:        dbClient,
		Orch:      orch,
		Reviews:   reviewStore,
		Extractor: ext,
		RenderDir: renderDir,
	}, nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}
