// Package api exposes the orchestrator's four operations plus the review
// queue over HTTP, using gin as the router.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unergybot/tke/pkg/database"
	"github.com/unergybot/tke/pkg/store"
)

// ReviewQueue is the subset of pkg/store.ReviewStore the review-queue
// endpoints need.
type ReviewQueue interface {
	ListPending(ctx context.Context) ([]*store.ReviewItem, error)
	Resolve(ctx context.Context, issueID, imageID, reviewedBy string, accept bool) error
}

// Server wires the orchestrator and review queue behind the HTTP API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	orch       Orchestrator
	reviews    ReviewQueue
	dbClient   *database.Client // nil disables the database health check
}

// NewServer builds a Server with every route registered.
func NewServer(orch Orchestrator, reviews ReviewQueue, dbClient *database.Client) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders())

	s := &Server{router: r, orch: orch, reviews: reviews, dbClient: dbClient}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	s.router.POST("/cases", s.ingestCaseHandler)
	s.router.DELETE("/cases/:id", s.deleteCaseHandler)
	s.router.POST("/query", s.queryHandler)
	s.router.GET("/stats", s.statsHandler)
	s.router.GET("/review-queue", s.listReviewQueueHandler)
	s.router.POST("/review-queue/:id/resolve", s.resolveReviewHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health. Only this module's own database
// dependency is checked; external embed/rerank/vlm/llm services are
// excluded so an orchestrator process restart is never triggered by a
// transient outage of one of them.
func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]HealthCheck)
	status := "healthy"

	if s.dbClient != nil {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.dbClient.Pool.Ping(reqCtx); err != nil {
			status = "unhealthy"
			checks["database"] = HealthCheck{Status: "unhealthy", Message: err.Error()}
		} else {
			checks["database"] = HealthCheck{Status: "healthy"}
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, &HealthResponse{Status: status, Checks: checks})
}
