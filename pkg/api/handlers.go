package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unergybot/tke/pkg/models"
	"github.com/unergybot/tke/pkg/orchestrator"
)

// Orchestrator is the subset of pkg/orchestrator.Orchestrator the API needs.
type Orchestrator interface {
	IngestCase(ctx context.Context, user *models.UserContext, path string, opts orchestrator.IngestOptions) (string, error)
	Query(ctx context.Context, user *models.UserContext, text string, opts orchestrator.QueryOptions) (*models.SearchResponse, error)
	DeleteCase(ctx context.Context, user *models.UserContext, caseID string) error
	GetStats(ctx context.Context, user *models.UserContext) (*orchestrator.Stats, error)
}

// ingestCaseHandler handles POST /cases.
func (s *Server) ingestCaseHandler(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	caseID, err := s.orch.IngestCase(c.Request.Context(), userFromHeaders(c), req.Path, orchestrator.IngestOptions{
		Validate:             req.Validate,
		AutoCorrectThreshold: req.AutoCorrectThreshold,
		VLMEnrich:            req.VLMEnrich,
		ForceReindex:         req.ForceReindex,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, IngestResponse{CaseID: caseID})
}

// deleteCaseHandler handles DELETE /cases/:id.
func (s *Server) deleteCaseHandler(c *gin.Context) {
	caseID := c.Param("id")
	if err := s.orch.DeleteCase(c.Request.Context(), userFromHeaders(c), caseID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{CaseID: caseID, Message: "deleted"})
}

// queryHandler handles POST /query.
func (s *Server) queryHandler(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := models.ModeAuto
	if req.Mode != "" {
		mode = models.SearchMode(req.Mode)
	}

	resp, err := s.orch.Query(c.Request.Context(), userFromHeaders(c), req.Text, orchestrator.QueryOptions{
		Mode:      mode,
		TopK:      req.TopK,
		ReturnSQL: req.ReturnSQL,
		SessionID: req.SessionID,
		Filters: models.Filters{
			PartNumber:   req.Filters.PartNumber,
			Material:     req.Filters.Material,
			TrialVersion: req.Filters.TrialVersion,
			Result:       req.Filters.Result,
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// statsHandler handles GET /stats.
func (s *Server) statsHandler(c *gin.Context) {
	stats, err := s.orch.GetStats(c.Request.Context(), userFromHeaders(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// listReviewQueueHandler handles GET /review-queue.
func (s *Server) listReviewQueueHandler(c *gin.Context) {
	items, err := s.reviews.ListPending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// resolveReviewHandler handles POST /review-queue/:id/resolve. :id is the
// issue_id the image being reviewed belongs to.
func (s *Server) resolveReviewHandler(c *gin.Context) {
	issueID := c.Param("id")

	var req ResolveReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reviewedBy := "api-client"
	if user := userFromHeaders(c); user != nil {
		reviewedBy = user.UserID
	}

	if err := s.reviews.Resolve(c.Request.Context(), issueID, req.ImageID, reviewedBy, req.Accept); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ResolveReviewResponse{IssueID: issueID, ImageID: req.ImageID, Message: "resolved"})
}
