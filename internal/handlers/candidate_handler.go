package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository"
	"transfer-reconciliation-backend/internal/services/ingestion"
	"transfer-reconciliation-backend/internal/services/reconciliation"
	"transfer-reconciliation-backend/internal/services/resolution"
)

type CandidateHandler struct {
	ingest  *ingestion.Service
	recon   *reconciliation.Service
	machine *resolution.Machine
}

func NewCandidateHandler(ingest *ingestion.Service, recon *reconciliation.Service, machine *resolution.Machine) *CandidateHandler {
	return &CandidateHandler{ingest: ingest, recon: recon, machine: machine}
}

// IngestEvent accepts one transfer event from the stream source.
func (h *CandidateHandler) IngestEvent(c *gin.Context) {
	var event ingestion.TransferEvent
	if err := c.BindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	candidateID, created, err := h.ingest.Ingest(c.Request.Context(), event)
	if errors.Is(err, ingestion.ErrInvalidEvent) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"candidate_id": candidateID, "created": created})
}

func (h *CandidateHandler) ListCandidates(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	q := repository.ListCandidatesQuery{
		Status: models.CandidateStatus(c.Query("status")),
		Cursor: c.Query("cursor"),
		Limit:  limit,
	}

	candidates, nextCursor, hasMore, err := h.recon.ListCandidates(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"candidates":  candidates,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
	})
}

func (h *CandidateHandler) GetCandidate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate ID"})
		return
	}

	candidate, err := h.recon.GetCandidate(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "candidate not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"candidate": candidate})
}

// ApproveCandidate commits a manual_review candidate's proposed resolution.
func (h *CandidateHandler) ApproveCandidate(c *gin.Context) {
	h.review(c, true)
}

// RejectCandidate dismisses a manual_review candidate.
func (h *CandidateHandler) RejectCandidate(c *gin.Context) {
	h.review(c, false)
}

func (h *CandidateHandler) review(c *gin.Context, approve bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate ID"})
		return
	}

	reviewer := c.GetHeader("X-Reviewer")
	if reviewer == "" {
		reviewer = "reviewer"
	}

	status, err := h.machine.Review(c.Request.Context(), id, approve, reviewer, time.Now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "candidate not found"})
	case errors.Is(err, resolution.ErrNotReviewable):
		c.JSON(http.StatusConflict, gin.H{"error": "candidate is not in manual review", "status": status})
	case errors.Is(err, resolution.ErrNoProposedResolution):
		c.JSON(http.StatusConflict, gin.H{"error": "no proposed resolution to approve", "status": status})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"candidate_id": id, "status": status})
	}
}
