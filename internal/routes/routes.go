package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	handler "transfer-reconciliation-backend/internal/handlers"
)

func RegisterRoutes(r *gin.Engine, candidates *handler.CandidateHandler, settings *handler.SettingsHandler) {
	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Inbound transfer stream
	events := api.Group("/events")
	events.POST("/transfer", candidates.IngestEvent)

	// Candidate inspection and the review API
	cand := api.Group("/candidates")
	cand.GET("", candidates.ListCandidates)
	cand.GET("/:id", candidates.GetCandidate)
	cand.POST("/:id/approve", candidates.ApproveCandidate)
	cand.POST("/:id/reject", candidates.RejectCandidate)

	// Match settings (owned by account settings management)
	s := api.Group("/settings")
	s.GET("/:accountId", settings.GetSettings)
	s.PUT("/:accountId", settings.PutSettings)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
