package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository"
)

// SettingsHandler exposes match settings for the surrounding application.
// The reconciliation engine itself only ever reads these.
type SettingsHandler struct {
	settings repository.SettingsStore
	defaults models.MatchSettings
}

func NewSettingsHandler(settings repository.SettingsStore, defaults models.MatchSettings) *SettingsHandler {
	return &SettingsHandler{settings: settings, defaults: defaults}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("accountId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account ID"})
		return
	}

	var walletID *uuid.UUID
	if v := c.Query("wallet_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet ID"})
			return
		}
		walletID = &id
	}

	settings, err := h.settings.Get(c.Request.Context(), accountID, walletID)
	if errors.Is(err, repository.ErrNotFound) {
		// Never configured; report the effective defaults.
		c.JSON(http.StatusOK, gin.H{"settings": h.defaults, "source": "defaults"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings, "source": "configured"})
}

func (h *SettingsHandler) PutSettings(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("accountId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account ID"})
		return
	}

	var payload struct {
		WalletID              *uuid.UUID `json:"wallet_id"`
		Enabled               bool       `json:"enabled"`
		MinConfidence         float64    `json:"min_confidence"`
		AutoApproveConfidence float64    `json:"auto_approve_confidence"`
		AutoConfirm           bool       `json:"auto_confirm"`
		TimeWindowHours       int        `json:"time_window_hours"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if payload.AutoApproveConfidence < payload.MinConfidence {
		c.JSON(http.StatusBadRequest, gin.H{"error": "auto_approve_confidence must be >= min_confidence"})
		return
	}
	if payload.MinConfidence < 0 || payload.AutoApproveConfidence > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confidence thresholds must be within [0, 1]"})
		return
	}
	if payload.TimeWindowHours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time_window_hours must be positive"})
		return
	}

	settings := &models.MatchSettings{
		AccountID:             accountID,
		WalletID:              payload.WalletID,
		Enabled:               payload.Enabled,
		MinConfidence:         payload.MinConfidence,
		AutoApproveConfidence: payload.AutoApproveConfidence,
		AutoConfirm:           payload.AutoConfirm,
		TimeWindowHours:       payload.TimeWindowHours,
	}
	if err := h.settings.Upsert(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "settings saved", "settings": settings})
}
