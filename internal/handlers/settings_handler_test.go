package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository/memory"
)

func newSettingsRouter(t *testing.T) (*gin.Engine, *memory.SettingsStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewSettingsStore()
	h := NewSettingsHandler(store, testDefaults())

	router := gin.New()
	router.GET("/api/settings/:accountId", h.GetSettings)
	router.PUT("/api/settings/:accountId", h.PutSettings)
	return router, store
}

func putJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetSettings_FallsBackToDefaults(t *testing.T) {
	router, _ := newSettingsRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/settings/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Settings models.MatchSettings `json:"settings"`
		Source   string               `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "defaults", resp.Source)
	assert.Equal(t, 0.6, resp.Settings.MinConfidence)
}

func TestPutSettings_RoundTrips(t *testing.T) {
	router, _ := newSettingsRouter(t)
	accountID := uuid.New()

	w := putJSON(t, router, "/api/settings/"+accountID.String(), map[string]interface{}{
		"enabled":                 true,
		"min_confidence":          0.5,
		"auto_approve_confidence": 0.9,
		"auto_confirm":            false,
		"time_window_hours":       48,
	})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/settings/"+accountID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Settings models.MatchSettings `json:"settings"`
		Source   string               `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "configured", resp.Source)
	assert.Equal(t, 48, resp.Settings.TimeWindowHours)
	assert.False(t, resp.Settings.AutoConfirm)
}

func TestPutSettings_RejectsInvalidThresholds(t *testing.T) {
	router, _ := newSettingsRouter(t)
	path := "/api/settings/" + uuid.NewString()

	cases := []map[string]interface{}{
		// auto-approve below min
		{"enabled": true, "min_confidence": 0.8, "auto_approve_confidence": 0.6, "time_window_hours": 24},
		// out of range
		{"enabled": true, "min_confidence": -0.1, "auto_approve_confidence": 0.8, "time_window_hours": 24},
		{"enabled": true, "min_confidence": 0.6, "auto_approve_confidence": 1.1, "time_window_hours": 24},
		// bad window
		{"enabled": true, "min_confidence": 0.6, "auto_approve_confidence": 0.8, "time_window_hours": 0},
	}
	for _, payload := range cases {
		w := putJSON(t, router, path, payload)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}
