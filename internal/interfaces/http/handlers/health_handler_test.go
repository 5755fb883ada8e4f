package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHealthRouter(h *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/health", h.GetHealth)
	r.HEAD("/api/health", h.HeadHealth)
	return r
}

func TestHealthHandler_GetHealth(t *testing.T) {
	h := NewHealthHandler("production", "2.3.1")
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.started = started
	h.now = func() time.Time { return started.Add(90 * time.Second) }
	h.readMem = func(m *runtime.MemStats) {
		m.HeapAlloc = 12 << 20
		m.HeapSys = 64 << 20
	}

	w := httptest.NewRecorder()
	newHealthRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "production", body.Environment)
	assert.Equal(t, "2.3.1", body.Version)
	assert.Equal(t, 90.0, body.Uptime)
	assert.Equal(t, "2026-03-01T12:01:30Z", body.Timestamp)
	assert.Equal(t, memoryUsage{Used: 12, Total: 64}, body.Memory)
}

func TestHealthHandler_DefaultVersion(t *testing.T) {
	assert.Equal(t, "1.0.0", NewHealthHandler("development", "").version)
}

func TestHealthHandler_Head(t *testing.T) {
	w := httptest.NewRecorder()
	newHealthRouter(NewHealthHandler("test", "")).ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHealthHandler_InternalFailure(t *testing.T) {
	h := NewHealthHandler("test", "")
	h.readMem = func(*runtime.MemStats) { panic("stats unavailable") }

	w := httptest.NewRecorder()
	newHealthRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
	assert.Contains(t, w.Body.String(), "stats unavailable")
}
