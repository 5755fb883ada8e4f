package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"expat-market.storefront/internal/infrastructure/analytics"
	"expat-market.storefront/internal/interfaces/http/response"
)

type analyticsQuerier interface {
	Query(ctx context.Context, params url.Values) (*analytics.Result, error)
}

// AnalyticsHandler proxies reporting queries so the auth token stays on the server.
type AnalyticsHandler struct {
	querier analyticsQuerier
}

func NewAnalyticsHandler(querier analyticsQuerier) *AnalyticsHandler {
	return &AnalyticsHandler{querier: querier}
}

// Query forwards the request's query string.
// GET /api/matomo?method=VisitsSummary.get&period=day&date=today
func (h *AnalyticsHandler) Query(c *gin.Context) {
	result, err := h.querier.Query(c.Request.Context(), c.Request.URL.Query())
	if errors.Is(err, analytics.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Analytics is not configured"})
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(result.Status, contentType, result.Body)
}
