package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"expat-market.storefront/internal/interfaces/http/handlers"
)

type routeDeps struct {
	healthHandler       *handlers.HealthHandler
	productProxyHandler *handlers.ProductProxyHandler
	oauthHandler        *handlers.OAuthHandler
	analyticsHandler    *handlers.AnalyticsHandler
	metricsHandler      http.Handler
	bearerMiddleware    gin.HandlerFunc
}

func registerAPIRoutes(r *gin.Engine, d routeDeps) {
	api := r.Group("/api")
	{
		api.GET("/health", d.healthHandler.GetHealth)
		api.HEAD("/health", d.healthHandler.HeadHealth)

		// Product updates (caller's token is forwarded to the backend)
		api.PATCH("/products/:id", d.bearerMiddleware, d.productProxyHandler.UpdateProduct)

		oauth := api.Group("/oauth")
		{
			oauth.GET("/google", d.oauthHandler.GoogleLogin)
		}

		api.GET("/matomo", d.analyticsHandler.Query)
	}

	if d.metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.metricsHandler))
	}
}
