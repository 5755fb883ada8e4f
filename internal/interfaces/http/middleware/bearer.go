package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/interfaces/http/response"
	"expat-market.storefront/pkg/jwt"
	"expat-market.storefront/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// BearerTokenKey is the context key for the raw bearer token
	BearerTokenKey = "bearerToken"
)

var now = time.Now

// BearerMiddleware requires a bearer token. The backend validates it; only
// tokens that are visibly expired are rejected here.
func BearerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			logger.Warn(c.Request.Context(), "Authorization header is missing", zap.String("path", c.Request.URL.Path))
			response.Error(c, domainerrors.Unauthorized("Authorization header is required"))
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.Error(c, domainerrors.Unauthorized("Invalid authorization format. Use: Bearer <token>"))
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		if token == "" {
			response.Error(c, domainerrors.Unauthorized("Invalid token"))
			c.Abort()
			return
		}
		if jwt.IsExpired(token, now()) {
			response.Error(c, domainerrors.NewAppError(http.StatusUnauthorized, domainerrors.CodeUnauthorized, "Token has expired", domainerrors.ErrUnauthorized))
			c.Abort()
			return
		}

		c.Set(BearerTokenKey, token)
		c.Next()
	}
}

// GetBearerToken returns the token stored by BearerMiddleware.
func GetBearerToken(c *gin.Context) (string, bool) {
	token := c.GetString(BearerTokenKey)
	return token, token != ""
}
