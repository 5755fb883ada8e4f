package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/interfaces/http/response"
)

type oauthURLProvider interface {
	GoogleOAuthURL(ctx context.Context, nextPath string) (string, error)
}

// OAuthHandler starts third-party sign-in flows.
type OAuthHandler struct {
	provider oauthURLProvider
}

func NewOAuthHandler(provider oauthURLProvider) *OAuthHandler {
	return &OAuthHandler{provider: provider}
}

// GoogleLogin returns the URL the browser should follow for Google sign-in.
// GET /api/oauth/google?nextPath=/cart
func (h *OAuthHandler) GoogleLogin(c *gin.Context) {
	nextPath := strings.TrimSpace(c.Query("nextPath"))
	if nextPath != "" && !isLocalPath(nextPath) {
		response.Error(c, domainerrors.BadRequest("nextPath must be a local path"))
		return
	}

	authURL, err := h.provider.GoogleOAuthURL(c.Request.Context(), nextPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"authUrl": authURL})
}

// isLocalPath rejects absolute and protocol-relative targets.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
