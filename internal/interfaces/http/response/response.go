package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "expat-market.storefront/internal/domain/errors"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error sends an error response
func Error(c *gin.Context, err error) {
	appErr := domainerrors.Normalize(err)
	if appErr == nil || appErr.Kind == domainerrors.KindUnknown {
		// Default to Internal Server Error if it cannot be classified
		appErr = domainerrors.InternalError(err)
	}

	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{
		"code":    appErr.Code,
		"kind":    appErr.Kind,
		"message": appErr.UserMessage,
		"error":   appErr.Message,
	})
}

// ErrorWithError sends an error response with a specific status and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
		"error":   message,
	})
}
