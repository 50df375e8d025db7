package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "mana/internal/errors"
)

// PipelineAuthMiddleware guards the machine-to-machine routes used by the
// worker and external schedulers. Requests must carry the configured key in
// X-API-Key; with no key configured the routes are disabled.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
