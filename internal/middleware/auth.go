package middleware

import (
	"net/http"
	"strings"

	"authcore/internal/modules/auth"

	"github.com/gin-gonic/gin"
)

// RequireSession verifies the bearer access token against live session
// state and stores the caller identity in the gin context.
func RequireSession(engine *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortUnauthorized(c, "MISSING_TOKEN", "Authorization bearer token required")
			return
		}

		result, err := engine.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, "UNAUTHORIZED", "invalid or expired access token")
			return
		}

		c.Set(auth.CtxSubjectID, result.SubjectID)
		c.Set(auth.CtxSessionID, result.SessionID.String())
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}
