package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/pkg/auth"
)

// SubjectKey is where the authenticated subject lands in the gin context.
// Empty or absent means the request is a guest; the submission path then
// falls back to the session fox id.
const SubjectKey = "authSubject"

// AuthMiddleware validates a bearer token when one is present. Requests
// without an Authorization header pass through as guests. A nil validator
// disables authentication entirely.
func AuthMiddleware(validator auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if validator == nil || header == "" {
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization format"})
			return
		}
		claims, err := validator.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		subject := strings.TrimSpace(claims.Subject)
		if subject == "" {
			subject = strings.TrimSpace(claims.Email)
		}
		c.Set(SubjectKey, subject)
		c.Set("userClaims", claims)
		c.Next()
	}
}

// Subject returns the authenticated subject, or "" for guests.
func Subject(c *gin.Context) string {
	if v, ok := c.Get(SubjectKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
