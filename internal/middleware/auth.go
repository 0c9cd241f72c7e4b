package middleware

import (
	"net/http"
	"strings"

	"raspimon/internal/services"

	"github.com/gin-gonic/gin"
)

// OperatorKey is the gin context key holding the authenticated token subject
const OperatorKey = "operator"

// RequireOperator demands a valid bearer token on the route. When auth is
// disabled every request passes through unauthenticated.
func RequireOperator(auth *services.AuthService, sl *SecurityLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !validTokenFormat(token) {
			sl.LogFailedAuth(c.ClientIP(), "missing or malformed bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			sl.LogFailedAuth(c.ClientIP(), err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(OperatorKey, claims.Subject)
		sl.LogOperatorAction(c.ClientIP(), claims.Subject, c.Request.Method, c.FullPath())
		c.Next()
	}
}

// Operator returns the token subject of the request, or "" when unauthenticated
func Operator(c *gin.Context) string {
	return c.GetString(OperatorKey)
}

// validTokenFormat checks the header.payload.signature shape before any parsing
func validTokenFormat(token string) bool {
	if len(token) < 20 || len(token) > 4096 {
		return false
	}
	return strings.Count(token, ".") == 2
}
