package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wastetrack/server/database"
)

// AuthMiddleware validates the bearer token and stores the user id in
// the request context. The event stream cannot send custom headers, so
// a token query parameter is accepted as a fallback.
func AuthMiddleware(service *database.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "missing authorization"})
			c.Abort()
			return
		}

		userID, err := service.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// RequireRole loads the authenticated account and rejects the request
// unless it holds the given role. The account is stored in the context
// for handlers that need it.
func RequireRole(service *database.AuthService, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		acct, err := service.GetUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "unknown user"})
			c.Abort()
			return
		}
		for _, r := range acct.Roles {
			if r == role {
				c.Set("account", acct)
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"message": "insufficient permissions"})
		c.Abort()
	}
}

// CORSMiddleware allows the browser clients through.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func extractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
