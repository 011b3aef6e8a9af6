package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"collabflow/auth"
)

// TokenVerifier validates a bearer token and returns the subject's identity.
type TokenVerifier interface {
	VerifyToken(tokenString string) (string, auth.Role, error)
}

// Auth validates the Authorization bearer token and stores the
// authenticated user's id and role in the request context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		userID, role, err := verifier.VerifyToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("user_id", userID)
		c.Set("user_role", string(role))

		c.Next()
	}
}

// GetUserID gets the authenticated user's id from gin context.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		return userID.(string)
	}
	return ""
}

// GetUserRole gets the authenticated user's role from gin context.
func GetUserRole(c *gin.Context) auth.Role {
	if role, exists := c.Get("user_role"); exists {
		return auth.Role(role.(string))
	}
	return ""
}
