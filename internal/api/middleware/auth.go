package middleware

import (
	"net/http"
	"strings"

	"journey-risk-api-server/internal/auth"
	"journey-risk-api-server/internal/models"

	"github.com/gin-gonic/gin"
)

// Context keys set by Authenticate.
const (
	ContextUserID = "user_id"
	ContextRole   = "user_role"
)

// Authenticate verifies the bearer access token and stores the caller in the context.
func Authenticate(tm *auth.TokenManager) gin.HandlerFunc {
	return authenticate(tm, auth.TokenTypeAccess)
}

// AuthenticateRefresh is Authenticate for endpoints that take a refresh token.
func AuthenticateRefresh(tm *auth.TokenManager) gin.HandlerFunc {
	return authenticate(tm, auth.TokenTypeRefresh)
}

func authenticate(tm *auth.TokenManager, tokenType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, err := tm.Parse(tokenString, tokenType)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, claims.UserID())
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// Authorize lets through callers whose role is one of allowedRoles.
func Authorize(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := Role(c)
		if userRole == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "User role not found in context"})
			return
		}
		for _, role := range allowedRoles {
			if role == userRole {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
	}
}

func UserID(c *gin.Context) string { return c.GetString(ContextUserID) }

func Role(c *gin.Context) string { return c.GetString(ContextRole) }

func IsAdmin(c *gin.Context) bool { return Role(c) == models.RoleAdmin }

// CanAccess reports whether the caller owns the resource or is an admin.
func CanAccess(c *gin.Context, ownerID string) bool {
	return IsAdmin(c) || (ownerID != "" && ownerID == UserID(c))
}
