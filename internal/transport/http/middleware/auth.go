package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
)

const principalKey = "auth_principal"

// RequireAuth rejects requests without a valid bearer access token and stores
// the verified principal in the gin context.
func RequireAuth(issuer port.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "bearer token required"})
			return
		}

		principal, err := issuer.Verify(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "invalid or expired access token"})
			return
		}

		c.Set(principalKey, principal)
		c.Set(UserIDKey, principal.UserID)

		c.Next()
	}
}

// GetPrincipal retrieves the verified principal stored by RequireAuth.
func GetPrincipal(c *gin.Context) *port.Principal {
	if value, exists := c.Get(principalKey); exists {
		if principal, ok := value.(*port.Principal); ok {
			return principal
		}
	}
	return nil
}
