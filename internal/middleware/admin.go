package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"memeshare/api/internal/service"
)

const AdminIdentityKey = "admin_identity"

// AdminAuth rejects requests whose Authorization header does not carry a
// valid administrator token.
func AdminAuth(authorize service.AuthorizeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authorize(c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, service.ErrForbidden) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "admin role required"})
				return
			}
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid or expired admin token"})
			return
		}

		c.Set(AdminIdentityKey, identity)
		c.Next()
	}
}
