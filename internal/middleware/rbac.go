package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
	"github.com/noah-isme/sma-adp-reconciler/pkg/response"
)

// CurrentClaims returns the claims JWT stored on the request, if any.
func CurrentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok && claims != nil
}

// RequireRoles only lets callers holding one of roles through. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, permitted := allowed[claims.Role]; !permitted {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "reconciler operations require an administrator"))
			c.Abort()
			return
		}
		c.Next()
	}
}
