package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/academyhq/academy-api/internal/models"
	apperrors "github.com/academyhq/academy-api/pkg/errors"
	"github.com/academyhq/academy-api/pkg/response"
)

// Guard is a pure authorization predicate over the authenticated claims.
type Guard func(claims *models.TokenClaims) bool

// RoleGuard allows only an exact role match. There is no role hierarchy:
// admins are not implicitly authorized for user-only routes.
func RoleGuard(required models.UserRole) Guard {
	return func(claims *models.TokenClaims) bool {
		return claims != nil && claims.Role == required
	}
}

// Require evaluates the guards in order; every guard must allow the request
// or the pipeline halts with 403 before the handler runs.
func Require(guards ...Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		for _, guard := range guards {
			if !guard(claims) {
				response.Error(c, apperrors.ErrForbidden)
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

// RequireRole gates a route on one exact role.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return Require(RoleGuard(role))
}

func claimsFrom(c *gin.Context) *models.TokenClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
