package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/academyhq/academy-api/internal/models"
	apperrors "github.com/academyhq/academy-api/pkg/errors"
	"github.com/academyhq/academy-api/pkg/response"
)

// ContextUserKey is the gin context key storing the authenticated claims.
const ContextUserKey = "currentUser"

// Authenticator verifies a bearer token and returns its claims. Tokens must
// be backed by a live session record.
type Authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*models.TokenClaims, error)
}

// Auth protects routes by requiring a valid, unrevoked bearer token. The
// claims are resolved once here and passed explicitly downstream.
func Auth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, apperrors.Clone(apperrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}
