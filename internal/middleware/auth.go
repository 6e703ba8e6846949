package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchat/internal/identity"
	"roomchat/internal/models"
	"roomchat/internal/observability"
)

const (
	principalKey = "principal"
	tokenKey     = "session_token"
)

// LoginPath is where unauthenticated callers are sent.
const LoginPath = "/login"

// Resolver maps a session token to its principal.
type Resolver interface {
	Resolve(ctx context.Context, token string) (models.Principal, error)
}

// AuthMiddleware resolves the bearer token to a principal before the handler runs.
// Requests without a valid session never reach the handler.
func AuthMiddleware(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := observability.BearerToken(c.Request)
		if !ok {
			Unauthorized(c, "missing authorization")
			return
		}

		principal, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrExpiredToken):
				Unauthorized(c, "session expired")
			case errors.Is(err, identity.ErrTokenRevoked):
				Unauthorized(c, "signed out")
			default:
				Unauthorized(c, "invalid token")
			}
			return
		}

		c.Set(principalKey, principal)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// Unauthorized aborts with 401 and points the caller at the login view.
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message, "redirect": LoginPath})
}

// Principal returns the principal set by AuthMiddleware.
func Principal(c *gin.Context) (models.Principal, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	principal, ok := val.(models.Principal)
	return principal, ok
}

// SessionToken returns the token AuthMiddleware authenticated.
func SessionToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// SetPrincipal stores a principal on the context, as AuthMiddleware does.
func SetPrincipal(c *gin.Context, principal models.Principal) {
	c.Set(principalKey, principal)
}
