package mw

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"guest-presence-backend/internal/auth"
)

const principalKey = "principal"

// Authenticate parses the bearer token and stores the principal on the
// request. Requests without a valid token are rejected with 401.
func Authenticate(cfg auth.Config, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.Parse(auth.BearerToken(c.GetHeader("Authorization")), cfg)
		if err != nil {
			message := "invalid bearer token"
			if errors.Is(err, auth.ErrMissingToken) {
				message = "authorization header is required"
			}
			log.Debug("rejected request", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": message,
			})
			return
		}

		p := auth.Principal{Subject: claims.Subject, Role: claims.Role}
		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// RequireRole rejects principals below the required role with 403.
func RequireRole(required auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Principal(c).Role.AtLeast(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "insufficient privilege",
			})
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated requester, or an anonymous one.
func Principal(c *gin.Context) auth.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(auth.Principal); ok {
			return p
		}
	}
	return auth.FromContext(c.Request.Context())
}
