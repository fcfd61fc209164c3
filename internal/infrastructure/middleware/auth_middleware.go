package middleware

import (
	"strings"

	"rillscope/internal/core/services"
	apperrors "rillscope/pkg/errors"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyClaims  = "claims"
	ContextKeySubject = "subject"
	ContextKeyIsAdmin = "is_admin"
)

// bearerToken reads the token from the Authorization header, or from the
// token query parameter for clients that cannot set headers (websockets).
func bearerToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

func setClaims(c *gin.Context, authService services.AuthService, claims *services.Claims) {
	c.Set(ContextKeyClaims, claims)
	c.Set(ContextKeySubject, claims.Subject)
	if authService.IsAdmin(claims) {
		c.Set(ContextKeyIsAdmin, true)
	}
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" && c.Query("token") == "" {
			abortWithError(c, apperrors.NewUnauthorizedError("authorization header required"))
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, apperrors.NewUnauthorizedError("invalid authorization header format"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWithError(c, apperrors.NewUnauthorizedError(err.Error()))
			return
		}

		setClaims(c, authService, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware never rejects a request. A valid token with the
// admin role marks the request as admin; defaultAdmin marks every request.
func OptionalAuthMiddleware(authService services.AuthService, defaultAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if defaultAdmin {
			c.Set(ContextKeyIsAdmin, true)
		}

		if token, ok := bearerToken(c); ok {
			if claims, err := authService.ValidateToken(token); err == nil {
				setClaims(c, authService, claims)
			}
		}

		c.Next()
	}
}

// IsAdmin reports whether the auth middleware granted admin rights.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ContextKeyIsAdmin)
}
