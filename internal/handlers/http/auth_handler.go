package http

import (
	"net/http"
	"time"

	"rillscope/internal/core/services"
	"rillscope/internal/infrastructure/middleware"
	"rillscope/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves token refresh and whoami.
type AuthHandler struct {
	authService services.AuthService
	tokenTTL    time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService services.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

// SetupRoutes mounts the auth routes under /api/v1/auth.
func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/refresh", h.RefreshToken)
		api.GET("/whoami", middleware.AuthMiddleware(h.authService), h.WhoAmI)
	}
}

// RefreshTokenRequest carries the token to refresh.
type RefreshTokenRequest struct {
	Token string `json:"token" binding:"required,max=2048"`
}

// RefreshToken reissues a still-valid token with a fresh expiry. Subject and
// role are carried over unchanged.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	claims, err := h.authService.ValidateToken(req.Token)
	if err != nil {
		c.Error(errors.NewUnauthorizedError(err.Error()))
		return
	}

	token, err := h.authService.GenerateToken(claims.Subject, claims.Role)
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to generate token", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}

// WhoAmI returns the claims of the caller's token.
func (h *AuthHandler) WhoAmI(c *gin.Context) {
	claims, _ := c.Get(middleware.ContextKeyClaims)
	cl, _ := claims.(*services.Claims)
	if cl == nil {
		c.Error(errors.NewUnauthorizedError("missing claims"))
		return
	}

	resp := gin.H{
		"subject":  cl.Subject,
		"role":     cl.Role,
		"is_admin": middleware.IsAdmin(c),
	}
	if cl.ExpiresAt != nil {
		resp["expires_at"] = cl.ExpiresAt.Time.UTC()
	}
	c.JSON(http.StatusOK, resp)
}
