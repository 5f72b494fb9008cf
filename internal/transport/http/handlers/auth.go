package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Dokus-Tech/dokus-auth/internal/transport/http/middleware"
	"github.com/Dokus-Tech/dokus-auth/internal/usecase"
)

// AuthHandler exposes the login, refresh and logout endpoints.
type AuthHandler struct {
	auth *usecase.AuthOrchestrator
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthOrchestrator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds authentication routes.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid_request", "email and password are required", true))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, clientInfo(c, req.ClientID))
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenPairResponse{
		AccessToken:      result.Tokens.AccessToken,
		RefreshToken:     result.Tokens.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(result.Tokens.AccessExpiresIn.Seconds()),
		RefreshExpiresAt: result.Tokens.RefreshExpiresAt,
		Account:          newAccountSummary(result.Account),
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid_request", "refresh_token is required", true))
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientInfo(c, ""))
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenPairResponse{
		AccessToken:      result.Tokens.AccessToken,
		RefreshToken:     result.Tokens.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(result.Tokens.AccessExpiresIn.Seconds()),
		RefreshExpiresAt: result.Tokens.RefreshExpiresAt,
	})
}

// logout revokes the presented refresh token. Always 204: a second logout
// with the same token, or one with a stale token, is not an error.
func (h *AuthHandler) logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "internal_error", "failed to revoke token", false))
		return
	}

	c.Status(http.StatusNoContent)
}

// clientInfo captures request metadata persisted alongside issued tokens.
func clientInfo(c *gin.Context, clientID string) usecase.ClientInfo {
	info := usecase.ClientInfo{}

	reqCtx := middleware.GetRequestContext(c)
	if reqCtx.IP != "" {
		ip := reqCtx.IP
		info.IP = &ip
	}
	if reqCtx.UserAgent != "" {
		ua := reqCtx.UserAgent
		info.UserAgent = &ua
	}
	if clientID = strings.TrimSpace(clientID); clientID != "" {
		info.ClientID = &clientID
	}

	return info
}
