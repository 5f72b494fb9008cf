package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Dokus-Tech/dokus-auth/internal/transport/http/middleware"
	"github.com/Dokus-Tech/dokus-auth/internal/usecase"
)

// SessionHandler exposes authenticated session and account endpoints.
type SessionHandler struct {
	auth *usecase.AuthOrchestrator
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(auth *usecase.AuthOrchestrator) *SessionHandler {
	return &SessionHandler{auth: auth}
}

// RegisterRoutes binds session routes. The group must already carry the
// RequireAuth middleware.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.list)
	r.POST("/revoke-all", h.revokeAll)
}

// RegisterAccountRoutes binds account lifecycle routes.
func (h *SessionHandler) RegisterAccountRoutes(r *gin.RouterGroup) {
	r.POST("/deactivate", h.deactivate)
}

func (h *SessionHandler) list(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "unauthorized", "authentication required", true))
		return
	}

	sessions, err := h.auth.ListSessions(c.Request.Context(), principal.UserID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	payloads := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payloads = append(payloads, newSessionPayload(session))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: payloads, Total: len(payloads)})
}

func (h *SessionHandler) revokeAll(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "unauthorized", "authentication required", true))
		return
	}

	var req RevokeAllRequest
	_ = c.ShouldBindJSON(&req)

	count, err := h.auth.RevokeAllSessions(c.Request.Context(), principal.UserID, strings.TrimSpace(req.Reason))
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, RevokeAllResponse{RevokedCount: count})
}

func (h *SessionHandler) deactivate(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "unauthorized", "authentication required", true))
		return
	}

	var req DeactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid_request", "reason is required", true))
		return
	}

	if err := h.auth.Deactivate(c.Request.Context(), principal.UserID, req.Reason); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account deactivated"})
}
