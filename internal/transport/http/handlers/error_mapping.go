package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Dokus-Tech/dokus-auth/internal/usecase"
)

// respondAuthError translates the usecase error taxonomy into the
// caller-facing payload. The mapping deliberately collapses distinctions the
// client must not learn (expired vs reused refresh tokens) while preserving
// the ones it needs (rate limit vs bad credentials).
func respondAuthError(c *gin.Context, err error) {
	var tooMany *usecase.TooManyAttemptsError
	if errors.As(err, &tooMany) {
		seconds := tooMany.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(seconds))
		resp := NewErrorResponse(c, "too_many_attempts", "too many login attempts", true)
		resp.RetryAfterSeconds = &seconds
		c.JSON(http.StatusTooManyRequests, resp)
		return
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid_credentials", "invalid email or password", true))
	case errors.Is(err, usecase.ErrInvalidRefreshToken):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid_refresh_token", "invalid refresh token", true))
	case errors.Is(err, usecase.ErrAccountInactive):
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "account_inactive", "account is not active", false))
	case errors.Is(err, usecase.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "account_not_found", "account not found", false))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "internal_error", "internal server error", false))
	}
}
