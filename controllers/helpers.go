package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wingo-engine/engine"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// parseLimit reads the limit query parameter and writes a 400 when it is
// malformed.
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrBettingClosed):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidMode),
		errors.Is(err, engine.ErrInvalidBetKind),
		errors.Is(err, engine.ErrInvalidBetValue),
		errors.Is(err, engine.ErrInvalidStake),
		errors.Is(err, engine.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
