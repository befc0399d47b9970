package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wingo-engine/engine"
	"wingo-engine/models"
	"wingo-engine/store"
)

// BetController handles wager placement and wager queries.
type BetController struct {
	Bets    *engine.BetPlacement
	Store   store.Store
	Limiter *AccountRateLimiter
	Log     logrus.FieldLogger
}

func NewBetController(bets *engine.BetPlacement, st store.Store, limiter *AccountRateLimiter, log logrus.FieldLogger) *BetController {
	return &BetController{Bets: bets, Store: st, Limiter: limiter, Log: log}
}

type placeBetRequest struct {
	AccountID string `json:"accountId" binding:"required"`
	Mode      string `json:"mode" binding:"required"`
	BetKind   string `json:"betKind" binding:"required"`
	BetValue  string `json:"betValue" binding:"required"`
	Stake     int64  `json:"stake" binding:"required,gt=0"`
}

// PlaceBetHandler places a wager on the current period of a mode.
func (bc *BetController) PlaceBetHandler(c *gin.Context) {
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if bc.Limiter != nil && !bc.Limiter.Allow(req.AccountID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many bets, slow down"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	wager, balance, err := bc.Bets.PlaceBet(ctx, engine.BetRequest{
		AccountID: req.AccountID,
		Mode:      req.Mode,
		Kind:      models.BetKind(req.BetKind),
		Value:     req.BetValue,
		Stake:     req.Stake,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			bc.Log.WithField("account_id", req.AccountID).WithField("mode", req.Mode).WithError(err).Error("failed to place bet")
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "bet placed", "wager": wager, "balance": balance})
}

// GetWagersHandler lists an account's most recent wagers.
func (bc *BetController) GetWagersHandler(c *gin.Context) {
	accountID := c.Param("accountId")
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	wagers, err := bc.Store.ListWagersByAccount(ctx, accountID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if wagers == nil {
		wagers = []models.Wager{}
	}
	c.JSON(http.StatusOK, gin.H{"accountId": accountID, "wagers": wagers})
}
