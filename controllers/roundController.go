package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wingo-engine/engine"
	"wingo-engine/models"
	"wingo-engine/store"
)

// RoundCache is a read-optimized source of current rounds.
type RoundCache interface {
	Get(ctx context.Context, mode string) (models.Round, error)
}

// RoundController serves the read side of rounds: the live round of each
// mode and its resolved history.
type RoundController struct {
	Store store.Store
	Modes engine.ModeSet
	Cache RoundCache
	Log   logrus.FieldLogger
}

// NewRoundController returns a new RoundController instance. cache may be nil.
func NewRoundController(st store.Store, modes engine.ModeSet, cache RoundCache, log logrus.FieldLogger) *RoundController {
	return &RoundController{Store: st, Modes: modes, Cache: cache, Log: log}
}

type roundView struct {
	Mode          models.Mode  `json:"mode"`
	Round         models.Round `json:"round"`
	TimeRemaining int64        `json:"timeRemainingMs"`
	BettingOpen   bool         `json:"bettingOpen"`
}

// GetRoundsHandler returns the current round of every mode.
func (rc *RoundController) GetRoundsHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	now := rc.Store.Now(ctx)
	views := make([]roundView, 0)
	for _, mode := range rc.Modes.All() {
		round, err := rc.current(ctx, mode.Name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		views = append(views, newRoundView(mode, round, now))
	}
	c.JSON(http.StatusOK, gin.H{"rounds": views, "serverTime": now})
}

// GetRoundHandler returns the current round of one mode.
func (rc *RoundController) GetRoundHandler(c *gin.Context) {
	mode, err := rc.Modes.Lookup(c.Param("mode"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	round, err := rc.current(ctx, mode.Name)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no round in progress"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := rc.Store.Now(ctx)
	c.JSON(http.StatusOK, gin.H{"round": newRoundView(mode, round, now), "serverTime": now})
}

// GetHistoryHandler returns the latest resolved periods of a mode.
func (rc *RoundController) GetHistoryHandler(c *gin.Context) {
	mode, err := rc.Modes.Lookup(c.Param("mode"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	history, err := rc.Store.RecentHistory(ctx, mode.Name, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if history == nil {
		history = []models.HistoryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode.Name, "history": history})
}

// current prefers the snapshot cache and falls back to the store.
func (rc *RoundController) current(ctx context.Context, mode string) (models.Round, error) {
	if rc.Cache != nil {
		round, err := rc.Cache.Get(ctx, mode)
		if err == nil {
			return round, nil
		}
		rc.Log.WithField("mode", mode).WithError(err).Debug("round snapshot unavailable")
	}
	return rc.Store.GetRound(ctx, mode)
}

func newRoundView(mode models.Mode, round models.Round, now time.Time) roundView {
	remaining := round.TimeRemaining(now)
	return roundView{
		Mode:          mode,
		Round:         round,
		TimeRemaining: remaining.Milliseconds(),
		BettingOpen:   round.Status == models.RoundBetting && remaining > mode.LockWindow,
	}
}
