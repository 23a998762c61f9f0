package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"charliesodds/internal/autoplay"
	"charliesodds/internal/ledger"
	"charliesodds/internal/models"
)

type AutoplayHandler struct {
	schedulers map[models.GameType]*autoplay.Scheduler
}

func NewAutoplayHandler(schedulers map[models.GameType]*autoplay.Scheduler) *AutoplayHandler {
	return &AutoplayHandler{schedulers: schedulers}
}

func (h *AutoplayHandler) scheduler(c *gin.Context) (*autoplay.Scheduler, bool) {
	game := models.GameType(c.Param("game"))
	sched, ok := h.schedulers[game]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown game"})
		return nil, false
	}
	return sched, true
}

type autoplayStartRequest struct {
	Stake     float64 `json:"stake" binding:"required,gt=0"`
	MaxRounds int     `json:"max_rounds"`
	Unbounded bool    `json:"unbounded"`
	DelayMs   int     `json:"delay_ms"`
}

func (h *AutoplayHandler) Start(c *gin.Context) {
	sched, ok := h.scheduler(c)
	if !ok {
		return
	}

	var req autoplayStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if !req.Unbounded && req.MaxRounds < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_rounds must be at least 1"})
		return
	}

	err := sched.Start(autoplay.Config{
		Stake:     req.Stake,
		MaxRounds: req.MaxRounds,
		Unbounded: req.Unbounded,
		Delay:     time.Duration(req.DelayMs) * time.Millisecond,
	})
	switch {
	case errors.Is(err, autoplay.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Autoplay already running"})
	case errors.Is(err, autoplay.ErrInsufficientFunds):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Balance cannot cover the stake"})
	case errors.Is(err, ledger.ErrNoActiveAccount):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No active account"})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": sched.Status()})
	}
}

func (h *AutoplayHandler) Stop(c *gin.Context) {
	sched, ok := h.scheduler(c)
	if !ok {
		return
	}
	sched.Stop()
	c.JSON(http.StatusOK, gin.H{"status": sched.Status()})
}

func (h *AutoplayHandler) Status(c *gin.Context) {
	sched, ok := h.scheduler(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": sched.Status()})
}
