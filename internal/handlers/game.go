package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"charliesodds/internal/betlog"
	"charliesodds/internal/games"
	"charliesodds/internal/ledger"
	"charliesodds/internal/limits"
	"charliesodds/internal/models"
	"charliesodds/internal/settings"
)

type GameHandler struct {
	blackjack *games.Blackjack
	crash     *games.Crash
	log       *betlog.Log
	settings  *settings.Service
	oracle    *limits.Oracle
}

func NewGameHandler(blackjack *games.Blackjack, crash *games.Crash, log *betlog.Log, svc *settings.Service, oracle *limits.Oracle) *GameHandler {
	return &GameHandler{
		blackjack: blackjack,
		crash:     crash,
		log:       log,
		settings:  svc,
		oracle:    oracle,
	}
}

func gameError(c *gin.Context, err error) {
	var verr *games.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Reason})
	case errors.Is(err, games.ErrRoundInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "Round already in progress"})
	case errors.Is(err, games.ErrNoRoundActive):
		c.JSON(http.StatusConflict, gin.H{"error": "No round in progress"})
	case errors.Is(err, ledger.ErrNoActiveAccount):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No active account"})
	case errors.Is(err, ledger.ErrInvalidStake):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stake"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

type stakeRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

func (h *GameHandler) Deal(c *gin.Context) {
	var req stakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.blackjack.Deal(req.Amount); err != nil {
		gameError(c, err)
		return
	}
	h.blackjackState(c)
}

func (h *GameHandler) Hit(c *gin.Context) {
	if err := h.blackjack.Hit(); err != nil {
		gameError(c, err)
		return
	}
	h.blackjackState(c)
}

func (h *GameHandler) Stand(c *gin.Context) {
	if err := h.blackjack.Stand(); err != nil {
		gameError(c, err)
		return
	}
	h.blackjackState(c)
}

func (h *GameHandler) BlackjackState(c *gin.Context) {
	h.blackjackState(c)
}

func (h *GameHandler) blackjackState(c *gin.Context) {
	phase := h.blackjack.Phase()
	player := h.blackjack.PlayerHand()
	dealer := h.blackjack.DealerHand()

	state := gin.H{
		"phase":        phase,
		"enabled":      h.oracle.Enabled(models.GameTypeBlackjack),
		"player":       player,
		"player_value": games.HandValue(player),
	}

	// The dealer's hole card stays hidden until the player's turn is over.
	if phase == games.PhaseActive && len(dealer) > 1 {
		state["dealer"] = dealer[:1]
	} else {
		state["dealer"] = dealer
		state["dealer_value"] = games.HandValue(dealer)
	}

	if res := h.blackjack.LastResult(); res != nil && phase == games.PhaseSettled {
		state["result"] = res
	}

	c.JSON(http.StatusOK, gin.H{"game": state})
}

type crashStartRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	AutoCashOut bool    `json:"auto_cash_out"`
	CashOutAt   float64 `json:"cash_out_at"`
}

func (h *GameHandler) StartCrash(c *gin.Context) {
	var req crashStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	opts := games.CrashOptions{
		AutoCashOut: req.AutoCashOut,
		CashOutAt:   req.CashOutAt,
	}
	if err := h.crash.Start(c.Request.Context(), req.Amount, opts); err != nil {
		gameError(c, err)
		return
	}
	h.crashState(c)
}

func (h *GameHandler) CashoutCrash(c *gin.Context) {
	payout, err := h.crash.Cashout()
	if err != nil {
		gameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payout":     payout,
		"multiplier": h.crash.Multiplier(),
	})
}

func (h *GameHandler) CrashState(c *gin.Context) {
	h.crashState(c)
}

func (h *GameHandler) crashState(c *gin.Context) {
	phase := h.crash.Phase()
	state := gin.H{
		"phase":      phase,
		"enabled":    h.oracle.Enabled(models.GameTypeCrash),
		"multiplier": h.crash.Multiplier(),
	}
	if res := h.crash.LastResult(); res != nil && phase == games.PhaseSettled {
		state["result"] = res
	}
	c.JSON(http.StatusOK, gin.H{"game": state})
}

func (h *GameHandler) GetHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"bets":  h.log.Recent(limit),
		"total": h.log.Len(),
	})
}

func (h *GameHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stats": h.log.Stats()})
}

func (h *GameHandler) ClearHistory(c *gin.Context) {
	if err := h.log.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "History cleared"})
}

func (h *GameHandler) GetBlackjackSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"settings": h.settings.Blackjack()})
}

func (h *GameHandler) SaveBlackjackSettings(c *gin.Context) {
	var s settings.BlackjackSettings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if err := h.settings.SaveBlackjack(s); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": s})
}

func (h *GameHandler) GetCrashSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"settings": h.settings.Crash()})
}

func (h *GameHandler) SaveCrashSettings(c *gin.Context) {
	var s settings.CrashSettings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if err := h.settings.SaveCrash(s); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": s})
}

func (h *GameHandler) GetLimits(c *gin.Context) {
	game := models.GameType(c.Param("game"))
	if !game.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown game"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"limits": h.oracle.Config(game)})
}

func (h *GameHandler) SetLimits(c *gin.Context) {
	game := models.GameType(c.Param("game"))
	if !game.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown game"})
		return
	}

	var cfg limits.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if cfg.Enabled && (cfg.MinBet <= 0 || cfg.MaxBet < cfg.MinBet) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bet limits"})
		return
	}

	if err := h.oracle.SetConfig(game, cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save limits"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"limits": cfg})
}
