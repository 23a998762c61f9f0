package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"charliesodds/internal/ledger"
	"charliesodds/internal/models"
	"charliesodds/internal/rng"
	"charliesodds/internal/store"
)

type UserHandler struct {
	ledger *ledger.Ledger
	stream *rng.Stream
	store  store.Store
}

func NewUserHandler(lgr *ledger.Ledger, stream *rng.Stream, st store.Store) *UserHandler {
	return &UserHandler{
		ledger: lgr,
		stream: stream,
		store:  st,
	}
}

// accountView is the account shape returned to clients; the password never
// leaves the server.
func accountView(account *models.Account, lgr *ledger.Ledger) gin.H {
	return gin.H{
		"id":              account.ID,
		"username":        account.Username,
		"email":           account.Email,
		"is_admin":        account.IsAdmin,
		"balance":         account.Balance,
		"balance_display": lgr.FormatAmount(account.Balance),
		"level":           account.Level,
		"experience":      account.Experience,
		"next_level_xp":   lgr.NextLevelRequirement(),
		"title":           ledger.LevelReward(account.Level).Title,
		"currency":        account.Currency,
		"stats":           account.Stats,
		"last_bonus_date": account.LastBonusDate,
		"created_at":      account.CreatedAt,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	account := h.ledger.Account()
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No active account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": accountView(account, h.ledger)})
}

func (h *UserHandler) ClaimDailyBonus(c *gin.Context) {
	bonus, err := h.ledger.ClaimDailyBonus()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if bonus == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Daily bonus already claimed today"})
		return
	}

	account := h.ledger.Account()
	c.JSON(http.StatusOK, gin.H{
		"bonus":   bonus,
		"balance": account.Balance,
	})
}

type currencyRequest struct {
	Currency models.Currency `json:"currency" binding:"required"`
}

func (h *UserHandler) SetCurrency(c *gin.Context) {
	var req currencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.ledger.SetCurrency(req.Currency); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account := h.ledger.Account()
	c.JSON(http.StatusOK, gin.H{
		"currency":        account.Currency,
		"balance_display": h.ledger.FormatAmount(account.Balance),
	})
}

// GetSeed exposes the replayable stream state so a session can be reproduced.
func (h *UserHandler) GetSeed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"seed":    h.stream.Seed(),
		"counter": h.stream.Counter(),
	})
}

type seedRequest struct {
	Seed string `json:"seed"`
}

// SetSeed rotates the stream seed; an empty seed requests a random one. The
// new seed is persisted so a restart replays the same sequence.
func (h *UserHandler) SetSeed(c *gin.Context) {
	var req seedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	seed := req.Seed
	if seed == "" {
		seed = rng.NewSeed()
	}
	h.stream.Reseed(seed)

	raw, err := json.Marshal(seed)
	if err == nil {
		err = h.store.Set(store.KeySeed, raw)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist seed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"seed": seed, "counter": h.stream.Counter()})
}
