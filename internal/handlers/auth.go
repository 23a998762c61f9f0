package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"charliesodds/internal/ledger"
	"charliesodds/internal/models"
	"charliesodds/internal/session"
)

type AuthHandler struct {
	sessions *session.Manager
	ledger   *ledger.Ledger
	tokens   *session.TokenService
}

func NewAuthHandler(sessions *session.Manager, lgr *ledger.Ledger, tokens *session.TokenService) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		ledger:   lgr,
		tokens:   tokens,
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	account, err := h.sessions.Register(req.Username, req.Email, req.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrUsernameTaken) || errors.Is(err, session.ErrEmailTaken) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.issue(c, account)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	account, err := h.sessions.Login(req.Identifier, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.issue(c, account)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.ledger.Unbind()
	if err := h.sessions.Logout(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// issue binds the ledger to the account and returns the token plus the
// account view.
func (h *AuthHandler) issue(c *gin.Context, account *models.Account) {
	h.ledger.Bind(account)

	token, err := h.tokens.Generate(account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"account": accountView(account, h.ledger),
	})
}
