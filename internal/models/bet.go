package models

import "time"

type GameType string

const (
	GameTypeBlackjack GameType = "blackjack"
	GameTypeCrash     GameType = "crash"
)

func (g GameType) Valid() bool {
	return g == GameTypeBlackjack || g == GameTypeCrash
}

// BetRecord is an immutable record of one settled wager. Result holds the
// opaque per-game payload; it round-trips through JSON untouched.
type BetRecord struct {
	ID         string    `json:"id"`
	Game       GameType  `json:"game"`
	BetAmount  float64   `json:"bet_amount"`
	WinAmount  float64   `json:"win_amount"`
	Multiplier float64   `json:"multiplier"`
	Timestamp  time.Time `json:"timestamp"`
	Result     any       `json:"result,omitempty"`
}

// LogStats is derived from the retained bet records, never stored.
type LogStats struct {
	TotalBets    int     `json:"total_bets"`
	TotalWins    int     `json:"total_wins"`
	TotalLosses  int     `json:"total_losses"`
	TotalWagered float64 `json:"total_wagered"`
	TotalWon     float64 `json:"total_won"`
	BiggestWin   float64 `json:"biggest_win"`
	BiggestLoss  float64 `json:"biggest_loss"`
	WinRate      float64 `json:"win_rate"`
}
