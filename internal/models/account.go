package models

import (
	"fmt"
	"time"
)

// Currency selects how balances are displayed. It never changes the stored
// balance magnitude; conversion happens at format time only.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyEUR Currency = "EUR"
	CurrencyBTC Currency = "BTC"
	CurrencyETH Currency = "ETH"
	CurrencyLTC Currency = "LTC"
)

type currencyFormat struct {
	symbol    string
	divisor   float64
	precision int
}

var currencyFormats = map[Currency]currencyFormat{
	CurrencyUSD: {"$", 1, 2},
	CurrencyGBP: {"£", 1, 2},
	CurrencyEUR: {"€", 1, 2},
	CurrencyBTC: {"₿", 100000, 8},
	CurrencyETH: {"Ξ", 4000, 6},
	CurrencyLTC: {"Ł", 100, 4},
}

// Valid reports whether c is a known display currency.
func (c Currency) Valid() bool {
	_, ok := currencyFormats[c]
	return ok
}

// Format renders amount in c, applying the fixed per-currency divisor and
// precision. Unknown currencies fall back to USD formatting.
func (c Currency) Format(amount float64) string {
	f, ok := currencyFormats[c]
	if !ok {
		f = currencyFormats[CurrencyUSD]
	}
	return fmt.Sprintf("%s%.*f", f.symbol, f.precision, amount/f.divisor)
}

// AccountStats aggregates settled wagers for one account.
type AccountStats struct {
	TotalBets   int     `json:"total_bets"`
	TotalWins   int     `json:"total_wins"`
	TotalLosses int     `json:"total_losses"`
	BiggestWin  float64 `json:"biggest_win"`
	BiggestLoss float64 `json:"biggest_loss"`
}

// Account is one player's persistent state. Balance, stats, level and
// experience are mutated only through the ledger.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`

	Balance    float64 `json:"balance"`
	Level      int     `json:"level"`
	Experience float64 `json:"experience"`

	// LastBonusDate is a calendar-day marker ("2006-01-02"), empty until the
	// first claim.
	LastBonusDate string `json:"last_bonus_date,omitempty"`

	Stats    AccountStats `json:"stats"`
	Currency Currency     `json:"currency"`

	CreatedAt time.Time `json:"created_at"`
}
