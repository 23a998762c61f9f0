// Package ledger owns every balance mutation for the active account. A
// settlement applies balance, stats and experience as one unit, so no caller
// ever observes a bet counted without its balance change.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"charliesodds/internal/models"
)

// ErrNoActiveAccount marks ledger operations invoked while nobody is logged
// in. Callers treat it as a neutral no-op, never as a fatal condition.
var ErrNoActiveAccount = errors.New("ledger: no active account")

// ErrInvalidStake is returned when a settlement is attempted with a
// non-positive bet amount.
var ErrInvalidStake = errors.New("ledger: bet amount must be positive")

const (
	xpPerLevelUnit   = 100
	xpStakeDivisor   = 10
	baseDailyBonus   = 25.0
	bonusPerLevel    = 5.0
	dailyBonusLayout = "2006-01-02"
)

var levelTitles = []string{
	"Novice Gambler", "Casual Player", "Regular Bettor", "Experienced Player", "Skilled Gambler",
	"Expert Player", "Master Bettor", "High Roller", "VIP Player", "Elite Gambler",
	"Legendary Player", "Casino Royalty", "Gambling Guru", "Fortune Master", "Luck Legend",
}

// Saver persists the bound account after each mutation. The session manager
// implements it against the roster.
type Saver interface {
	SaveAccount(account *models.Account) error
}

// Settlement reports what one settled wager did to the account.
type Settlement struct {
	Profit       float64
	Balance      float64
	Won          bool
	LevelsGained int
}

// Reward is the level-indexed progression payout.
type Reward struct {
	DailyBonus float64
	Title      string
}

type Ledger struct {
	mu      sync.Mutex
	account *models.Account
	saver   Saver
	now     func() time.Time
	logger  *logrus.Entry
}

func New(saver Saver, logger *logrus.Logger) *Ledger {
	return &Ledger{
		saver:  saver,
		now:    time.Now,
		logger: logger.WithField("component", "ledger"),
	}
}

// Bind attaches the ledger to an account; all operations mutate it until
// Unbind. Passing nil detaches.
func (l *Ledger) Bind(account *models.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account = account
}

func (l *Ledger) Unbind() {
	l.Bind(nil)
}

// Account returns the bound account, or nil.
func (l *Ledger) Account() *models.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account
}

// Settle applies a completed wager: balance changes by win-bet, stats count
// the round, and experience is granted at one point per ten wagered.
func (l *Ledger) Settle(bet, win float64) (Settlement, error) {
	return l.settle(bet, win, win-bet)
}

// SettleFunded is the settlement variant for games that debit the stake up
// front (via AdjustBalance) before the outcome is known: only the payout is
// credited here, so the round's net effect is still exactly win-bet.
func (l *Ledger) SettleFunded(bet, win float64) (Settlement, error) {
	return l.settle(bet, win, win)
}

func (l *Ledger) settle(bet, win, balanceDelta float64) (Settlement, error) {
	if bet <= 0 {
		return Settlement{}, ErrInvalidStake
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account == nil {
		return Settlement{}, ErrNoActiveAccount
	}

	profit := win - bet
	isWin := win > bet

	l.account.Balance += balanceDelta
	l.account.Stats.TotalBets++
	if isWin {
		l.account.Stats.TotalWins++
	} else {
		l.account.Stats.TotalLosses++
	}
	l.account.Stats.BiggestWin = math.Max(l.account.Stats.BiggestWin, profit)
	l.account.Stats.BiggestLoss = math.Min(l.account.Stats.BiggestLoss, profit)

	levels := l.grantExperienceLocked(math.Floor(bet / xpStakeDivisor))
	l.saveLocked()

	l.logger.WithFields(logrus.Fields{
		"bet":     bet,
		"win":     win,
		"profit":  profit,
		"balance": l.account.Balance,
	}).Info("wager settled")

	return Settlement{
		Profit:       profit,
		Balance:      l.account.Balance,
		Won:          isWin,
		LevelsGained: levels,
	}, nil
}

// AdjustBalance applies a direct balance change not tied to a wager (daily
// bonus payouts, up-front stake deductions).
func (l *Ledger) AdjustBalance(delta float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account == nil {
		return 0, ErrNoActiveAccount
	}

	l.account.Balance += delta
	l.saveLocked()
	return l.account.Balance, nil
}

// GrantExperience adds XP, applying as many level-ups as the grant covers.
// It returns the number of levels gained.
func (l *Ledger) GrantExperience(amount float64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account == nil {
		return 0, ErrNoActiveAccount
	}

	levels := l.grantExperienceLocked(amount)
	l.saveLocked()
	return levels, nil
}

func (l *Ledger) grantExperienceLocked(amount float64) int {
	l.account.Experience += amount

	levels := 0
	for l.account.Experience >= l.requirementLocked() {
		l.account.Experience -= l.requirementLocked()
		l.account.Level++
		levels++
	}
	if levels > 0 {
		l.logger.WithFields(logrus.Fields{
			"level": l.account.Level,
			"title": LevelReward(l.account.Level).Title,
		}).Info("level up")
	}
	return levels
}

// ClaimDailyBonus pays the level-scaled bonus once per calendar day. A repeat
// claim on the same day returns 0 without mutating anything.
func (l *Ledger) ClaimDailyBonus() (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account == nil {
		return 0, ErrNoActiveAccount
	}

	today := l.now().Format(dailyBonusLayout)
	if l.account.LastBonusDate == today {
		return 0, nil
	}

	amount := LevelReward(l.account.Level).DailyBonus
	l.account.Balance += amount
	l.account.LastBonusDate = today
	l.saveLocked()

	l.logger.WithFields(logrus.Fields{
		"amount": amount,
		"level":  l.account.Level,
	}).Info("daily bonus claimed")

	return amount, nil
}

// SetCurrency changes how amounts display; the stored balance is untouched.
func (l *Ledger) SetCurrency(c models.Currency) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account == nil {
		return ErrNoActiveAccount
	}
	if !c.Valid() {
		return errors.New("ledger: unknown currency")
	}

	l.account.Currency = c
	l.saveLocked()
	return nil
}

// FormatAmount renders a value in the active account's display currency,
// defaulting to USD when nobody is logged in.
func (l *Ledger) FormatAmount(v float64) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account == nil {
		return models.CurrencyUSD.Format(v)
	}
	return l.account.Currency.Format(v)
}

// NextLevelRequirement is the XP needed to clear the current level.
func (l *Ledger) NextLevelRequirement() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account == nil {
		return xpPerLevelUnit
	}
	return l.requirementLocked()
}

func (l *Ledger) requirementLocked() float64 {
	return float64(l.account.Level * xpPerLevelUnit)
}

// LevelReward returns the daily bonus and title for a level. Levels past the
// title ladder keep scaling the bonus.
func LevelReward(level int) Reward {
	if level < 1 {
		level = 1
	}
	title := ""
	if level <= len(levelTitles) {
		title = levelTitles[level-1]
	} else {
		title = fmt.Sprintf("Level %d Player", level)
	}
	return Reward{
		DailyBonus: baseDailyBonus + float64(level-1)*bonusPerLevel,
		Title:      title,
	}
}

func (l *Ledger) saveLocked() {
	if l.saver == nil {
		return
	}
	if err := l.saver.SaveAccount(l.account); err != nil {
		l.logger.WithError(err).Warn("failed to persist account")
	}
}

// SetNow overrides the clock used for calendar-day checks. Tests only.
func (l *Ledger) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
