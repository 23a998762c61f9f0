// Package settings persists per-game player preferences. Each game has its
// own explicit schema; unknown fields in stored blobs are ignored and missing
// fields take defaults, so stale data never leaks untyped values upward.
package settings

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"charliesodds/internal/models"
	"charliesodds/internal/store"
)

// BlackjackSettings is the saved configuration for the blackjack view.
type BlackjackSettings struct {
	BetAmount   float64 `json:"bet_amount"`
	MaxAutoBets int     `json:"max_auto_bets"`
	InfiniteBet bool    `json:"infinite_bet"`
	TurboBet    bool    `json:"turbo_bet"`
	BetSpeedMs  int     `json:"bet_speed_ms"`
}

// CrashSettings extends the shared fields with the auto-exit threshold.
type CrashSettings struct {
	BetAmount   float64 `json:"bet_amount"`
	MaxAutoBets int     `json:"max_auto_bets"`
	InfiniteBet bool    `json:"infinite_bet"`
	TurboBet    bool    `json:"turbo_bet"`
	BetSpeedMs  int     `json:"bet_speed_ms"`
	CashOutAt   float64 `json:"cash_out_at"`
	AutoCashOut bool    `json:"auto_cash_out"`
}

func DefaultBlackjack() BlackjackSettings {
	return BlackjackSettings{BetAmount: 10, MaxAutoBets: 100, BetSpeedMs: 1000}
}

func DefaultCrash() CrashSettings {
	return CrashSettings{BetAmount: 10, MaxAutoBets: 100, BetSpeedMs: 1000, CashOutAt: 2}
}

type Service struct {
	mu     sync.Mutex
	store  store.Store
	logger *logrus.Entry
}

func NewService(st store.Store, logger *logrus.Logger) *Service {
	return &Service{store: st, logger: logger.WithField("component", "settings")}
}

// Blackjack loads saved blackjack settings, defaulting anything missing.
func (s *Service) Blackjack() BlackjackSettings {
	out := DefaultBlackjack()
	if !s.load(models.GameTypeBlackjack, &out) {
		return DefaultBlackjack()
	}
	return out
}

// Crash loads saved crash settings, defaulting anything missing.
func (s *Service) Crash() CrashSettings {
	out := DefaultCrash()
	if !s.load(models.GameTypeCrash, &out) {
		return DefaultCrash()
	}
	return out
}

func (s *Service) SaveBlackjack(cfg BlackjackSettings) error {
	return s.save(models.GameTypeBlackjack, cfg)
}

func (s *Service) SaveCrash(cfg CrashSettings) error {
	return s.save(models.GameTypeCrash, cfg)
}

// load fills into from the stored blob. It reports false when the blob was
// corrupt, in which case into may be partially written and the caller should
// fall back to defaults.
func (s *Service) load(game models.GameType, into any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Get(fmt.Sprintf(store.KeyGameSettings, game))
	if err != nil {
		return true
	}
	if err := json.Unmarshal(data, into); err != nil {
		s.logger.WithError(err).WithField("game", game).Warn("corrupt saved settings, using defaults")
		return false
	}
	return true
}

func (s *Service) save(game models.GameType, cfg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := s.store.Set(fmt.Sprintf(store.KeyGameSettings, game), data); err != nil {
		return fmt.Errorf("failed to persist %s settings: %w", game, err)
	}
	return nil
}
