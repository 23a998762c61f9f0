// Package limits is the admin-configured validation oracle the games and the
// auto-play scheduler consult before every round.
package limits

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"charliesodds/internal/models"
	"charliesodds/internal/store"
)

// Config is the per-game admin configuration.
type Config struct {
	Enabled bool    `json:"enabled"`
	MinBet  float64 `json:"min_bet"`
	MaxBet  float64 `json:"max_bet"`
}

var defaultConfig = Config{Enabled: true, MinBet: 0.01, MaxBet: 1000}

type Status int

const (
	StatusOK Status = iota
	StatusRejected
	StatusDisabled
)

// Result reports a stake validation. Rejections carry a user-visible reason.
type Result struct {
	Status Status
	Reason string
}

func (r Result) OK() bool { return r.Status == StatusOK }

type Oracle struct {
	mu     sync.Mutex
	store  store.Store
	cache  map[models.GameType]Config
	logger *logrus.Entry
}

func NewOracle(st store.Store, logger *logrus.Logger) *Oracle {
	return &Oracle{
		store:  st,
		cache:  make(map[models.GameType]Config),
		logger: logger.WithField("component", "limits"),
	}
}

// Validate checks a stake against the game's configured bounds.
func (o *Oracle) Validate(game models.GameType, stake float64) Result {
	cfg := o.configFor(game)

	if !cfg.Enabled {
		return Result{Status: StatusDisabled, Reason: fmt.Sprintf("%s is currently disabled", game)}
	}
	if stake < cfg.MinBet {
		return Result{Status: StatusRejected, Reason: fmt.Sprintf("minimum bet is %.2f", cfg.MinBet)}
	}
	if stake > cfg.MaxBet {
		return Result{Status: StatusRejected, Reason: fmt.Sprintf("maximum bet is %.2f", cfg.MaxBet)}
	}
	return Result{Status: StatusOK}
}

// Enabled reports whether the game view should be reachable at all.
func (o *Oracle) Enabled(game models.GameType) bool {
	return o.configFor(game).Enabled
}

// Config returns a game's current configuration.
func (o *Oracle) Config(game models.GameType) Config {
	return o.configFor(game)
}

// SetConfig stores a game's admin configuration.
func (o *Oracle) SetConfig(game models.GameType, cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := o.store.Set(fmt.Sprintf(store.KeyGameLimits, game), data); err != nil {
		return fmt.Errorf("failed to persist limits for %s: %w", game, err)
	}

	o.mu.Lock()
	o.cache[game] = cfg
	o.mu.Unlock()
	return nil
}

func (o *Oracle) configFor(game models.GameType) Config {
	o.mu.Lock()
	if cfg, ok := o.cache[game]; ok {
		o.mu.Unlock()
		return cfg
	}
	o.mu.Unlock()

	cfg := defaultConfig
	data, err := o.store.Get(fmt.Sprintf(store.KeyGameLimits, game))
	if err == nil {
		if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
			o.logger.WithError(jsonErr).WithField("game", game).Warn("corrupt limits config, using defaults")
			cfg = defaultConfig
		}
	}

	o.mu.Lock()
	o.cache[game] = cfg
	o.mu.Unlock()
	return cfg
}
