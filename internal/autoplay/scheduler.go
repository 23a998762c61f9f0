// Package autoplay drives a game engine through repeated unattended rounds.
// One scheduler exists per game view; every round is re-validated against the
// bet-limit oracle, and stopping always restores the stake captured at start.
package autoplay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/sirupsen/logrus"

	"charliesodds/internal/games"
	"charliesodds/internal/ledger"
	"charliesodds/internal/limits"
	"charliesodds/internal/models"
)

var (
	ErrAlreadyRunning    = errors.New("autoplay: already running")
	ErrInsufficientFunds = errors.New("autoplay: balance below base stake")
)

// Engine is the slice of a game the scheduler drives. Both engines in
// internal/games implement it.
type Engine interface {
	Game() models.GameType
	Ready() bool
	PlayRound(ctx context.Context, stake float64) error
}

// Config is one run's parameters. Unbounded runs ignore MaxRounds.
type Config struct {
	Stake     float64
	MaxRounds int
	Unbounded bool
	Delay     time.Duration
}

// Status is a snapshot for the presentation layer.
type Status struct {
	Running    bool    `json:"running"`
	Remaining  int     `json:"remaining"`
	Unbounded  bool    `json:"unbounded"`
	Stake      float64 `json:"stake"`
	LastReason string  `json:"last_reason,omitempty"`
}

type Scheduler struct {
	mu sync.Mutex

	engine Engine
	oracle *limits.Oracle
	ledger *ledger.Ledger
	clock  quartz.Clock
	logger *logrus.Entry

	running    bool
	baseStake  float64
	stake      float64
	remaining  int
	unbounded  bool
	delay      time.Duration
	lastReason string
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewScheduler(engine Engine, oracle *limits.Oracle, lgr *ledger.Ledger, clock quartz.Clock, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		engine: engine,
		oracle: oracle,
		ledger: lgr,
		clock:  clock,
		logger: logger.WithFields(logrus.Fields{"component": "autoplay", "game": engine.Game()}),
	}
}

// Start begins a run. It captures the stake as the base stake to restore on
// stop, and rejects outright when the balance cannot cover it.
func (s *Scheduler) Start(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	account := s.ledger.Account()
	if account == nil {
		return ledger.ErrNoActiveAccount
	}
	if account.Balance < cfg.Stake {
		return ErrInsufficientFunds
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.running = true
	s.baseStake = cfg.Stake
	s.stake = cfg.Stake
	s.remaining = cfg.MaxRounds
	s.unbounded = cfg.Unbounded
	s.delay = cfg.Delay
	s.lastReason = ""
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.WithFields(logrus.Fields{
		"stake":     cfg.Stake,
		"rounds":    cfg.MaxRounds,
		"unbounded": cfg.Unbounded,
	}).Info("autoplay started")

	go s.loop(ctx)
	return nil
}

// Stop cancels the run and blocks until the loop has wound down; a round in
// flight completes its settlement first. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether a run is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status snapshots the run for display.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:    s.running,
		Remaining:  s.remaining,
		Unbounded:  s.unbounded,
		Stake:      s.stake,
		LastReason: s.lastReason,
	}
}

// SetStake adjusts the stake used for subsequent rounds. The base stake
// captured at Start is unaffected and still restored on stop.
func (s *Scheduler) SetStake(stake float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stake = stake
}

// Stake is the stake the next round will use.
func (s *Scheduler) Stake() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stake
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.windDown()

	for {
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		stake := s.stake
		s.mu.Unlock()

		// Re-validate before every round; a rejection stops the run and
		// surfaces the reason.
		if res := s.oracle.Validate(s.engine.Game(), stake); !res.OK() {
			s.setReason(res.Reason)
			s.logger.WithField("reason", res.Reason).Info("autoplay stopped by validation")
			return
		}

		if !s.engine.Ready() {
			// A manual round is still in flight; try again next tick.
			if !s.sleep(ctx) {
				return
			}
			continue
		}

		if err := s.engine.PlayRound(ctx, stake); err != nil {
			var verr *games.ValidationError
			if errors.As(err, &verr) {
				s.setReason(verr.Reason)
			} else {
				s.setReason(err.Error())
			}
			s.logger.WithError(err).Info("autoplay stopped by round error")
			return
		}

		s.mu.Lock()
		bounded := !s.unbounded
		if bounded {
			s.remaining--
		}
		finished := bounded && s.remaining <= 0
		s.mu.Unlock()

		if finished {
			s.logger.Info("autoplay finished run")
			return
		}

		if !s.sleep(ctx) {
			return
		}
	}
}

// sleep waits the inter-round delay; it reports false when the run was
// cancelled, guaranteeing a scheduled-but-unfired round never starts.
func (s *Scheduler) sleep(ctx context.Context) bool {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()

	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := s.clock.NewTimer(delay, "autoplay-delay")
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scheduler) setReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReason = reason
}

func (s *Scheduler) windDown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.stake = s.baseStake
	s.cancel()
	close(s.done)
	s.logger.WithField("stake", s.stake).Debug("autoplay idle, base stake restored")
}
