package games

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/sirupsen/logrus"

	"charliesodds/internal/betlog"
	"charliesodds/internal/ledger"
	"charliesodds/internal/limits"
	"charliesodds/internal/models"
	"charliesodds/internal/rng"
)

const (
	crashTickInterval = 50 * time.Millisecond
	crashMaxDuration  = 10 * time.Second
	crashMinPoint     = 1.01
	crashExponent     = 3.0
)

// CrashResult is the opaque payload recorded with each settled round.
type CrashResult struct {
	CrashPoint  float64 `json:"crash_point"`
	CashedOutAt float64 `json:"cashed_out_at,omitempty"`
	Won         bool    `json:"won"`
}

// CrashOptions configures one round.
type CrashOptions struct {
	// AutoCashOut exits automatically when the multiplier reaches CashOutAt.
	AutoCashOut bool
	CashOutAt   float64
	// Turbo compresses the round to TurboDuration regardless of the crash
	// point, for unattended fast play.
	Turbo         bool
	TurboDuration time.Duration
}

var errCrashed = errors.New("crashed")

// Crash is the continuous-growth engine: Betting → Running → Settled. The
// crash point comes from the secure one-shot draw, so a player watching the
// multiplier rise cannot predict it from earlier replayable draws. The stake
// is debited when the round starts and the payout credited at settlement.
type Crash struct {
	mu         sync.Mutex
	phase      Phase
	stake      float64
	crashPoint float64
	multiplier float64
	startedAt  time.Time
	duration   time.Duration
	opts       CrashOptions
	settled    bool
	cancel     context.CancelFunc
	done       chan struct{}
	lastResult *CrashResult

	clock     quartz.Clock
	draw      func() float64
	ledger    *ledger.Ledger
	log       *betlog.Log
	oracle    *limits.Oracle
	broadcast Broadcaster
	logger    *logrus.Entry
}

func NewCrash(clock quartz.Clock, lgr *ledger.Ledger, log *betlog.Log, oracle *limits.Oracle, broadcast Broadcaster, logger *logrus.Logger) *Crash {
	if broadcast == nil {
		broadcast = NopBroadcaster{}
	}
	return &Crash{
		phase:      PhaseBetting,
		multiplier: 1,
		clock:      clock,
		draw:       rng.SecureDraw,
		ledger:     lgr,
		log:        log,
		oracle:     oracle,
		broadcast:  broadcast,
		logger:     logger.WithField("game", models.GameTypeCrash),
	}
}

// Start begins a round: draws the crash point, debits the stake, and launches
// the growth loop. The loop owns settlement, so the round reaches Settled
// even if the caller goes away.
func (c *Crash) Start(ctx context.Context, stake float64, opts CrashOptions) error {
	c.mu.Lock()

	if c.phase == PhaseRunning {
		c.mu.Unlock()
		return ErrRoundInFlight
	}
	if c.ledger.Account() == nil {
		c.mu.Unlock()
		return ledger.ErrNoActiveAccount
	}
	if res := c.oracle.Validate(models.GameTypeCrash, stake); !res.OK() {
		c.mu.Unlock()
		return &ValidationError{Reason: res.Reason}
	}

	crashPoint := math.Max(crashMinPoint, math.Exp(crashExponent*c.draw()))

	balance, err := c.ledger.AdjustBalance(-stake)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.broadcast.BalanceUpdate(balance)

	c.stake = stake
	c.crashPoint = crashPoint
	c.multiplier = 1
	c.settled = false
	c.lastResult = nil
	c.opts = opts
	c.startedAt = c.clock.Now()
	c.duration = c.roundDuration(crashPoint, opts)
	c.done = make(chan struct{})

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	c.phase = PhaseRunning
	c.broadcast.GamePhase(models.GameTypeCrash, PhaseRunning)

	c.logger.WithFields(logrus.Fields{
		"stake":       stake,
		"crash_point": crashPoint,
		"duration":    c.duration,
	}).Debug("round started")

	// The ticker registers before Start returns, so a caller holding a mock
	// clock can advance it immediately.
	waiter := c.clock.TickerFunc(loopCtx, crashTickInterval, c.tick, "crash-round")
	c.mu.Unlock()

	go c.finish(waiter)
	return nil
}

func (c *Crash) roundDuration(crashPoint float64, opts CrashOptions) time.Duration {
	if opts.Turbo {
		if opts.TurboDuration > 0 {
			return opts.TurboDuration
		}
		return crashTickInterval * 5
	}
	d := time.Duration(crashPoint * float64(time.Second))
	if d > crashMaxDuration {
		d = crashMaxDuration
	}
	return d
}

// tick advances the multiplier until cashout, the auto-exit threshold, or
// the crash point. It always leaves the round Settled.
func (c *Crash) tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settled {
		return errCrashed
	}

	progress := float64(c.clock.Since(c.startedAt)) / float64(c.duration)
	if progress >= 1 {
		// A tick can land past the whole climb (turbo rounds shorter than
		// the tick interval). An auto-exit below the crash point was still
		// reached first, so it wins over the crash.
		if c.opts.AutoCashOut && c.opts.CashOutAt > 1 && c.opts.CashOutAt <= c.crashPoint {
			c.settleLocked(true, c.opts.CashOutAt)
			return errCrashed
		}
		c.multiplier = c.crashPoint
		c.settleLocked(false, 0)
		return errCrashed
	}

	c.multiplier = 1 + (c.crashPoint-1)*progress
	c.broadcast.MultiplierTick(c.multiplier)

	if c.opts.AutoCashOut && c.opts.CashOutAt > 1 && c.multiplier >= c.opts.CashOutAt {
		c.settleLocked(true, c.opts.CashOutAt)
		return errCrashed
	}
	return nil
}

// finish blocks on the ticker. External cancellation aborts the climb; the
// deduction already stands, so the round still settles (as a loss) rather
// than dangling.
func (c *Crash) finish(waiter quartz.Waiter) {
	err := waiter.Wait()

	c.mu.Lock()
	if !c.settled && errors.Is(err, context.Canceled) {
		c.settleLocked(false, 0)
	}
	c.mu.Unlock()
}

// Cashout exits the round at the currently displayed multiplier.
func (c *Crash) Cashout() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseRunning || c.settled {
		return 0, ErrNoRoundActive
	}

	payout := c.stake * c.multiplier
	c.settleLocked(true, c.multiplier)
	return payout, nil
}

// settleLocked finishes the round: pays out through the ledger, records the
// bet, and only then flips the phase to Settled.
func (c *Crash) settleLocked(won bool, exitAt float64) {
	c.settled = true

	payout := 0.0
	if won {
		c.multiplier = exitAt
		payout = c.stake * exitAt
	}

	result := &CrashResult{
		CrashPoint:  c.crashPoint,
		CashedOutAt: exitAt,
		Won:         won,
	}

	settlement, err := c.ledger.SettleFunded(c.stake, payout)
	if err != nil {
		c.logger.WithError(err).Warn("settlement skipped")
	} else {
		c.broadcast.BalanceUpdate(settlement.Balance)
	}
	c.log.Record(models.GameTypeCrash, c.stake, payout, result)

	c.lastResult = result
	c.phase = PhaseSettled
	c.broadcast.GamePhase(models.GameTypeCrash, PhaseSettled)

	if c.cancel != nil {
		c.cancel()
	}
	close(c.done)
}

// PlayRound runs one unattended round to completion: turbo growth with the
// configured auto-exit, blocking until Settled.
func (c *Crash) PlayRound(ctx context.Context, stake float64) error {
	c.mu.Lock()
	opts := c.opts
	c.mu.Unlock()
	opts.Turbo = true

	if err := c.Start(ctx, stake, opts); err != nil {
		return err
	}

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	<-done
	return nil
}

// SetOptions fixes the options PlayRound uses for unattended rounds.
func (c *Crash) SetOptions(opts CrashOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// Ready reports whether a new round may start.
func (c *Crash) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseBetting || c.phase == PhaseSettled
}

func (c *Crash) Game() models.GameType { return models.GameTypeCrash }

func (c *Crash) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Multiplier is the currently displayed growth value.
func (c *Crash) Multiplier() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.multiplier
}

func (c *Crash) LastResult() *CrashResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// Abort cancels a running round; the loop settles it as a loss.
func (c *Crash) Abort() {
	c.mu.Lock()
	cancel := c.cancel
	running := c.phase == PhaseRunning && !c.settled
	c.mu.Unlock()

	if running && cancel != nil {
		cancel()
	}
}

// SetDraw overrides the secure draw source. Tests only.
func (c *Crash) SetDraw(draw func() float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draw = draw
}
