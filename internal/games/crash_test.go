package games

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charliesodds/internal/ledger"
	"charliesodds/internal/limits"
	"charliesodds/internal/models"
)

// drawFor returns a secure-draw stub that produces the given crash point
// through the max(1.01, e^(3u)) transform.
func drawFor(crashPoint float64) func() float64 {
	return func() float64 { return math.Log(crashPoint) / crashExponent }
}

func newCrash(t *testing.T, fx fixture, clock quartz.Clock) *Crash {
	t.Helper()
	return NewCrash(clock, fx.ledger, fx.log, fx.oracle, nil, testLogger())
}

func advanceUntilSettled(t *testing.T, mock *quartz.Mock, c *Crash, maxTicks int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < maxTicks; i++ {
		if c.Phase() == PhaseSettled {
			return
		}
		mock.Advance(crashTickInterval).MustWait(ctx)
	}
	require.Equal(t, PhaseSettled, c.Phase(), "round did not settle within %d ticks", maxTicks)
}

func TestCrashPointTransform(t *testing.T) {
	// u=0 maps below the floor and clamps.
	assert.Equal(t, crashMinPoint, math.Max(crashMinPoint, math.Exp(crashExponent*0)))
	// u near 1 approaches e^3.
	assert.InDelta(t, 20.08, math.Exp(crashExponent*0.9986), 0.1)
}

func TestStartDebitsStakeUpFront(t *testing.T) {
	fx := newFixture(t, 100)
	mock := quartz.NewMock(t)
	c := newCrash(t, fx, mock)
	c.SetDraw(drawFor(2.0))

	require.NoError(t, c.Start(context.Background(), 10, CrashOptions{}))

	assert.Equal(t, PhaseRunning, c.Phase())
	assert.Equal(t, 90.0, fx.ledger.Account().Balance, "stake deducted before the outcome is known")
}

func TestManualCashoutWinsAtDisplayedValue(t *testing.T) {
	fx := newFixture(t, 100)
	mock := quartz.NewMock(t)
	c := newCrash(t, fx, mock)
	c.SetDraw(drawFor(2.0)) // 2s round

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Start(context.Background(), 10, CrashOptions{}))

	// 20 ticks of 50ms = 1s = half the climb: multiplier 1.5.
	for i := 0; i < 20; i++ {
		mock.Advance(crashTickInterval).MustWait(ctx)
	}
	require.InDelta(t, 1.5, c.Multiplier(), 0.001)

	payout, err := c.Cashout()
	require.NoError(t, err)
	assert.InDelta(t, 15.0, payout, 0.001)

	assert.Equal(t, PhaseSettled, c.Phase())
	res := c.LastResult()
	require.NotNil(t, res)
	assert.True(t, res.Won)
	assert.InDelta(t, 1.5, res.CashedOutAt, 0.001)

	// Net effect: -10 stake, +15 payout.
	assert.InDelta(t, 105.0, fx.ledger.Account().Balance, 0.001)
}

func TestReachingCapLosesStake(t *testing.T) {
	fx := newFixture(t, 100)
	mock := quartz.NewMock(t)
	c := newCrash(t, fx, mock)
	c.SetDraw(drawFor(1.5)) // 1.5s round

	require.NoError(t, c.Start(context.Background(), 10, CrashOptions{}))
	advanceUntilSettled(t, mock, c, 40)

	res := c.LastResult()
	require.NotNil(t, res)
	assert.False(t, res.Won)
	assert.Equal(t, 1.5, res.CrashPoint)
	assert.Equal(t, 90.0, fx.ledger.Account().Balance)

	rec := fx.log.Recent(1)[0]
	assert.Equal(t, 0.0, rec.WinAmount)
	assert.Equal(t, 0.0, rec.Multiplier)
}

func TestAutoCashOutSettlesAtThreshold(t *testing.T) {
	fx := newFixture(t, 100)
	mock := quartz.NewMock(t)
	c := newCrash(t, fx, mock)
	c.SetDraw(drawFor(2.0))

	require.NoError(t, c.Start(context.Background(), 10, CrashOptions{AutoCashOut: true, CashOutAt: 1.25}))
	advanceUntilSettled(t, mock, c, 15)

	res := c.LastResult()
	require.NotNil(t, res)
	assert.True(t, res.Won)
	assert.Equal(t, 1.25, res.CashedOutAt, "auto-exit settles at the threshold, not past it")
	assert.InDelta(t, 102.5, fx.ledger.Account().Balance, 0.001)
}

func TestAutoCashOutBelowCapHonoredOnOvershootTick(t *testing.T) {
	fx := newFixture(t, 100)
	mock := quartz.NewMock(t)
	c := newCrash(t, fx, mock)
	c.SetDraw(drawFor(2.0))

	// Turbo compresses the whole climb below one tick interval, so the first
	// tick lands past the end of the round. The configured exit sits below
	// the crash point and must still win.
	opts := CrashOptions{AutoCashOut: true, CashOutAt: 1.5, Turbo: true, TurboDuration: 10 * time.Millisecond}
	require.NoError(t, c.Start(context.Background(), 10, opts))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mock.Advance(crashTickInterval).MustWait(ctx)

	require.Equal(t, PhaseSettled, c.Phase())
	res := c.LastResult()
	require.NotNil(t, res)
	assert.True(t, res.Won)
	assert.Equal(t, 1.5, res.CashedOutAt)
	assert.InDelta(t, 105.0, fx.ledger.Account().Balance, 0.001)
}

func TestCashoutAfterSettleRejected(t *testing.T) {
	fx := newFixture(t, 100)
	mock := quartz.NewMock(t)
	c := newCrash(t, fx, mock)
	c.SetDraw(drawFor(1.2))

	require.NoError(t, c.Start(context.Background(), 10, CrashOptions{}))
	advanceUntilSettled(t, mock, c, 40)

	_, err := c.Cashout()
	assert.ErrorIs(t, err, ErrNoRoundActive)
}

func TestStartWhileRunningRejected(t *testing.T) {
	fx := newFixture(t, 100)
	mock := quartz.NewMock(t)
	c := newCrash(t, fx, mock)
	c.SetDraw(drawFor(3.0))

	require.NoError(t, c.Start(context.Background(), 10, CrashOptions{}))
	assert.ErrorIs(t, c.Start(context.Background(), 10, CrashOptions{}), ErrRoundInFlight)

	c.Abort()
}

func TestAbortStillSettles(t *testing.T) {
	fx := newFixture(t, 100)
	mock := quartz.NewMock(t)
	c := newCrash(t, fx, mock)
	c.SetDraw(drawFor(5.0))

	require.NoError(t, c.Start(context.Background(), 10, CrashOptions{}))
	c.Abort()

	require.Eventually(t, func() bool { return c.Phase() == PhaseSettled },
		time.Second, time.Millisecond, "aborted round must still settle")

	res := c.LastResult()
	require.NotNil(t, res)
	assert.False(t, res.Won)
	assert.Equal(t, 90.0, fx.ledger.Account().Balance, "deduction stands and the loss is recorded")
	assert.Equal(t, 1, fx.log.Len())
}

func TestCrashRejectedByOracle(t *testing.T) {
	fx := newFixture(t, 100)
	require.NoError(t, fx.oracle.SetConfig(models.GameTypeCrash, limits.Config{Enabled: false}))
	mock := quartz.NewMock(t)
	c := newCrash(t, fx, mock)

	err := c.Start(context.Background(), 10, CrashOptions{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 100.0, fx.ledger.Account().Balance)
}

func TestCrashWithoutAccount(t *testing.T) {
	fx := newFixture(t, 100)
	fx.ledger.Unbind()
	c := newCrash(t, fx, quartz.NewMock(t))

	assert.ErrorIs(t, c.Start(context.Background(), 10, CrashOptions{}), ledger.ErrNoActiveAccount)
}

func TestTurboPlayRoundCompletes(t *testing.T) {
	fx := newFixture(t, 1000)
	c := newCrash(t, fx, quartz.NewReal())
	c.SetDraw(drawFor(2.0))
	c.SetOptions(CrashOptions{AutoCashOut: true, CashOutAt: 1.5, TurboDuration: 10 * time.Millisecond})

	require.NoError(t, c.PlayRound(context.Background(), 10))

	assert.Equal(t, PhaseSettled, c.Phase())
	res := c.LastResult()
	require.NotNil(t, res)
	assert.True(t, res.Won)
	assert.Equal(t, 1, fx.ledger.Account().Stats.TotalBets)
}
