package ledger

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charliesodds/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testAccount(balance float64) *models.Account {
	return &models.Account{
		ID:       "acct-1",
		Username: "demo",
		Balance:  balance,
		Level:    1,
		Currency: models.CurrencyUSD,
	}
}

func newBound(t *testing.T, balance float64) *Ledger {
	t.Helper()
	l := New(nil, testLogger())
	l.Bind(testAccount(balance))
	return l
}

func TestSettleWin(t *testing.T) {
	l := newBound(t, 100)

	res, err := l.Settle(10, 20)
	require.NoError(t, err)

	assert.Equal(t, 10.0, res.Profit)
	assert.Equal(t, 110.0, res.Balance)
	assert.True(t, res.Won)

	acct := l.Account()
	assert.Equal(t, 1, acct.Stats.TotalBets)
	assert.Equal(t, 1, acct.Stats.TotalWins)
	assert.Equal(t, 0, acct.Stats.TotalLosses)
	assert.Equal(t, 10.0, acct.Stats.BiggestWin)
}

func TestSettleLoss(t *testing.T) {
	l := newBound(t, 100)

	res, err := l.Settle(10, 0)
	require.NoError(t, err)

	assert.Equal(t, -10.0, res.Profit)
	assert.Equal(t, 90.0, res.Balance)
	assert.False(t, res.Won)
	assert.Equal(t, -10.0, l.Account().Stats.BiggestLoss)
}

func TestSettlePushLeavesBalance(t *testing.T) {
	l := newBound(t, 100)

	res, err := l.Settle(10, 10)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Profit)
	assert.Equal(t, 100.0, res.Balance)
	assert.False(t, res.Won)
}

func TestSettleGrantsExperience(t *testing.T) {
	l := newBound(t, 1000)

	_, err := l.Settle(55, 0)
	require.NoError(t, err)

	// floor(55/10) = 5 XP
	assert.Equal(t, 5.0, l.Account().Experience)
}

func TestSettleFundedCreditsPayoutOnly(t *testing.T) {
	l := newBound(t, 100)

	// Crash-shaped round: stake debited up front, then settled.
	_, err := l.AdjustBalance(-10)
	require.NoError(t, err)

	res, err := l.SettleFunded(10, 25)
	require.NoError(t, err)

	// Net effect across the round is exactly win-bet.
	assert.Equal(t, 115.0, res.Balance)
	assert.Equal(t, 15.0, res.Profit)
	assert.Equal(t, 1, l.Account().Stats.TotalBets)
}

func TestSettleRejectsInvalidStake(t *testing.T) {
	l := newBound(t, 100)

	_, err := l.Settle(0, 5)
	assert.ErrorIs(t, err, ErrInvalidStake)

	_, err = l.Settle(-3, 5)
	assert.ErrorIs(t, err, ErrInvalidStake)
}

func TestOperationsWithoutAccount(t *testing.T) {
	l := New(nil, testLogger())

	_, err := l.Settle(10, 20)
	assert.ErrorIs(t, err, ErrNoActiveAccount)

	_, err = l.AdjustBalance(5)
	assert.ErrorIs(t, err, ErrNoActiveAccount)

	_, err = l.GrantExperience(50)
	assert.ErrorIs(t, err, ErrNoActiveAccount)

	_, err = l.ClaimDailyBonus()
	assert.ErrorIs(t, err, ErrNoActiveAccount)

	assert.ErrorIs(t, l.SetCurrency(models.CurrencyBTC), ErrNoActiveAccount)
	assert.Equal(t, "$5.00", l.FormatAmount(5))
}

func TestGrantExperienceSingleLevel(t *testing.T) {
	l := newBound(t, 0)

	levels, err := l.GrantExperience(100)
	require.NoError(t, err)

	assert.Equal(t, 1, levels)
	assert.Equal(t, 2, l.Account().Level)
	assert.Equal(t, 0.0, l.Account().Experience)
}

func TestGrantExperienceMultiLevel(t *testing.T) {
	l := newBound(t, 0)

	// Levels 1+2+3 need 100+200+300 XP.
	levels, err := l.GrantExperience(600)
	require.NoError(t, err)

	assert.Equal(t, 3, levels)
	assert.Equal(t, 4, l.Account().Level)
	assert.Equal(t, 0.0, l.Account().Experience)
}

func TestExperienceStaysBelowRequirement(t *testing.T) {
	l := newBound(t, 0)

	_, err := l.GrantExperience(250)
	require.NoError(t, err)

	acct := l.Account()
	assert.Equal(t, 2, acct.Level)
	assert.Equal(t, 50.0, acct.Experience)
	assert.Less(t, acct.Experience, l.NextLevelRequirement())
}

func TestClaimDailyBonusOncePerDay(t *testing.T) {
	l := newBound(t, 0)
	day := time.Date(2026, 8, 29, 10, 0, 0, 0, time.Local)
	l.SetNow(func() time.Time { return day })

	first, err := l.ClaimDailyBonus()
	require.NoError(t, err)
	assert.Equal(t, 25.0, first)

	second, err := l.ClaimDailyBonus()
	require.NoError(t, err)
	assert.Equal(t, 0.0, second)
	assert.Equal(t, 25.0, l.Account().Balance)

	l.SetNow(func() time.Time { return day.AddDate(0, 0, 1) })
	third, err := l.ClaimDailyBonus()
	require.NoError(t, err)
	assert.Equal(t, 25.0, third)
}

func TestDailyBonusScalesWithLevel(t *testing.T) {
	l := newBound(t, 0)
	l.Account().Level = 5

	amount, err := l.ClaimDailyBonus()
	require.NoError(t, err)
	assert.Equal(t, 45.0, amount) // 25 + 4*5
}

func TestLevelReward(t *testing.T) {
	assert.Equal(t, "Novice Gambler", LevelReward(1).Title)
	assert.Equal(t, "Luck Legend", LevelReward(15).Title)
	assert.Equal(t, "Level 20 Player", LevelReward(20).Title)
	assert.Equal(t, 120.0, LevelReward(20).DailyBonus)
}

func TestSetCurrencyKeepsBalance(t *testing.T) {
	l := newBound(t, 250)

	require.NoError(t, l.SetCurrency(models.CurrencyBTC))
	assert.Equal(t, 250.0, l.Account().Balance)
	assert.Equal(t, "₿0.00250000", l.FormatAmount(250))

	assert.Error(t, l.SetCurrency(models.Currency("DOGE")))
}

func TestFormatAmountTable(t *testing.T) {
	cases := []struct {
		currency models.Currency
		amount   float64
		want     string
	}{
		{models.CurrencyUSD, 12.5, "$12.50"},
		{models.CurrencyGBP, 12.5, "£12.50"},
		{models.CurrencyEUR, 12.5, "€12.50"},
		{models.CurrencyBTC, 100000, "₿1.00000000"},
		{models.CurrencyETH, 4000, "Ξ1.000000"},
		{models.CurrencyLTC, 100, "Ł1.0000"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.currency.Format(tc.amount), "currency %s", tc.currency)
	}
}
