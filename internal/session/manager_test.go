package session

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charliesodds/internal/models"
	"charliesodds/internal/store"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestSeededRoster(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), testLogger())

	accounts := m.Accounts()
	require.Len(t, accounts, 2)

	admin, err := m.Login("admin", "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.Equal(t, 10000.0, admin.Balance)

	demo, err := m.Login("demo", "demo")
	require.NoError(t, err)
	assert.False(t, demo.IsAdmin)
	assert.Equal(t, 1000.0, demo.Balance)
}

func TestRegisterMakesAccountActive(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), testLogger())

	account, err := m.Register("charlie", "charlie@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, account.Balance)
	assert.Equal(t, 1, account.Level)
	assert.Equal(t, models.CurrencyUSD, account.Currency)

	active := m.Active()
	require.NotNil(t, active)
	assert.Equal(t, account.ID, active.ID)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), testLogger())

	_, err := m.Register("charlie", "charlie@example.com", "secret")
	require.NoError(t, err)

	_, err = m.Register("Charlie", "other@example.com", "secret")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = m.Register("other", "CHARLIE@example.com", "secret")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterRejectsBlankFields(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), testLogger())

	_, err := m.Register("", "a@b.c", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Register("a", "a@b.c", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginByUsernameOrEmail(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), testLogger())
	_, err := m.Register("charlie", "charlie@example.com", "secret")
	require.NoError(t, err)

	_, err = m.Login("charlie", "secret")
	assert.NoError(t, err)
	_, err = m.Login("charlie@example.com", "secret")
	assert.NoError(t, err)
	_, err = m.Login("charlie", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Login("nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutClearsActive(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), testLogger())
	_, err := m.Login("demo", "demo")
	require.NoError(t, err)

	require.NoError(t, m.Logout())
	assert.Nil(t, m.Active())
	assert.ErrorIs(t, m.Logout(), ErrNotLoggedIn)
}

func TestRosterAndActiveSurviveReload(t *testing.T) {
	st := store.NewMemoryStore()

	m := NewManager(st, testLogger())
	account, err := m.Register("charlie", "charlie@example.com", "secret")
	require.NoError(t, err)

	account.Balance = 1234
	require.NoError(t, m.SaveAccount(account))

	reloaded := NewManager(st, testLogger())
	active := reloaded.Active()
	require.NotNil(t, active)
	assert.Equal(t, "charlie", active.Username)
	assert.Equal(t, 1234.0, active.Balance)
	assert.Len(t, reloaded.Accounts(), 3)
}

func TestCorruptRosterReseeded(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(store.KeyAccounts, []byte("{broken")))

	m := NewManager(st, testLogger())
	accounts := m.Accounts()
	require.Len(t, accounts, 2)
	_, err := m.Login("admin", "admin")
	assert.NoError(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	account := &models.Account{ID: "user-1", Username: "charlie", IsAdmin: true}

	token, err := svc.Generate(account)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.AccountID)
	assert.Equal(t, "charlie", claims.Username)
	assert.True(t, claims.IsAdmin)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewTokenService("test-secret", -time.Minute)
	token, err := svc.Generate(&models.Account{ID: "user-1", Username: "charlie"})
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestTokenSignedWithOtherSecretRejected(t *testing.T) {
	token, err := NewTokenService("secret-a", time.Hour).Generate(&models.Account{ID: "user-1"})
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).Validate(token)
	assert.Error(t, err)
}
