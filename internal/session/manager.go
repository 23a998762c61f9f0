// Package session owns the account roster and the active-account pointer.
// Exactly one account is active at a time; the ledger binds to it and every
// game settles against it.
package session

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"charliesodds/internal/models"
	"charliesodds/internal/store"
)

const startingBalance = 1000

var (
	ErrUsernameTaken      = errors.New("session: username already taken")
	ErrEmailTaken         = errors.New("session: email already registered")
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	ErrNotLoggedIn        = errors.New("session: no active account")
)

// Manager keeps the full roster in memory and mirrors every change to the
// store. A corrupt or missing roster is replaced with the seeded defaults
// rather than failing startup.
type Manager struct {
	mu       sync.Mutex
	accounts []*models.Account
	active   string
	store    store.Store
	logger   *logrus.Entry
}

func NewManager(st store.Store, logger *logrus.Logger) *Manager {
	m := &Manager{
		store:  st,
		logger: logger.WithField("component", "session"),
	}
	m.load()
	return m
}

func (m *Manager) load() {
	raw, err := m.store.Get(store.KeyAccounts)
	if err == nil {
		var accounts []*models.Account
		if jsonErr := json.Unmarshal(raw, &accounts); jsonErr == nil && len(accounts) > 0 {
			m.accounts = accounts
		} else {
			m.logger.Warn("account roster unreadable, reseeding defaults")
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		m.logger.WithError(err).Warn("account roster unavailable, reseeding defaults")
	}

	if m.accounts == nil {
		m.accounts = seedAccounts()
		if err := m.persistLocked(); err != nil {
			m.logger.WithError(err).Warn("seed roster not persisted")
		}
	}

	if raw, err := m.store.Get(store.KeyCurrentAccount); err == nil {
		var id string
		if json.Unmarshal(raw, &id) == nil && m.byID(id) != nil {
			m.active = id
		}
	}
}

// seedAccounts is the out-of-the-box roster: an admin with a padded bankroll
// and a demo player at the standard starting balance.
func seedAccounts() []*models.Account {
	now := time.Now()
	return []*models.Account{
		{
			ID:        models.GenerateAccountID(),
			Username:  "admin",
			Email:     "admin@charliesodds.local",
			Password:  "admin",
			IsAdmin:   true,
			Balance:   10000,
			Level:     1,
			Currency:  models.CurrencyUSD,
			CreatedAt: now,
		},
		{
			ID:        models.GenerateAccountID(),
			Username:  "demo",
			Email:     "demo@charliesodds.local",
			Password:  "demo",
			Balance:   startingBalance,
			Level:     1,
			Currency:  models.CurrencyUSD,
			CreatedAt: now,
		},
	}
}

// Register creates an account at the starting balance and makes it active.
func (m *Manager) Register(username, email, password string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	for _, account := range m.accounts {
		if strings.EqualFold(account.Username, username) {
			return nil, ErrUsernameTaken
		}
		if strings.EqualFold(account.Email, email) {
			return nil, ErrEmailTaken
		}
	}

	account := &models.Account{
		ID:        models.GenerateAccountID(),
		Username:  username,
		Email:     email,
		Password:  password,
		Balance:   startingBalance,
		Level:     1,
		Currency:  models.CurrencyUSD,
		CreatedAt: time.Now(),
	}
	m.accounts = append(m.accounts, account)
	m.active = account.ID

	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	m.logger.WithField("username", username).Info("account registered")
	return account, nil
}

// Login matches by username or email and makes the account active.
func (m *Manager) Login(identifier, password string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if !strings.EqualFold(account.Username, identifier) && !strings.EqualFold(account.Email, identifier) {
			continue
		}
		if account.Password != password {
			return nil, ErrInvalidCredentials
		}
		m.active = account.ID
		if err := m.persistActiveLocked(); err != nil {
			return nil, err
		}
		m.logger.WithField("username", account.Username).Info("logged in")
		return account, nil
	}
	return nil, ErrInvalidCredentials
}

// Logout clears the active pointer. The roster is untouched.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == "" {
		return ErrNotLoggedIn
	}
	m.active = ""
	if err := m.store.Delete(store.KeyCurrentAccount); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	m.logger.Info("logged out")
	return nil
}

// Active returns the logged-in account, or nil.
func (m *Manager) Active() *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID(m.active)
}

// Accounts lists the roster, admin use only.
func (m *Manager) Accounts() []*models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Account(nil), m.accounts...)
}

// SaveAccount persists a mutated account. It satisfies the ledger's Saver so
// settlements reach the store through the same roster write path.
func (m *Manager) SaveAccount(account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.accounts {
		if existing.ID == account.ID {
			m.accounts[i] = account
			return m.persistLocked()
		}
	}
	m.accounts = append(m.accounts, account)
	return m.persistLocked()
}

func (m *Manager) byID(id string) *models.Account {
	if id == "" {
		return nil
	}
	for _, account := range m.accounts {
		if account.ID == id {
			return account
		}
	}
	return nil
}

func (m *Manager) persistLocked() error {
	raw, err := json.Marshal(m.accounts)
	if err != nil {
		return err
	}
	if err := m.store.Set(store.KeyAccounts, raw); err != nil {
		return err
	}
	return m.persistActiveLocked()
}

func (m *Manager) persistActiveLocked() error {
	if m.active == "" {
		return nil
	}
	raw, err := json.Marshal(m.active)
	if err != nil {
		return err
	}
	return m.store.Set(store.KeyCurrentAccount, raw)
}
