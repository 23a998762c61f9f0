// Package betlog keeps the capped, most-recent-first record of settled
// wagers and derives aggregate statistics from whatever is retained.
package betlog

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"charliesodds/internal/models"
	"charliesodds/internal/store"
)

// DefaultRetention matches the original cap of ten thousand records.
const DefaultRetention = 10000

type Log struct {
	mu      sync.Mutex
	entries []models.BetRecord
	cap     int
	store   store.Store
	now     func() time.Time
	logger  *logrus.Entry
}

func New(st store.Store, logger *logrus.Logger) *Log {
	l := &Log{
		cap:    DefaultRetention,
		store:  st,
		now:    time.Now,
		logger: logger.WithField("component", "betlog"),
	}
	l.load()
	return l
}

// load restores persisted records. Corrupt data is dropped and the log starts
// empty; losing history is recoverable, failing startup is not.
func (l *Log) load() {
	data, err := l.store.Get(store.KeyBets)
	if err != nil {
		return
	}
	var entries []models.BetRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.WithError(err).Warn("discarding corrupt bet history")
		return
	}
	if len(entries) > l.cap {
		entries = entries[:l.cap]
	}
	l.entries = entries
}

// Record appends a settled wager at the front, evicting the oldest entry past
// the retention cap, and persists the log.
func (l *Log) Record(game models.GameType, bet, win float64, result any) models.BetRecord {
	multiplier := 0.0
	if win > 0 {
		multiplier = win / bet
	}

	record := models.BetRecord{
		ID:         models.GenerateBetID(),
		Game:       game,
		BetAmount:  bet,
		WinAmount:  win,
		Multiplier: multiplier,
		Timestamp:  l.now(),
		Result:     result,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]models.BetRecord{record}, l.entries...)
	if len(l.entries) > l.cap {
		l.entries = l.entries[:l.cap]
	}
	l.persistLocked()

	return record
}

// Recent returns up to n records, newest first.
func (l *Log) Recent(n int) []models.BetRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]models.BetRecord, n)
	copy(out, l.entries[:n])
	return out
}

// Len reports how many records are retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stats derives aggregates over the retained records. Pushes count as
// neither win nor loss.
func (l *Log) Stats() models.LogStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := models.LogStats{TotalBets: len(l.entries)}
	if len(l.entries) == 0 {
		return stats
	}

	for _, e := range l.entries {
		if e.WinAmount > e.BetAmount {
			stats.TotalWins++
		} else if e.WinAmount < e.BetAmount {
			stats.TotalLosses++
		}
		stats.TotalWagered += e.BetAmount
		stats.TotalWon += e.WinAmount

		profit := e.WinAmount - e.BetAmount
		stats.BiggestWin = math.Max(stats.BiggestWin, profit)
		stats.BiggestLoss = math.Min(stats.BiggestLoss, profit)
	}

	stats.WinRate = float64(stats.TotalWins) / float64(stats.TotalBets) * 100
	return stats
}

// Clear empties the log and removes the persisted history. A store failure
// is returned so the caller can report that the persisted copy survived.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
	if err := l.store.Delete(store.KeyBets); err != nil {
		l.logger.WithError(err).Warn("failed to clear persisted bet history")
		return err
	}
	return nil
}

func (l *Log) persistLocked() {
	data, err := json.Marshal(l.entries)
	if err != nil {
		l.logger.WithError(err).Warn("failed to encode bet history")
		return
	}
	if err := l.store.Set(store.KeyBets, data); err != nil {
		l.logger.WithError(err).Warn("failed to persist bet history")
	}
}

// SetRetention overrides the cap. Tests only.
func (l *Log) SetRetention(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cap = n
}

// SetNow overrides the timestamp source. Tests only.
func (l *Log) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
