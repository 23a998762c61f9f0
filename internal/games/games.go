// Package games holds the per-game state machines. Each engine owns one
// round at a time: it draws randomness, decides the outcome, and reports the
// settled wager to the ledger and the bet log before its phase reads Settled.
package games

import (
	"errors"
	"fmt"

	"charliesodds/internal/models"
)

// Phase is the lifecycle position of the current round.
type Phase string

const (
	PhaseBetting   Phase = "betting"
	PhaseActive    Phase = "active"
	PhaseResolving Phase = "resolving"
	PhaseRunning   Phase = "running"
	PhaseSettled   Phase = "settled"
)

// ErrRoundInFlight is returned when a new round is requested while one is
// still running; ErrNoRoundActive when an action needs a round that is not
// there.
var (
	ErrRoundInFlight = errors.New("games: round already in flight")
	ErrNoRoundActive = errors.New("games: no round in progress")
)

// ValidationError carries the bet-limit oracle's user-visible rejection.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bet rejected: %s", e.Reason)
}

// Broadcaster receives game lifecycle events for the presentation layer.
// The websocket hub implements it; engines never block on it.
type Broadcaster interface {
	GamePhase(game models.GameType, phase Phase)
	MultiplierTick(multiplier float64)
	BalanceUpdate(balance float64)
}

// NopBroadcaster drops all events; used when no client is attached.
type NopBroadcaster struct{}

func (NopBroadcaster) GamePhase(models.GameType, Phase) {}
func (NopBroadcaster) MultiplierTick(float64)           {}
func (NopBroadcaster) BalanceUpdate(float64)            {}
