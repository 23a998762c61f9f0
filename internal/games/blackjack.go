package games

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"charliesodds/internal/betlog"
	"charliesodds/internal/ledger"
	"charliesodds/internal/limits"
	"charliesodds/internal/models"
	"charliesodds/internal/rng"
)

const (
	bustThreshold   = 21
	dealerStandsOn  = 17
	reshuffleBelow  = 10
	blackjackPayout = 2.5
	winPayout       = 2.0
)

var (
	cardSuits  = []string{"♠", "♥", "♦", "♣"}
	cardValues = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
)

// Card is one suited, ranked card. Rank is the blackjack value with aces
// counted high; HandValue reduces them as needed.
type Card struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
	Rank  int    `json:"rank"`
}

func (c Card) isAce() bool { return c.Value == "A" }

// Outcome is the terminal result of a blackjack round.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomePush Outcome = "push"
)

// BlackjackResult is the opaque payload recorded with each settled round.
type BlackjackResult struct {
	PlayerValue int     `json:"player_value"`
	DealerValue int     `json:"dealer_value"`
	Outcome     Outcome `json:"outcome"`
	WinAmount   float64 `json:"win_amount"`
}

// Action is a player decision in the Active phase.
type Action string

const (
	ActionHit   Action = "hit"
	ActionStand Action = "stand"
)

// Blackjack is the turn-based engine: Betting → Active → Resolving → Settled.
// The deck is shuffled with the replayable stream, so a fixed seed reproduces
// entire sessions.
type Blackjack struct {
	mu         sync.Mutex
	phase      Phase
	deck       []Card
	player     []Card
	dealer     []Card
	stake      float64
	lastResult *BlackjackResult

	stream    *rng.Stream
	ledger    *ledger.Ledger
	log       *betlog.Log
	oracle    *limits.Oracle
	broadcast Broadcaster
	logger    *logrus.Entry
}

func NewBlackjack(stream *rng.Stream, lgr *ledger.Ledger, log *betlog.Log, oracle *limits.Oracle, broadcast Broadcaster, logger *logrus.Logger) *Blackjack {
	if broadcast == nil {
		broadcast = NopBroadcaster{}
	}
	return &Blackjack{
		phase:     PhaseBetting,
		stream:    stream,
		ledger:    lgr,
		log:       log,
		oracle:    oracle,
		broadcast: broadcast,
		logger:    logger.WithField("game", models.GameTypeBlackjack),
	}
}

// Deal starts a round at the given stake. The deck is reshuffled when it runs
// low; two cards each go to player and dealer, and a natural 21 on either
// side resolves immediately.
func (b *Blackjack) Deal(stake float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase == PhaseActive || b.phase == PhaseResolving {
		return ErrRoundInFlight
	}
	if b.ledger.Account() == nil {
		return ledger.ErrNoActiveAccount
	}
	if res := b.oracle.Validate(models.GameTypeBlackjack, stake); !res.OK() {
		return &ValidationError{Reason: res.Reason}
	}

	if len(b.deck) < reshuffleBelow {
		b.deck = b.freshDeck()
	}

	b.stake = stake
	playerFirst := b.drawCard()
	dealerFirst := b.drawCard()
	b.player = []Card{playerFirst, b.drawCard()}
	b.dealer = []Card{dealerFirst, b.drawCard()}
	b.lastResult = nil
	b.setPhaseLocked(PhaseActive)

	b.logger.WithFields(logrus.Fields{
		"stake":  stake,
		"player": HandValue(b.player),
	}).Debug("round dealt")

	if HandValue(b.player) == bustThreshold || HandValue(b.dealer) == bustThreshold {
		b.resolveLocked()
	}
	return nil
}

// Hit appends one card to the player hand; busting resolves the round as an
// immediate loss.
func (b *Blackjack) Hit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase != PhaseActive {
		return ErrNoRoundActive
	}

	b.player = append(b.player, b.drawCard())
	if HandValue(b.player) > bustThreshold {
		b.resolveLocked()
	}
	return nil
}

// Stand ends the player's turn; the dealer draws to seventeen and the round
// resolves.
func (b *Blackjack) Stand() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase != PhaseActive {
		return ErrNoRoundActive
	}

	b.setPhaseLocked(PhaseResolving)
	for HandValue(b.dealer) < dealerStandsOn {
		b.dealer = append(b.dealer, b.drawCard())
	}
	b.resolveLocked()
	return nil
}

// resolveLocked applies the settlement priority order and reports the round
// to the ledger and the bet log before the phase becomes Settled.
func (b *Blackjack) resolveLocked() {
	if b.phase == PhaseActive {
		b.setPhaseLocked(PhaseResolving)
	}

	playerValue := HandValue(b.player)
	dealerValue := HandValue(b.dealer)

	var outcome Outcome
	var win float64

	switch {
	case playerValue > bustThreshold:
		outcome = OutcomeLose
	case dealerValue > bustThreshold:
		outcome, win = OutcomeWin, b.stake*winPayout
	case playerValue == bustThreshold && len(b.player) == 2 && dealerValue != bustThreshold:
		outcome, win = OutcomeWin, b.stake*blackjackPayout
	case playerValue > dealerValue:
		outcome, win = OutcomeWin, b.stake*winPayout
	case playerValue == dealerValue:
		outcome, win = OutcomePush, b.stake
	default:
		outcome = OutcomeLose
	}

	result := &BlackjackResult{
		PlayerValue: playerValue,
		DealerValue: dealerValue,
		Outcome:     outcome,
		WinAmount:   win,
	}

	settlement, err := b.ledger.Settle(b.stake, win)
	if err != nil {
		b.logger.WithError(err).Warn("settlement skipped")
	} else {
		b.broadcast.BalanceUpdate(settlement.Balance)
	}
	b.log.Record(models.GameTypeBlackjack, b.stake, win, result)

	b.lastResult = result
	b.setPhaseLocked(PhaseSettled)
}

// AutoAction is the basic-strategy decision used by unattended play.
func (b *Blackjack) AutoAction() Action {
	b.mu.Lock()
	defer b.mu.Unlock()

	playerValue := HandValue(b.player)
	dealerUp := 0
	if len(b.dealer) > 0 {
		dealerUp = b.dealer[0].Rank
	}

	switch {
	case playerValue <= 11:
		return ActionHit
	case playerValue == 12:
		if dealerUp >= 4 && dealerUp <= 6 {
			return ActionStand
		}
		return ActionHit
	case playerValue <= 16:
		if dealerUp >= 2 && dealerUp <= 6 {
			return ActionStand
		}
		return ActionHit
	default:
		return ActionStand
	}
}

// PlayRound drives one full unattended round: deal, basic strategy until the
// hand stands or busts, settle. It blocks until the round is Settled.
func (b *Blackjack) PlayRound(ctx context.Context, stake float64) error {
	if err := b.Deal(stake); err != nil {
		return err
	}

	for b.Phase() == PhaseActive {
		if err := ctx.Err(); err != nil {
			// A round in flight completes its settlement even when the
			// caller is cancelling; stand to finish deterministically.
			return b.Stand()
		}
		var err error
		if b.AutoAction() == ActionHit {
			err = b.Hit()
		} else {
			err = b.Stand()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Ready reports whether a new round may start.
func (b *Blackjack) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase == PhaseBetting || b.phase == PhaseSettled
}

func (b *Blackjack) Game() models.GameType { return models.GameTypeBlackjack }

func (b *Blackjack) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

func (b *Blackjack) PlayerHand() []Card {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Card(nil), b.player...)
}

func (b *Blackjack) DealerHand() []Card {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Card(nil), b.dealer...)
}

func (b *Blackjack) LastResult() *BlackjackResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastResult
}

func (b *Blackjack) setPhaseLocked(p Phase) {
	b.phase = p
	b.broadcast.GamePhase(models.GameTypeBlackjack, p)
}

// drawCard takes the top of the pool, reshuffling a fresh deck when the pool
// is exhausted mid-round.
func (b *Blackjack) drawCard() Card {
	if len(b.deck) == 0 {
		b.deck = b.freshDeck()
	}
	card := b.deck[0]
	b.deck = b.deck[1:]
	return card
}

// freshDeck builds a full 52-card pool and Fisher–Yates shuffles it with the
// replayable stream.
func (b *Blackjack) freshDeck() []Card {
	deck := make([]Card, 0, len(cardSuits)*len(cardValues))
	for _, suit := range cardSuits {
		for _, value := range cardValues {
			deck = append(deck, Card{Suit: suit, Value: value, Rank: cardRank(value)})
		}
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := int(b.stream.Draw() * float64(i+1))
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

func cardRank(value string) int {
	switch value {
	case "A":
		return 11
	case "J", "Q", "K", "10":
		return 10
	default:
		return int(value[0] - '0')
	}
}

// HandValue sums ranks counting aces high, reducing them one at a time while
// the total busts and flexible aces remain.
func HandValue(hand []Card) int {
	value := 0
	aces := 0
	for _, c := range hand {
		value += c.Rank
		if c.isAce() {
			aces++
		}
	}
	for value > bustThreshold && aces > 0 {
		value -= 10
		aces--
	}
	return value
}
