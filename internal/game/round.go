package game

import (
	"time"
)

type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhaseBetting Phase = "BETTING"
	PhaseRunning Phase = "RUNNING"
	PhaseCrashed Phase = "CRASHED"
)

type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
)

// Bet is one player's stake within a round. Status moves one way only:
// pending -> won on cashout, or pending -> lost when the round crashes.
type Bet struct {
	PlayerID            string    `json:"player_id"`
	UsdAmount           float64   `json:"usd_amount"`
	CryptoAmount        float64   `json:"crypto_amount"`
	CryptoType          string    `json:"crypto_type"`
	PriceAtTime         float64   `json:"price_at_time"`
	AutoCashout         float64   `json:"auto_cashout,omitempty"`
	Status              BetStatus `json:"status"`
	MultiplierAtCashout *float64  `json:"multiplier_at_cashout"`
	PlacedAt            time.Time `json:"placed_at"`

	// debited reports whether the stake has actually been withdrawn from
	// the wallet. A bet takes part in cashouts, crash settlement and the
	// round record only once its debit committed; until then it merely
	// holds the player's slot.
	debited bool
}

// Round is the single shared play cycle. It is owned by the Engine and only
// ever touched while holding the Engine's mutex; nothing outside the game
// package mutates it.
type Round struct {
	RoundID           string    `json:"round_id"`
	Seed              string    `json:"-"` // revealed only after crash
	CrashPoint        float64   `json:"-"` // hidden until crash
	CurrentMultiplier float64   `json:"current_multiplier"`
	Phase             Phase     `json:"phase"`
	StartTime         time.Time `json:"start_time"`
	CrashTime         time.Time `json:"crash_time,omitempty"`

	bets     map[string]*Bet
	betOrder []string
}

func newRound(roundID, seed string) *Round {
	return &Round{
		RoundID:           roundID,
		Seed:              seed,
		CurrentMultiplier: MIN_MULTIPLIER,
		Phase:             PhaseBetting,
		StartTime:         time.Now(),
		bets:              make(map[string]*Bet),
	}
}

// addBet inserts a pending bet, enforcing one bet per player per round.
// Caller holds the engine lock.
func (r *Round) addBet(bet *Bet) error {
	if r.Phase != PhaseBetting {
		return ErrPhase
	}
	if _, exists := r.bets[bet.PlayerID]; exists {
		return ErrDuplicateBet
	}
	bet.Status = BetPending
	r.bets[bet.PlayerID] = bet
	r.betOrder = append(r.betOrder, bet.PlayerID)
	return nil
}

// removeBet undoes a reservation whose wallet debit failed. Only a still
// pending bet is removed; anything settled stays settled.
func (r *Round) removeBet(playerID string) {
	bet, ok := r.bets[playerID]
	if !ok || bet.Status != BetPending {
		return
	}
	delete(r.bets, playerID)
	for i, id := range r.betOrder {
		if id == playerID {
			r.betOrder = append(r.betOrder[:i], r.betOrder[i+1:]...)
			break
		}
	}
}

// confirmBet marks the player's stake as withdrawn, making the bet eligible
// for settlement. Fails once the round has crashed; the caller must return
// the stake in that case.
func (r *Round) confirmBet(playerID string) bool {
	bet, ok := r.bets[playerID]
	if !ok || bet.Status != BetPending || r.Phase == PhaseCrashed {
		return false
	}
	bet.debited = true
	return true
}

// pendingBet returns the player's bet if its stake is committed and it has
// not settled.
func (r *Round) pendingBet(playerID string) (*Bet, error) {
	bet, ok := r.bets[playerID]
	if !ok || !bet.debited || bet.Status != BetPending {
		return nil, ErrNoBet
	}
	return bet, nil
}

// settlePending marks every remaining pending bet as lost and returns the
// losers. Bets whose debit never committed are skipped; they were never
// staked. This is the only bulk mutation on the bet set; it runs under the
// engine lock so it cannot interleave with a cashout.
func (r *Round) settlePending() []*Bet {
	var lost []*Bet
	for _, id := range r.betOrder {
		bet := r.bets[id]
		if bet.debited && bet.Status == BetPending {
			bet.Status = BetLost
			bet.MultiplierAtCashout = nil
			lost = append(lost, bet)
		}
	}
	return lost
}

// Record is the frozen view of a finished round handed to the ledger store.
type Record struct {
	RoundID    string    `json:"round_id"`
	Seed       string    `json:"seed"`
	CrashPoint float64   `json:"crash_point"`
	StartTime  time.Time `json:"start_time"`
	CrashTime  time.Time `json:"crash_time"`
	Bets       []Bet     `json:"bets"`
}

// record copies the round into an immutable Record, in bet placement order.
// Only staked bets make it into history.
func (r *Round) record() *Record {
	rec := &Record{
		RoundID:    r.RoundID,
		Seed:       r.Seed,
		CrashPoint: r.CrashPoint,
		StartTime:  r.StartTime,
		CrashTime:  r.CrashTime,
		Bets:       make([]Bet, 0, len(r.betOrder)),
	}
	for _, id := range r.betOrder {
		if bet := r.bets[id]; bet.debited {
			rec.Bets = append(rec.Bets, *bet)
		}
	}
	return rec
}
