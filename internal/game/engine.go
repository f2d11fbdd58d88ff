package game

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	TICK_INTERVAL  = 100 * time.Millisecond
	BETTING_TIME   = 10 * time.Second
	ROUND_COOLDOWN = 1 * time.Second
	GROWTH_RATE    = 0.0025

	MAX_BET_AMOUNT = 10000.0
	MIN_BET_AMOUNT = 1.0

	settleTimeout = 5 * time.Second
)

// Config controls round timing. Zero values fall back to the defaults above;
// tests shrink them.
type Config struct {
	BettingTime  time.Duration
	TickInterval time.Duration
	Cooldown     time.Duration
	GrowthRate   float64
}

func (c Config) withDefaults() Config {
	if c.BettingTime <= 0 {
		c.BettingTime = BETTING_TIME
	}
	if c.TickInterval <= 0 {
		c.TickInterval = TICK_INTERVAL
	}
	if c.Cooldown <= 0 {
		c.Cooldown = ROUND_COOLDOWN
	}
	if c.GrowthRate <= 0 {
		c.GrowthRate = GROWTH_RATE
	}
	return c
}

// Engine owns the single shared round and sequences its phases in an
// unending cycle. All round state (phase, multiplier, bet set) lives behind
// one mutex so a cashout and the crash transition can never interleave:
// whichever acquires the lock first wins. External I/O (price lookups,
// wallet writes, history writes) happens outside the lock.
type Engine struct {
	cfg    Config
	hub    Broadcaster
	store  LedgerStore
	oracle PriceOracle
	rounds RoundCache // optional

	mu            sync.Mutex
	round         *Round
	bettingEndsAt time.Time

	credits  chan creditJob
	stopChan chan struct{}
	stopOnce sync.Once
}

type creditJob struct {
	playerID    string
	cryptoType  string
	amount      float64
	usdAmount   float64
	priceAtTime float64
}

func NewEngine(store LedgerStore, oracle PriceOracle, hub Broadcaster, rounds RoundCache, cfg Config) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		hub:      hub,
		store:    store,
		oracle:   oracle,
		rounds:   rounds,
		credits:  make(chan creditJob, 1000),
		stopChan: make(chan struct{}),
	}
}

func (e *Engine) Start() {
	go e.run()
	go e.creditWorker()
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
}

func (e *Engine) run() {
	for {
		select {
		case <-e.stopChan:
			log.Println("[GAME] Round loop stopped")
			return
		default:
			e.runRound()
		}
	}
}

// runRound drives one full cycle: betting window, running phase until the
// crash point is hit, then a short cooldown. Nothing in here is fatal to the
// loop; a failed history write logs and the next round starts clean.
func (e *Engine) runRound() {
	round := e.openBetting()
	log.Printf("\n=== ROUND %s ===", round.RoundID)

	select {
	case <-time.After(e.cfg.BettingTime):
	case <-e.stopChan:
		return
	}

	e.closeBetting()
	crashPoint := e.startRunning()
	log.Printf("[FAIR] Crash point: %.2fx (HIDDEN)", crashPoint)

	start := time.Now()
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if crashed := e.tick(time.Since(start).Seconds()); crashed {
				log.Printf("=== ROUND %s ENDED at %.2fx ===\n", round.RoundID, crashPoint)
				select {
				case <-time.After(e.cfg.Cooldown):
				case <-e.stopChan:
				}
				return
			}
		case <-e.stopChan:
			return
		}
	}
}

// openBetting allocates a fresh round with a new id and seed and opens the
// betting window. The crash point is NOT derived here, so nothing about it
// exists before the window closes.
func (e *Engine) openBetting() *Round {
	round := newRound(uuid.NewString(), GenerateSeed())

	e.mu.Lock()
	e.round = round
	e.bettingEndsAt = time.Now().Add(e.cfg.BettingTime)
	e.mu.Unlock()

	e.hub.Broadcast(BettingPhaseStartEvent{
		Type:     EventBettingPhaseStart,
		RoundID:  round.RoundID,
		TimeLeft: e.cfg.BettingTime.Seconds(),
	})
	return round
}

// closeBetting shuts the window under the lock before the event goes out, so
// no bet can slip in between the announcement and the running transition.
func (e *Engine) closeBetting() {
	e.mu.Lock()
	e.round.Phase = PhaseIdle
	roundID := e.round.RoundID
	e.mu.Unlock()

	e.hub.Broadcast(BettingPhaseEndEvent{Type: EventBettingPhaseEnd, RoundID: roundID})
}

// startRunning derives the crash point from the committed seed and flips the
// round into the running phase. The returned value is logged but withheld
// from clients until the crash.
func (e *Engine) startRunning() float64 {
	e.mu.Lock()
	round := e.round
	round.CrashPoint = GenerateCrashPoint(round.Seed, round.RoundID)
	round.CurrentMultiplier = MIN_MULTIPLIER
	round.Phase = PhaseRunning
	round.StartTime = time.Now()
	crashPoint := round.CrashPoint
	roundID := round.RoundID
	e.mu.Unlock()

	e.hub.Broadcast(RoundStartEvent{Type: EventRoundStart, RoundID: roundID})
	return crashPoint
}

// tick advances the multiplier for the given elapsed seconds. It either
// publishes a multiplier update (possibly cashing out auto-cashout targets)
// or, once the pre-committed crash point is reached, settles the round and
// reports true. The reported crash value is always the committed crash
// point, not the tick value that overshot it.
func (e *Engine) tick(elapsed float64) bool {
	e.mu.Lock()
	round := e.round
	if round == nil || round.Phase != PhaseRunning {
		crashed := round != nil && round.Phase == PhaseCrashed
		e.mu.Unlock()
		return crashed
	}

	mult := calcMultiplier(elapsed, e.cfg.GrowthRate)

	if mult >= round.CrashPoint {
		round.CurrentMultiplier = round.CrashPoint
		round.Phase = PhaseCrashed
		round.CrashTime = time.Now()
		lost := round.settlePending()
		rec := round.record()
		e.mu.Unlock()

		for _, bet := range lost {
			log.Printf("[LOSS] Player %s lost %.8f %s", bet.PlayerID, bet.CryptoAmount, bet.CryptoType)
		}

		e.hub.Broadcast(RoundCrashEvent{
			Type:       EventRoundCrash,
			RoundID:    rec.RoundID,
			Seed:       rec.Seed,
			CrashPoint: rec.CrashPoint,
		})

		e.persistRound(rec)
		e.hub.Broadcast(UpdateLeaderboardEvent{Type: EventUpdateLeaderboard})
		return true
	}

	round.CurrentMultiplier = mult
	cashouts := e.autoCashouts(round, mult)
	roundID := round.RoundID
	e.mu.Unlock()

	e.hub.Broadcast(MultiplierUpdateEvent{
		Type:       EventMultiplierUpdate,
		RoundID:    roundID,
		Multiplier: mult,
	})

	for _, co := range cashouts {
		e.settleCashout(roundID, co)
	}
	return false
}

// autoCashouts settles bets whose auto-cashout target was reached, under the
// lock already held by tick. Returns the receipts to credit and broadcast.
func (e *Engine) autoCashouts(round *Round, mult float64) []*Bet {
	var won []*Bet
	for _, id := range round.betOrder {
		bet := round.bets[id]
		if bet.debited && bet.Status == BetPending && bet.AutoCashout > 0 && mult >= bet.AutoCashout {
			m := mult
			bet.Status = BetWon
			bet.MultiplierAtCashout = &m
			won = append(won, bet)
		}
	}
	return won
}

// PlaceBet values the stake at the current price, reserves the bet slot and
// debits the wallet. The price lookup and wallet debit run outside the round
// lock; a failed debit removes the reservation again.
func (e *Engine) PlaceBet(ctx context.Context, req BetRequest) (*BetReceipt, error) {
	if req.PlayerID == "" {
		return nil, fmt.Errorf("player id is required")
	}
	if req.UsdAmount < MIN_BET_AMOUNT || req.UsdAmount > MAX_BET_AMOUNT {
		return nil, fmt.Errorf("bet must be between %.2f and %.2f", MIN_BET_AMOUNT, MAX_BET_AMOUNT)
	}

	// Fail fast before touching the oracle.
	e.mu.Lock()
	if e.round == nil || e.round.Phase != PhaseBetting {
		e.mu.Unlock()
		return nil, ErrPhase
	}
	if _, exists := e.round.bets[req.PlayerID]; exists {
		e.mu.Unlock()
		return nil, ErrDuplicateBet
	}
	e.mu.Unlock()

	price, err := e.oracle.GetPrice(ctx, req.CryptoType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	cryptoAmount := trunc8(req.UsdAmount / price)
	if cryptoAmount <= 0 {
		return nil, fmt.Errorf("bet too small for current %s price", req.CryptoType)
	}

	bet := &Bet{
		PlayerID:     req.PlayerID,
		UsdAmount:    req.UsdAmount,
		CryptoAmount: cryptoAmount,
		CryptoType:   req.CryptoType,
		PriceAtTime:  price,
		AutoCashout:  req.AutoCashout,
		PlacedAt:     time.Now(),
	}

	e.mu.Lock()
	if e.round == nil {
		e.mu.Unlock()
		return nil, ErrPhase
	}
	roundID := e.round.RoundID
	if err := e.round.addBet(bet); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	if err := e.store.Debit(ctx, req.PlayerID, req.CryptoType, cryptoAmount, req.UsdAmount, price); err != nil {
		e.mu.Lock()
		if e.round != nil && e.round.RoundID == roundID {
			e.round.removeBet(req.PlayerID)
		}
		e.mu.Unlock()
		return nil, err
	}

	// Only a confirmed stake takes part in settlement. If the round crashed
	// while the debit was in flight, the bet never played: give the stake
	// back.
	e.mu.Lock()
	confirmed := e.round != nil && e.round.RoundID == roundID && e.round.confirmBet(req.PlayerID)
	e.mu.Unlock()
	if !confirmed {
		log.Printf("[BET] Round %s ended before player %s's debit landed, refunding stake", roundID, req.PlayerID)
		e.credit(creditJob{
			playerID:    req.PlayerID,
			cryptoType:  req.CryptoType,
			amount:      cryptoAmount,
			usdAmount:   req.UsdAmount,
			priceAtTime: price,
		})
		return nil, ErrPhase
	}

	log.Printf("[BET] Player %s bet $%.2f = %.8f %s (round %s)",
		req.PlayerID, req.UsdAmount, cryptoAmount, req.CryptoType, roundID)

	e.hub.Broadcast(BetPlacedEvent{
		Type:      EventBetPlaced,
		RoundID:   roundID,
		PlayerID:  req.PlayerID,
		UsdAmount: req.UsdAmount,
		Crypto:    req.CryptoType,
	})

	return &BetReceipt{RoundID: roundID, CryptoAmount: cryptoAmount, Price: price}, nil
}

// CashOut converts the player's pending bet to won at the multiplier
// snapshotted under the round lock. A cashout that gets the lock before the
// crash transition always wins; afterwards the phase check rejects it.
func (e *Engine) CashOut(ctx context.Context, playerID string) (*CashoutReceipt, error) {
	e.mu.Lock()
	round := e.round
	if round == nil || round.Phase != PhaseRunning {
		e.mu.Unlock()
		return nil, ErrPhase
	}
	bet, err := round.pendingBet(playerID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	mult := round.CurrentMultiplier
	bet.Status = BetWon
	bet.MultiplierAtCashout = &mult
	roundID := round.RoundID
	e.mu.Unlock()

	e.settleCashout(roundID, bet)

	return &CashoutReceipt{
		RoundID:    roundID,
		Multiplier: mult,
		Payout:     trunc8(bet.CryptoAmount * mult),
		Crypto:     bet.CryptoType,
	}, nil
}

// settleCashout credits the payout and publishes the cashout. Called after
// the round lock has been released; bet is already marked won.
func (e *Engine) settleCashout(roundID string, bet *Bet) {
	mult := *bet.MultiplierAtCashout
	payout := trunc8(bet.CryptoAmount * mult)

	e.credit(creditJob{
		playerID:    bet.PlayerID,
		cryptoType:  bet.CryptoType,
		amount:      payout,
		usdAmount:   trunc8(bet.UsdAmount * mult),
		priceAtTime: bet.PriceAtTime,
	})

	log.Printf("[CASHOUT] Player %s cashed out at %.2fx (payout %.8f %s)",
		bet.PlayerID, mult, payout, bet.CryptoType)

	e.hub.Broadcast(PlayerCashoutEvent{
		Type:       EventPlayerCashout,
		RoundID:    roundID,
		PlayerID:   bet.PlayerID,
		Multiplier: mult,
		Payout:     payout,
		Crypto:     bet.CryptoType,
	})
	e.hub.Broadcast(UpdateLeaderboardEvent{Type: EventUpdateLeaderboard})
}

// credit tries the wallet write once and queues it for retry on failure. A
// lost credit is a player-facing financial bug, so unlike history writes
// these are never silently dropped.
func (e *Engine) credit(job creditJob) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	err := e.store.Credit(ctx, job.playerID, job.cryptoType, job.amount, job.usdAmount, job.priceAtTime)
	cancel()
	if err == nil {
		return
	}
	log.Printf("[SETTLE] Credit failed for player %s, queueing retry: %v", job.playerID, err)
	select {
	case e.credits <- job:
	default:
		log.Printf("[SETTLE] Credit retry queue full, player %s amount %.8f %s NOT credited",
			job.playerID, job.amount, job.cryptoType)
	}
}

// creditWorker replays failed wallet credits with exponential backoff so a
// momentarily unavailable store does not cost a player their payout.
func (e *Engine) creditWorker() {
	for {
		select {
		case <-e.stopChan:
			return
		case job := <-e.credits:
			op := func() error {
				ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
				defer cancel()
				return e.store.Credit(ctx, job.playerID, job.cryptoType, job.amount, job.usdAmount, job.priceAtTime)
			}
			if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8)); err != nil {
				log.Printf("[SETTLE] Giving up on credit for player %s amount %.8f %s: %v",
					job.playerID, job.amount, job.cryptoType, err)
			}
		}
	}
}

// persistRound writes the finished round to the ledger store and, when a
// cache is wired, to the live round cache. Failures are logged only; history
// durability never stalls the next round.
func (e *Engine) persistRound(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := e.store.RecordRoundHistory(ctx, rec); err != nil {
		log.Printf("[GAME] Failed to persist round %s: %v", rec.RoundID, err)
	}
	if e.rounds != nil {
		if err := e.rounds.SaveRound(ctx, rec); err != nil {
			log.Printf("[GAME] Failed to cache round %s: %v", rec.RoundID, err)
		}
	}
}

// Snapshot returns what a reconnecting client needs to catch up.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round == nil {
		return Snapshot{Phase: PhaseIdle, Multiplier: MIN_MULTIPLIER}
	}
	snap := Snapshot{
		RoundID:    e.round.RoundID,
		Phase:      e.round.Phase,
		Multiplier: e.round.CurrentMultiplier,
	}
	if e.round.Phase == PhaseBetting {
		if left := time.Until(e.bettingEndsAt).Seconds(); left > 0 {
			snap.BettingTimeLeft = left
		}
	}
	return snap
}

// calcMultiplier maps elapsed running time to the displayed multiplier,
// rounded to two decimals. Monotonic in elapsed.
func calcMultiplier(elapsed, growthRate float64) float64 {
	return math.Round((1+elapsed*growthRate*100)*100) / 100
}

// trunc8 truncates crypto amounts to 8 decimal places, the canonical
// rounding rule for every wallet-facing amount.
func trunc8(x float64) float64 {
	return math.Trunc(x*1e8) / 1e8
}
