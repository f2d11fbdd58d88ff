package game

// Broadcast event names. The set is closed: every message the engine pushes
// to subscribers is one of the typed payloads below.
const (
	EventBettingPhaseStart = "betting_phase_start"
	EventBettingPhaseEnd   = "betting_phase_end"
	EventRoundStart        = "round_start"
	EventMultiplierUpdate  = "multiplier_update"
	EventRoundCrash        = "round_crash"
	EventUpdateLeaderboard = "update_leaderboard"
	EventPlayerCashout     = "player_cashout"
	EventBetPlaced         = "bet_placed"
	EventInitialState      = "initial_state"

	// Per-request acks, sent only to the originating client.
	EventBetAccepted  = "bet_accepted"
	EventBetError     = "bet_error"
	EventCashoutError = "cashout_error"
)

type BetAcceptedEvent struct {
	Type         string  `json:"type"`
	RoundID      string  `json:"round_id"`
	CryptoAmount float64 `json:"crypto_amount"`
	Price        float64 `json:"price"`
}

type BetErrorEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type CashoutErrorEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type BettingPhaseStartEvent struct {
	Type     string  `json:"type"`
	RoundID  string  `json:"round_id"`
	TimeLeft float64 `json:"time_left"`
}

type BettingPhaseEndEvent struct {
	Type    string `json:"type"`
	RoundID string `json:"round_id"`
}

// RoundStartEvent announces the running phase. The crash point is withheld;
// only the seed's existence is implied by the later reveal.
type RoundStartEvent struct {
	Type    string `json:"type"`
	RoundID string `json:"round_id"`
}

type MultiplierUpdateEvent struct {
	Type       string  `json:"type"`
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
}

// RoundCrashEvent reveals the seed so players can verify the crash point.
type RoundCrashEvent struct {
	Type       string  `json:"type"`
	RoundID    string  `json:"round_id"`
	Seed       string  `json:"seed"`
	CrashPoint float64 `json:"crash_point"`
}

// UpdateLeaderboardEvent carries no payload; it signals clients to re-query.
type UpdateLeaderboardEvent struct {
	Type string `json:"type"`
}

type PlayerCashoutEvent struct {
	Type       string  `json:"type"`
	RoundID    string  `json:"round_id"`
	PlayerID   string  `json:"player_id"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
	Crypto     string  `json:"crypto"`
}

type BetPlacedEvent struct {
	Type      string  `json:"type"`
	RoundID   string  `json:"round_id"`
	PlayerID  string  `json:"player_id"`
	UsdAmount float64 `json:"usd_amount"`
	Crypto    string  `json:"crypto"`
}

// Snapshot is what a newly connected or reconnecting client needs to catch
// up with the shared round.
type Snapshot struct {
	RoundID         string  `json:"round_id"`
	Phase           Phase   `json:"phase"`
	Multiplier      float64 `json:"multiplier"`
	BettingTimeLeft float64 `json:"betting_time_left"`
}

type InitialStateEvent struct {
	Type string   `json:"type"`
	Data Snapshot `json:"data"`
}
