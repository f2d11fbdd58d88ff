package game

import "context"

type BetRequest struct {
	PlayerID    string  `json:"player_id"`
	UsdAmount   float64 `json:"usd_amount"`
	CryptoType  string  `json:"crypto_type"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

type BetReceipt struct {
	RoundID      string  `json:"round_id"`
	CryptoAmount float64 `json:"crypto_amount"`
	Price        float64 `json:"price"`
}

type CashoutReceipt struct {
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
	Crypto     string  `json:"crypto"`
}

// PriceOracle values an asset in USD. Implementations cache upstream quotes
// and must return within a bounded timeout; the engine calls it before
// taking the round lock.
type PriceOracle interface {
	GetPrice(ctx context.Context, cryptoType string) (float64, error)
}

// LedgerStore is the durable balance and history collaborator. The engine
// never holds authoritative balance state; it issues debit/credit commands
// and records finished rounds here.
type LedgerStore interface {
	Debit(ctx context.Context, playerID, cryptoType string, amount, usdAmount, priceAtTime float64) error
	Credit(ctx context.Context, playerID, cryptoType string, amount, usdAmount, priceAtTime float64) error
	RecordRoundHistory(ctx context.Context, rec *Record) error
}

// Broadcaster pushes events to all connected subscribers, fire-and-forget.
type Broadcaster interface {
	Broadcast(message interface{})
}

// RoundCache optionally keeps a live copy of finished rounds for ops tooling
// and reconnecting clients. A nil cache is fine.
type RoundCache interface {
	SaveRound(ctx context.Context, rec *Record) error
}
