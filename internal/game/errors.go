package game

import "errors"

// Per-request failures surfaced to the originating caller. None of these ever
// stops the shared round loop.
var (
	// ErrPhase means the operation is not valid for the round's current
	// phase (bets only while betting, cashouts only while running).
	ErrPhase = errors.New("operation not allowed in current phase")

	// ErrDuplicateBet means the player already has a bet in this round.
	ErrDuplicateBet = errors.New("already placed a bet in this round")

	// ErrNoBet means the player has no pending bet to cash out.
	ErrNoBet = errors.New("no pending bet for player")

	// ErrInsufficientBalance means the wallet debit was refused.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPriceUnavailable means the price oracle could not value the asset.
	ErrPriceUnavailable = errors.New("crypto price unavailable")
)
