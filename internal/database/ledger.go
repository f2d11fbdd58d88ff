package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"crash/internal/game"
)

// New players are seeded with a small BTC balance so they can play
// immediately; there is no signup flow in front of the ledger.
const (
	initialBTC = 0.1
	initialETH = 0
)

// Debit withdraws the stake from the player's wallet and records a bet
// transaction, atomically. Returns game.ErrInsufficientBalance when the
// wallet cannot cover the amount.
func (s *service) Debit(ctx context.Context, playerID, cryptoType string, amount, usdAmount, priceAtTime float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO wallets (player_id, crypto_type, balance)
		 VALUES ($1, 'BTC', $2), ($1, 'ETH', $3)
		 ON CONFLICT (player_id, crypto_type) DO NOTHING`,
		playerID, initialBTC, initialETH); err != nil {
		return fmt.Errorf("seed wallet: %w", err)
	}

	cmd, err := tx.Exec(ctx,
		`UPDATE wallets SET balance = balance - $3
		 WHERE player_id = $1 AND crypto_type = $2 AND balance >= $3`,
		playerID, cryptoType, amount)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return game.ErrInsufficientBalance
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (player_id, usd_amount, crypto_amount, crypto_type, tx_type, tx_hash, price_at_time)
		 VALUES ($1, $2, $3, $4, 'bet', $5, $6)`,
		playerID, usdAmount, amount, cryptoType, uuid.NewString(), priceAtTime); err != nil {
		return fmt.Errorf("record bet transaction: %w", err)
	}

	return tx.Commit(ctx)
}

// Credit deposits a payout into the player's wallet and records a cashout
// transaction.
func (s *service) Credit(ctx context.Context, playerID, cryptoType string, amount, usdAmount, priceAtTime float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO wallets (player_id, crypto_type, balance)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, crypto_type) DO UPDATE SET balance = wallets.balance + $3`,
		playerID, cryptoType, amount); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (player_id, usd_amount, crypto_amount, crypto_type, tx_type, tx_hash, price_at_time)
		 VALUES ($1, $2, $3, $4, 'cashout', $5, $6)`,
		playerID, usdAmount, amount, cryptoType, uuid.NewString(), priceAtTime); err != nil {
		return fmt.Errorf("record cashout transaction: %w", err)
	}

	return tx.Commit(ctx)
}

// RecordRoundHistory freezes a finished round: the revealed seed, crash
// point and every bet outcome.
func (s *service) RecordRoundHistory(ctx context.Context, rec *game.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin round history tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO game_rounds (round_id, seed, crash_point, started_at, crashed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.RoundID, rec.Seed, rec.CrashPoint, rec.StartTime, rec.CrashTime); err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	for _, bet := range rec.Bets {
		if _, err := tx.Exec(ctx,
			`INSERT INTO round_bets (round_id, player_id, usd_amount, crypto_amount, crypto_type, multiplier_at_cashout, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.RoundID, bet.PlayerID, bet.UsdAmount, bet.CryptoAmount, bet.CryptoType,
			bet.MultiplierAtCashout, string(bet.Status)); err != nil {
			return fmt.Errorf("insert round bet: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetWallet returns the player's balances per crypto type, seeding the
// wallet first so a fresh player sees a starting balance.
func (s *service) GetWallet(ctx context.Context, playerID string) (map[string]float64, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO wallets (player_id, crypto_type, balance)
		 VALUES ($1, 'BTC', $2), ($1, 'ETH', $3)
		 ON CONFLICT (player_id, crypto_type) DO NOTHING`,
		playerID, initialBTC, initialETH); err != nil {
		return nil, fmt.Errorf("seed wallet: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT crypto_type, balance FROM wallets WHERE player_id = $1`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query wallet: %w", err)
	}
	defer rows.Close()

	wallet := make(map[string]float64)
	for rows.Next() {
		var cryptoType string
		var balance float64
		if err := rows.Scan(&cryptoType, &balance); err != nil {
			return nil, err
		}
		wallet[cryptoType] = balance
	}
	return wallet, rows.Err()
}

// QueryLeaderboard ranks players by total profit over won bets, where
// profit per bet is (multiplierAtCashout - 1) x usdBet.
func (s *service) QueryLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx,
		`SELECT player_id, SUM((multiplier_at_cashout - 1) * usd_amount) AS total_profit
		 FROM round_bets
		 WHERE status = 'won'
		 GROUP BY player_id
		 ORDER BY total_profit DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.TotalProfit); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
