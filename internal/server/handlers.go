package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"crash/internal/game"
)

// gameStateHandler returns the snapshot a reconnecting client needs.
func (s *FiberServer) gameStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.engine.Snapshot())
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.PlayerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	receipt, err := s.engine.PlaceBet(c.Context(), req)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "bet": receipt})
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.PlayerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	receipt, err := s.engine.CashOut(c.Context(), req.PlayerID)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "cashout": receipt})
}

func (s *FiberServer) leaderboardHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 5)

	entries, err := s.db.QueryLeaderboard(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query leaderboard",
		})
	}
	return c.JSON(fiber.Map{"success": true, "leaderboard": entries})
}

// roundHandler serves a recently finished round from the cache, seed and
// all, so players can verify it without a database round trip.
func (s *FiberServer) roundHandler(c *fiber.Ctx) error {
	if s.cache == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Round cache not available",
		})
	}

	rec, err := s.cache.GetRound(c.Context(), c.Params("roundId"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Round not found",
		})
	}
	return c.JSON(fiber.Map{"success": true, "round": rec})
}

// verifyHandler lets players check a revealed round for fairness.
func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	seed := c.Query("seed")
	roundID := c.Query("round_id")
	if seed == "" || roundID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "seed and round_id are required",
		})
	}

	crashPoint := game.GenerateCrashPoint(seed, roundID)
	resp := fiber.Map{"seed": seed, "round_id": roundID, "crash_point": crashPoint}

	if claimed := c.QueryFloat("crash_point", 0); claimed > 0 {
		resp["valid"] = game.VerifyCrashPoint(seed, roundID, claimed)
	}
	return c.JSON(resp)
}

// walletHandler returns balances with their USD equivalents at current
// prices.
func (s *FiberServer) walletHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")
	if playerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	balances, err := s.db.GetWallet(c.Context(), playerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch wallet",
		})
	}

	wallet := make(fiber.Map, len(balances))
	for cryptoType, amount := range balances {
		entry := fiber.Map{"amount": amount}
		if usd, err := s.oracle.GetPrice(c.Context(), cryptoType); err == nil {
			entry["usd_equivalent"] = amount * usd
		}
		wallet[cryptoType] = entry
	}

	return c.JSON(fiber.Map{"player_id": playerID, "wallet": wallet})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, game.ErrDuplicateBet):
		return fiber.StatusConflict
	case errors.Is(err, game.ErrPriceUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, game.ErrPhase),
		errors.Is(err, game.ErrNoBet),
		errors.Is(err, game.ErrInsufficientBalance):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusBadRequest
	}
}
