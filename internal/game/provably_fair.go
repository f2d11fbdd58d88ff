package game

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
)

const (
	MIN_MULTIPLIER = 1.00
	MAX_MULTIPLIER = 100.00
	HOUSE_EDGE     = 0.01 // 1% instant crash
)

// GenerateCrashPoint derives the crash multiplier for a round from its seed
// and round ID. Same inputs always produce the same output, so any player can
// re-derive the crash point once the seed is revealed after the round.
//
// The first 8 hex characters of SHA-256(seed + roundID) are read as a uint32
// and normalized to r in [0, 1]. r below the house edge crashes instantly at
// 1.00x; otherwise the multiplier follows 1/(1-r), floored to two decimals
// and capped at 100x, which clusters crash points near 1x with a thin tail.
func GenerateCrashPoint(seed, roundID string) float64 {
	sum := sha256.Sum256([]byte(seed + roundID))
	hashHex := hex.EncodeToString(sum[:])

	n, _ := strconv.ParseUint(hashHex[:8], 16, 64)
	r := float64(n) / float64(0xffffffff)

	if r < HOUSE_EDGE {
		return MIN_MULTIPLIER
	}

	crashPoint := math.Floor((1/(1-r))*100) / 100
	if math.IsInf(crashPoint, 1) || math.IsNaN(crashPoint) || crashPoint > MAX_MULTIPLIER {
		return MAX_MULTIPLIER
	}
	if crashPoint < MIN_MULTIPLIER {
		return MIN_MULTIPLIER
	}
	return crashPoint
}

// VerifyCrashPoint allows players to check a revealed round for fairness.
func VerifyCrashPoint(seed, roundID string, claimed float64) bool {
	derived := GenerateCrashPoint(seed, roundID)
	diff := derived - claimed
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.01
}

// GenerateSeed creates a cryptographically secure random round seed.
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
