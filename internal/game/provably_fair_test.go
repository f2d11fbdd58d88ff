package game

import (
	"crypto/rand"
	"encoding/hex"
	"testing"
)

func TestGenerateCrashPoint_Deterministic(t *testing.T) {
	tests := []struct {
		name    string
		seed    string
		roundID string
	}{
		{name: "Scenario seed abc", seed: "abc", roundID: "1"},
		{name: "Hex seed", seed: "deadbeefdeadbeefdeadbeefdeadbeef", roundID: "round-42"},
		{name: "Uuid style", seed: "c7f9a6f2-8f1e-4c3a-9d2b-1a2b3c4d5e6f", roundID: "c0ffee00-1111-2222-3333-444455556666"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := GenerateCrashPoint(tt.seed, tt.roundID)
			for i := 0; i < 10; i++ {
				if got := GenerateCrashPoint(tt.seed, tt.roundID); got != first {
					t.Fatalf("GenerateCrashPoint() not deterministic: got %v, want %v", got, first)
				}
			}
			if first < MIN_MULTIPLIER || first > MAX_MULTIPLIER {
				t.Errorf("GenerateCrashPoint() = %v, want in [%v, %v]", first, MIN_MULTIPLIER, MAX_MULTIPLIER)
			}
		})
	}
}

func TestGenerateCrashPoint_DifferentInputs(t *testing.T) {
	a := GenerateCrashPoint("seed", "1")
	b := GenerateCrashPoint("seed", "2")
	c := GenerateCrashPoint("seed", "3")

	if a == b && b == c {
		t.Error("GenerateCrashPoint() produced identical values for different round ids (unlikely)")
	}
}

func TestGenerateCrashPoint_Distribution(t *testing.T) {
	const samples = 5000

	instant := 0
	highTail := 0

	for i := 0; i < samples; i++ {
		b := make([]byte, 16)
		rand.Read(b)
		cp := GenerateCrashPoint(hex.EncodeToString(b), "dist-test")

		if cp < MIN_MULTIPLIER || cp > MAX_MULTIPLIER {
			t.Fatalf("crash point %v out of range", cp)
		}
		if cp == MIN_MULTIPLIER {
			instant++
		}
		if cp > 10 {
			highTail++
		}
	}

	// House edge gives ~1% instant crashes.
	instantFrac := float64(instant) / samples
	if instantFrac < 0.003 || instantFrac > 0.025 {
		t.Errorf("instant crash fraction = %v, want around 0.01", instantFrac)
	}

	// Survival past 10x is ~10% under 1/(1-r).
	tailFrac := float64(highTail) / samples
	if tailFrac > 0.15 {
		t.Errorf("crash points above 10x fraction = %v, want small", tailFrac)
	}
}

func TestVerifyCrashPoint(t *testing.T) {
	seed := GenerateSeed()
	roundID := "verify-round"
	cp := GenerateCrashPoint(seed, roundID)

	if !VerifyCrashPoint(seed, roundID, cp) {
		t.Error("VerifyCrashPoint() rejected the derived crash point")
	}
	if VerifyCrashPoint(seed, roundID, cp+1.5) {
		t.Error("VerifyCrashPoint() accepted a forged crash point")
	}
}

func TestGenerateSeed(t *testing.T) {
	seed1 := GenerateSeed()
	seed2 := GenerateSeed()

	if seed1 == seed2 {
		t.Error("GenerateSeed() produced duplicate seeds")
	}
	if len(seed1) != 64 { // 32 bytes = 64 hex characters
		t.Errorf("GenerateSeed() length = %v, want 64", len(seed1))
	}
}
