package game

import (
	"errors"
	"testing"
)

func pendingBetFor(playerID string) *Bet {
	return &Bet{
		PlayerID:     playerID,
		UsdAmount:    10,
		CryptoAmount: 0.0002,
		CryptoType:   "BTC",
		PriceAtTime:  50000,
	}
}

func TestRound_AddBet(t *testing.T) {
	r := newRound("r1", "seed")

	if err := r.addBet(pendingBetFor("p1")); err != nil {
		t.Fatalf("addBet() error = %v", err)
	}
	if r.bets["p1"].Status != BetPending {
		t.Errorf("bet status = %v, want pending", r.bets["p1"].Status)
	}

	if err := r.addBet(pendingBetFor("p1")); !errors.Is(err, ErrDuplicateBet) {
		t.Errorf("second addBet() error = %v, want ErrDuplicateBet", err)
	}

	r.Phase = PhaseRunning
	if err := r.addBet(pendingBetFor("p2")); !errors.Is(err, ErrPhase) {
		t.Errorf("addBet() while running error = %v, want ErrPhase", err)
	}
}

func TestRound_RemoveBet(t *testing.T) {
	r := newRound("r1", "seed")
	r.addBet(pendingBetFor("p1"))
	r.addBet(pendingBetFor("p2"))

	r.removeBet("p1")
	if _, ok := r.bets["p1"]; ok {
		t.Error("removeBet() left the bet in place")
	}
	if len(r.betOrder) != 1 || r.betOrder[0] != "p2" {
		t.Errorf("betOrder = %v, want [p2]", r.betOrder)
	}

	// A settled bet must not be removable.
	m := 2.0
	r.bets["p2"].Status = BetWon
	r.bets["p2"].MultiplierAtCashout = &m
	r.removeBet("p2")
	if _, ok := r.bets["p2"]; !ok {
		t.Error("removeBet() removed a won bet")
	}
}

func TestRound_SettlePending(t *testing.T) {
	r := newRound("r1", "seed")
	for _, id := range []string{"p1", "p2", "p3"} {
		r.addBet(pendingBetFor(id))
		r.confirmBet(id)
	}

	m := 1.8
	r.bets["p2"].Status = BetWon
	r.bets["p2"].MultiplierAtCashout = &m

	lost := r.settlePending()
	if len(lost) != 2 {
		t.Fatalf("settlePending() returned %d bets, want 2", len(lost))
	}
	for _, id := range []string{"p1", "p3"} {
		bet := r.bets[id]
		if bet.Status != BetLost {
			t.Errorf("bet %s status = %v, want lost", id, bet.Status)
		}
		if bet.MultiplierAtCashout != nil {
			t.Errorf("bet %s kept a cashout multiplier after losing", id)
		}
	}
	if r.bets["p2"].Status != BetWon {
		t.Error("settlePending() touched a won bet")
	}

	// After settlement nothing is pending; a second pass settles nothing.
	if again := r.settlePending(); len(again) != 0 {
		t.Errorf("second settlePending() returned %d bets, want 0", len(again))
	}
}

func TestRound_Record(t *testing.T) {
	r := newRound("r1", "secret-seed")
	r.CrashPoint = 1.5
	for _, id := range []string{"p1", "p2"} {
		r.addBet(pendingBetFor(id))
		r.confirmBet(id)
	}
	r.settlePending()

	rec := r.record()
	if rec.RoundID != "r1" || rec.Seed != "secret-seed" || rec.CrashPoint != 1.5 {
		t.Errorf("record() header = %+v", rec)
	}
	if len(rec.Bets) != 2 {
		t.Fatalf("record() has %d bets, want 2", len(rec.Bets))
	}
	// Placement order is preserved.
	if rec.Bets[0].PlayerID != "p1" || rec.Bets[1].PlayerID != "p2" {
		t.Errorf("record() order = %s, %s", rec.Bets[0].PlayerID, rec.Bets[1].PlayerID)
	}

	// The record is a copy; mutating the live round must not change it.
	r.bets["p1"].Status = BetPending
	if rec.Bets[0].Status != BetLost {
		t.Error("record() shares state with the live round")
	}
}

func TestRound_UnstakedBetNeverSettles(t *testing.T) {
	r := newRound("r1", "seed")
	r.addBet(pendingBetFor("p1")) // debit never committed

	// Not eligible for cashout.
	if _, err := r.pendingBet("p1"); !errors.Is(err, ErrNoBet) {
		t.Errorf("pendingBet() on unstaked bet error = %v, want ErrNoBet", err)
	}

	// Crash settlement passes it over and history excludes it.
	r.Phase = PhaseCrashed
	if lost := r.settlePending(); len(lost) != 0 {
		t.Errorf("settlePending() settled %d unstaked bets, want 0", len(lost))
	}
	if bet := r.bets["p1"]; bet.Status != BetPending {
		t.Errorf("unstaked bet status = %v, want pending", bet.Status)
	}
	if rec := r.record(); len(rec.Bets) != 0 {
		t.Errorf("record() kept %d unstaked bets, want 0", len(rec.Bets))
	}

	// A debit landing after the crash cannot be confirmed anymore.
	if r.confirmBet("p1") {
		t.Error("confirmBet() accepted a stake after the crash")
	}
}
