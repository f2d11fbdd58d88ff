package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"crash/internal/game"
)

type stubStore struct{}

func (stubStore) Debit(ctx context.Context, playerID, cryptoType string, amount, usdAmount, priceAtTime float64) error {
	return nil
}

func (stubStore) Credit(ctx context.Context, playerID, cryptoType string, amount, usdAmount, priceAtTime float64) error {
	return nil
}

func (stubStore) RecordRoundHistory(ctx context.Context, rec *game.Record) error { return nil }

type stubOracle struct{}

func (stubOracle) GetPrice(ctx context.Context, cryptoType string) (float64, error) {
	return 50000, nil
}

// newTestServer wires a FiberServer with stub collaborators. The engine is
// deliberately not started, so the round stays in the idle phase.
func newTestServer() *FiberServer {
	hub := game.NewHub()
	engine := game.NewEngine(stubStore{}, stubOracle{}, hub, nil, game.Config{})

	s := &FiberServer{
		App:    fiber.New(),
		engine: engine,
		hub:    hub,
	}

	api := s.App.Group("/api/v1")
	api.Get("/game/state", s.gameStateHandler)
	api.Post("/game/bet", s.placeBetHandler)
	api.Post("/game/cashout", s.cashoutHandler)
	api.Get("/game/verify", s.verifyHandler)

	return s
}

func TestGameStateHandler(t *testing.T) {
	s := newTestServer()

	req, err := http.NewRequest("GET", "/api/v1/game/state", nil)
	if err != nil {
		t.Fatalf("could not create request: %v", err)
	}

	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status OK; got %v", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read response body: %v", err)
	}

	var snap game.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("could not unmarshal response: %v", err)
	}

	if snap.Phase != game.PhaseIdle {
		t.Errorf("expected phase %q; got %q", game.PhaseIdle, snap.Phase)
	}
	if snap.Multiplier != 1.00 {
		t.Errorf("expected multiplier 1.00; got %v", snap.Multiplier)
	}
}

func TestPlaceBetHandler_Validation(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing player id", `{"usd_amount": 10, "crypto_type": "BTC"}`, http.StatusBadRequest},
		{"invalid body", `not json`, http.StatusBadRequest},
		{"no betting window open", `{"player_id": "alice", "usd_amount": 10, "crypto_type": "BTC"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest("POST", "/api/v1/game/bet", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("could not create request: %v", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.App.Test(req)
			if err != nil {
				t.Fatalf("could not perform request: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d; got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestCashoutHandler_NoRunningRound(t *testing.T) {
	s := newTestServer()

	body := bytes.NewBufferString(`{"player_id": "alice"}`)
	req, err := http.NewRequest("POST", "/api/v1/game/cashout", body)
	if err != nil {
		t.Fatalf("could not create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status %d; got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestVerifyHandler(t *testing.T) {
	s := newTestServer()

	seed := "abc"
	roundID := "1"
	want := game.GenerateCrashPoint(seed, roundID)

	req, err := http.NewRequest("GET", "/api/v1/game/verify?seed="+seed+"&round_id="+roundID, nil)
	if err != nil {
		t.Fatalf("could not create request: %v", err)
	}

	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status OK; got %v", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read response body: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("could not unmarshal response: %v", err)
	}

	if got := result["crash_point"].(float64); got != want {
		t.Errorf("expected crash_point %v; got %v", want, got)
	}

	// A matching claimed crash point verifies as valid.
	req, _ = http.NewRequest("GET", "/api/v1/game/verify?seed=abc&round_id=1&crash_point=1.01", nil)
	resp, err = s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("could not unmarshal response: %v", err)
	}
	if _, ok := result["valid"]; !ok {
		t.Errorf("expected valid field in response")
	}
}

func TestVerifyHandler_MissingParams(t *testing.T) {
	s := newTestServer()

	req, err := http.NewRequest("GET", "/api/v1/game/verify?seed=abc", nil)
	if err != nil {
		t.Fatalf("could not create request: %v", err)
	}

	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status %d; got %d", http.StatusBadRequest, resp.StatusCode)
	}
}
