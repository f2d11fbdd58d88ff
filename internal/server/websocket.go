package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/contrib/websocket"

	"crash/internal/game"
)

type wsClientMessage struct {
	Type        string  `json:"type"`
	UsdAmount   float64 `json:"usd_amount"`
	CryptoType  string  `json:"crypto_type"`
	AutoCashout float64 `json:"auto_cashout"`
}

// gameWebSocketHandler serves the real-time channel: snapshot on connect,
// live round events via the hub, and inbound place_bet/cashout commands.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	playerID := conn.Query("player_id", "anonymous")

	log.Printf("[WS] New connection from player: %s", playerID)

	client := s.hub.RegisterClient(conn, playerID)
	client.SendSnapshot(s.engine.Snapshot())

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for player %s: %v", playerID, err)
			s.hub.UnregisterClient(conn)
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg wsClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "place_bet":
			receipt, err := s.engine.PlaceBet(context.Background(), game.BetRequest{
				PlayerID:    playerID,
				UsdAmount:   msg.UsdAmount,
				CryptoType:  msg.CryptoType,
				AutoCashout: msg.AutoCashout,
			})
			if err != nil {
				client.Send(game.BetErrorEvent{Type: game.EventBetError, Reason: err.Error()})
				continue
			}
			client.Send(game.BetAcceptedEvent{
				Type:         game.EventBetAccepted,
				RoundID:      receipt.RoundID,
				CryptoAmount: receipt.CryptoAmount,
				Price:        receipt.Price,
			})

		case "cashout":
			receipt, err := s.engine.CashOut(context.Background(), playerID)
			if err != nil {
				reason := err.Error()
				if errors.Is(err, game.ErrNoBet) {
					reason = "Already cashed out or no bet."
				}
				client.Send(game.CashoutErrorEvent{Type: game.EventCashoutError, Reason: reason})
				continue
			}
			client.Send(game.PlayerCashoutEvent{
				Type:       game.EventPlayerCashout,
				RoundID:    receipt.RoundID,
				PlayerID:   playerID,
				Multiplier: receipt.Multiplier,
				Payout:     receipt.Payout,
				Crypto:     receipt.Crypto,
			})

		case "ping":
			client.Send(map[string]string{"type": "pong"})
		}
	}
}
