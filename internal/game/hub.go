package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const clientWriteDeadline = 10 * time.Second

// Client is one websocket subscriber. All writes to the conn go through
// writeRaw so hub broadcasts and per-request acks never interleave on the
// wire.
type Client struct {
	conn     *websocket.Conn
	playerID string
	writeMu  sync.Mutex
}

func (c *Client) writeRaw(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(clientWriteDeadline))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[WS] write to %s failed: %v", c.playerID, err)
	}
}

// Send delivers a single payload to this client only.
func (c *Client) Send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WS] marshal for %s failed: %v", c.playerID, err)
		return
	}
	c.writeRaw(data)
}

// SendSnapshot brings a fresh connection up to speed with the shared round
// before it starts seeing live events.
func (c *Client) SendSnapshot(snap Snapshot) {
	c.Send(InitialStateEvent{Type: EventInitialState, Data: snap})
}

// Hub fans round events out to every connected client. Delivery is
// fire-and-forget, at most once; a client that missed ticks re-syncs from
// the snapshot on reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	events chan interface{}
	joins  chan *Client
	leaves chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		events:  make(chan interface{}, 100),
		joins:   make(chan *Client),
		leaves:  make(chan *Client),
	}
}

// Run owns the client set. Join/leave bookkeeping and event fan-out are
// serialized here; everything else only reads through the RWMutex.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.joins:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] %s joined (%d online)", c.playerID, n)

		case c := <-h.leaves:
			h.mu.Lock()
			_, known := h.clients[c]
			if known {
				delete(h.clients, c)
			}
			n := len(h.clients)
			h.mu.Unlock()
			if known {
				c.conn.Close()
				log.Printf("[WS] %s left (%d online)", c.playerID, n)
			}

		case ev := <-h.events:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) fanOut(ev interface{}) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[WS] marshal broadcast failed: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		go c.writeRaw(data)
	}
}

// Broadcast queues an event for delivery. When the queue is full the event
// is dropped rather than blocking the round loop.
func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.events <- message:
	default:
		log.Println("[WS] event queue full, dropping broadcast")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, playerID string) *Client {
	c := &Client{conn: conn, playerID: playerID}
	h.joins <- c
	return c
}

// UnregisterClient detaches whichever client owns the conn. The read loop
// only has the conn in hand when it errors out, hence the lookup.
func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.RLock()
	var found *Client
	for c := range h.clients {
		if c.conn == conn {
			found = c
			break
		}
	}
	h.mu.RUnlock()

	if found != nil {
		h.leaves <- found
	}
}
