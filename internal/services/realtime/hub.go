package realtime

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/metrics"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
)

// Envelope is the wire frame pushed to observers.
type Envelope struct {
	Type string `json:"type"` // "update" | "alert" | "pumpState"
	Data any    `json:"data"`
}

type outbound struct {
	room    string // empty = every client
	payload []byte
}

type joinRequest struct {
	client *Client
	room   string
}

type catchUpRequest struct {
	client *Client
	since  time.Time
}

// Hub fans new readings and alert events out to connected observers and
// serves catch-up replay from the history cache. All deliveries flow
// through one goroutine, so per-device publish order is preserved for each
// observer and the hub is the only writer (and closer) of any client's
// Send channel. Delivery is at-most-once: a slow observer is dropped,
// never replayed outside the explicit catch-up path.
type Hub struct {
	history *History

	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	catchup    chan catchUpRequest
	broadcast  chan outbound
	done       chan struct{}

	logger *zap.Logger
}

func NewHub(history *History, logger *zap.Logger) *Hub {
	return &Hub{
		history:    history,
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		catchup:    make(chan catchUpRequest),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and deliveries until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.Send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			metrics.ObserversConnected.Inc()

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case req := <-h.join:
			if _, ok := h.clients[req.client]; !ok {
				continue
			}
			if h.rooms[req.room] == nil {
				h.rooms[req.room] = make(map[*Client]bool)
			}
			h.rooms[req.room][req.client] = true

		case req := <-h.catchup:
			h.replay(req.client, req.since)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg outbound) {
	targets := h.clients
	if msg.room != "" {
		targets = h.rooms[msg.room]
	}
	for c := range targets {
		select {
		case c.Send <- msg.payload:
		default:
			// observer cannot keep up; drop it rather than block the fan-out
			h.logger.Warn("dropping slow observer", zap.String("client", c.ID))
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	for _, members := range h.rooms {
		delete(members, c)
	}
	close(c.Send)
	metrics.ObserversConnected.Dec()
}

// Register adds an observer connection. A connection arriving after the
// hub has stopped is closed immediately so its write pump exits.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Send)
	}
}

// Unregister removes an observer connection.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Join subscribes an observer to a logical room (e.g. a user's alert room).
func (h *Hub) Join(c *Client, room string) {
	select {
	case h.join <- joinRequest{client: c, room: room}:
	case <-h.done:
	}
}

// Publish pushes a new reading into the recent-history cache and fans it
// out to every observer.
func (h *Hub) Publish(reading model.SensorReading) {
	h.history.Push(reading)
	h.emit("", Envelope{Type: "update", Data: reading})
	metrics.ReadingsBroadcast.Inc()
}

// PublishAlert delivers violations to the owning user's room only.
func (h *Hub) PublishAlert(userID string, evt model.AlertEvent) {
	h.emit(userRoom(userID), Envelope{Type: "alert", Data: evt})
}

// PublishPumpState pushes an actuator status change to every observer.
func (h *Hub) PublishPumpState(evt model.PumpStateChangedEvent) {
	h.emit("", Envelope{Type: "pumpState", Data: evt})
}

// CatchUp requests a replay of every cached reading newer than since for
// one observer, oldest first. The replay itself happens on the hub
// goroutine, never on the caller's, so it can never race a drop. An empty
// replay is a known gap, not an error.
func (h *Hub) CatchUp(c *Client, since time.Time) {
	select {
	case h.catchup <- catchUpRequest{client: c, since: since}:
	case <-h.done:
	}
}

// replay runs on the hub goroutine. A request for an observer that has
// already been dropped is ignored.
func (h *Hub) replay(c *Client, since time.Time) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for _, reading := range h.history.ReplayAllSince(since) {
		payload, err := json.Marshal(Envelope{Type: "update", Data: reading})
		if err != nil {
			continue
		}
		select {
		case c.Send <- payload:
		default:
			return // observer is saturated; it can ask again
		}
	}
}

func (h *Hub) emit(room string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal broadcast failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- outbound{room: room, payload: payload}:
	case <-h.done:
	}
}

func userRoom(userID string) string { return "user:" + userID }
