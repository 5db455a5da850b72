package websocket

import (
	"encoding/json"

	"github.com/isdelr/ender-watch/internal/models"
	"github.com/rs/zerolog/log"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for every client.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Messages addressed to a single client.
	direct chan directMessage

	done chan struct{}
}

type directMessage struct {
	client  *Client
	message []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 16),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		direct:     make(chan directMessage),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Close.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				h.deliver(client, message)
			}
		case dm := <-h.direct:
			if h.clients[dm.client] {
				h.deliver(dm.client, dm.message)
			}
		}
	}
}

// deliver queues message for client, dropping clients that are not keeping up.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		close(client.Send)
		delete(h.clients, client)
	}
}

// Join registers client unless the hub has been closed.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters client. It is a no-op once the hub has been closed.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// SendTo queues message for a single client if it is still registered.
func (h *Hub) SendTo(client *Client, message []byte) {
	if message == nil {
		return
	}
	select {
	case h.direct <- directMessage{client: client, message: message}:
	case <-h.done:
	}
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() {
	close(h.done)
}

// PublishReport broadcasts an analysis report to every connected client.
// Reports published after Close are dropped.
func (h *Hub) PublishReport(report models.Report) {
	msg, err := NewReportMessage(report)
	if err != nil {
		log.Error().Err(err).Str("report_id", report.ID).Msg("Failed to encode analysis report")
		return
	}
	select {
	case h.Broadcast <- msg:
	case <-h.done:
	}
}

// encode marshals a Message, logging on failure.
func encode(msg Message) []byte {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("action", msg.Action).Msg("Failed to encode websocket message")
		return nil
	}
	return b
}
