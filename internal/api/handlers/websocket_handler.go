package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/isdelr/ender-watch/internal/services"
	ws "github.com/isdelr/ender-watch/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles upgrading HTTP connections to WebSocket connections.
type WebSocketHandler struct {
	hub                *ws.Hub
	analysisService    services.AnalysisServiceProvider
	defaultWindowHours int
	upgrader           websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. allowedOrigin is the
// dashboard origin accepted besides same-host requests.
func NewWebSocketHandler(hub *ws.Hub, analysisService services.AnalysisServiceProvider, defaultWindowHours int, allowedOrigin string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:                hub,
		analysisService:    analysisService,
		defaultWindowHours: defaultWindowHours,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin || origin == "http://"+r.Host
			},
		},
	}
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn)
	if !h.hub.Join(client) {
		conn.Close()
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		client.WritePump()
	}()
	go func() {
		defer wg.Done()
		client.ReadPump(h.handleIncomingWSMessage)
	}()

	// Cleanup on disconnect.
	go func() {
		wg.Wait()
		h.hub.Leave(client)
	}()
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Error().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		client.Reply(ws.NewErrorMessage("Malformed message"))
		return
	}

	switch msg.Action {
	case ws.ActionRunAnalysis:
		window := h.defaultWindowHours
		if payload, ok := msg.Payload.(map[string]interface{}); ok {
			if v, ok := payload["window_hours"].(float64); ok && v >= 0 {
				window = int(v)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		report := h.analysisService.Run(ctx, window)
		reply, err := ws.NewReportMessage(report)
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode analysis report")
			client.Reply(ws.NewErrorMessage("Failed to encode report"))
			return
		}
		client.Reply(reply)

	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		client.Reply(ws.NewErrorMessage("Unknown action: " + msg.Action))
	}
}
