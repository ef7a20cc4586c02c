package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	ws "github.com/openhire/interview-engine/websocket"
)

// turnTimeout bounds one turn's worth of database and generator work.
const turnTimeout = 60 * time.Second

// WebSocketHandler bridges live interview connections to the conductor. Each
// inbound message is one turn; the reply goes back on the same connection.
type WebSocketHandler struct {
	conductor *Conductor
}

func NewWebSocketHandler(conductor *Conductor) *WebSocketHandler {
	return &WebSocketHandler{conductor: conductor}
}

func (h *WebSocketHandler) HandleWebSocketMessage(client *ws.Client, messageBytes []byte) {
	var msg ws.Message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		slog.Error("Failed to parse websocket message", "error", err, "session_id", client.SessionID)
		client.SendMessage(ws.Message{Type: ws.TypeError, Content: "invalid message"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	switch msg.Type {
	case ws.TypeAnswer:
		h.advance(ctx, client, msg.Content, false)
	case ws.TypeEnd:
		h.advance(ctx, client, "", true)
	case ws.TypeAbandon:
		reason := msg.Reason
		if reason == "" {
			reason = "candidate disconnected"
		}
		if err := h.conductor.Abandon(ctx, client.SessionID, reason); err != nil {
			slog.Error("Failed to abandon session", "error", err, "session_id", client.SessionID)
			client.SendMessage(ws.Message{Type: ws.TypeError, Content: "failed to abandon interview"})
			return
		}
		client.SendMessage(ws.Message{Type: ws.TypeFinished, Content: "Interview abandoned.", Reason: reason})
	default:
		slog.Warn("Unknown websocket message type", "type", msg.Type, "session_id", client.SessionID)
		client.SendMessage(ws.Message{Type: ws.TypeError, Content: "unknown message type"})
	}
}

func (h *WebSocketHandler) advance(ctx context.Context, client *ws.Client, input string, end bool) {
	result, err := h.conductor.Continue(ctx, client.SessionID, input, end)
	if err != nil {
		slog.Error("Failed to advance interview over websocket", "error", err, "session_id", client.SessionID)
		client.SendMessage(ws.Message{Type: ws.TypeError, Content: "failed to advance interview"})
		return
	}

	if result.Done {
		client.SendMessage(ws.Message{Type: ws.TypeFinished, Content: result.Message, Reason: result.Reason})
		return
	}
	if result.Question != nil {
		client.SendMessage(ws.Message{Type: ws.TypeQuestion, Content: result.Question.Text})
		return
	}
	client.SendMessage(ws.Message{Type: ws.TypeError, Content: "no question available", Reason: result.Reason})
}
