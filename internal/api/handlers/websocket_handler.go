package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/medassist/backend/internal/query"
	"github.com/medassist/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *query.Engine
}

func NewWebSocketHandler(engine *query.Engine) *WebSocketHandler {
	return &WebSocketHandler{engine: engine}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type        string `json:"type"`
			Content     string `json:"content"`
			UserID      string `json:"user_id"`
			SpecialtyID string `json:"specialty_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		logger.Info("Processing WebSocket query", zap.String("specialty_id", msg.SpecialtyID))

		err = h.streamResponse(c, msg.Content, msg.UserID, msg.SpecialtyID)
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

// streamResponse forwards generation chunks as they arrive, then closes
// the turn with a complete frame carrying the message id and its parsed
// citations.
func (h *WebSocketHandler) streamResponse(c *websocket.Conn, queryText, userID, specialtyID string) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Processing query...")

	response, err := h.engine.ProcessStream(ctx, query.Request{
		Query:       queryText,
		UserID:      userID,
		SpecialtyID: specialtyID,
	}, func(chunk string) error {
		return h.sendChunk(c, "chunk", chunk)
	})
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"message_id": response.MessageID,
		"citations":  response.Citations,
		"passages":   response.Passages,
		"latency_ms": response.LatencyMS,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
