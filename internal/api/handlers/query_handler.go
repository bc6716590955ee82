package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/medassist/backend/internal/query"
	"github.com/medassist/backend/pkg/logger"
)

type QueryHandler struct {
	engine           *query.Engine
	defaultThreshold float64
	defaultLimit     int
}

// NewQueryHandler wires the HTTP surface for queries. defaultThreshold and
// defaultLimit apply when the request leaves them unset.
func NewQueryHandler(engine *query.Engine, defaultThreshold float64, defaultLimit int) *QueryHandler {
	return &QueryHandler{
		engine:           engine,
		defaultThreshold: defaultThreshold,
		defaultLimit:     defaultLimit,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query       string  `json:"query"`
		UserID      string  `json:"user_id"`
		SpecialtyID string  `json:"specialty_id"`
		Threshold   float64 `json:"threshold"`
		Limit       int     `json:"limit"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	if req.Threshold == 0 {
		req.Threshold = h.defaultThreshold
	}
	if req.Limit == 0 {
		req.Limit = h.defaultLimit
	}

	response, err := h.engine.Process(c.Context(), query.Request{
		Query:       req.Query,
		UserID:      req.UserID,
		SpecialtyID: req.SpecialtyID,
		Threshold:   req.Threshold,
		Limit:       req.Limit,
	})
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(fiber.Map{
		"message_id": response.MessageID,
		"query":      response.Query,
		"response":   response.Response,
		"passages":   response.Passages,
		"citations":  response.Citations,
		"latency_ms": response.LatencyMS,
	})
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)

	records, err := h.engine.GetHistory(userID, limit)
	if err != nil {
		logger.Error("Failed to get query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get query history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}
