package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/medassist/backend/internal/query"
	"github.com/medassist/backend/pkg/logger"
)

type CitationHandler struct {
	engine *query.Engine
}

func NewCitationHandler(engine *query.Engine) *CitationHandler {
	return &CitationHandler{engine: engine}
}

// GetCitations lists the stored citations for a message, ordered by
// reference number.
func (h *CitationHandler) GetCitations(c *fiber.Ctx) error {
	messageID := c.Params("messageID")
	if messageID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message id is required",
		})
	}

	citations, err := h.engine.GetCitations(c.Context(), messageID)
	if err != nil {
		logger.Error("Failed to get citations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get citations",
		})
	}

	return c.JSON(fiber.Map{
		"message_id": messageID,
		"citations":  citations,
	})
}
