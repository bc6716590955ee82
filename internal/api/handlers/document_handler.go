package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/medassist/backend/internal/ingestion"
	"github.com/medassist/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
}

func NewDocumentHandler(processor *ingestion.Processor) *DocumentHandler {
	return &DocumentHandler{processor: processor}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		URL         string `json:"url"`
		HTMLContent string `json:"html_content"`
		Title       string `json:"title"`
		Authors     string `json:"authors"`
		Journal     string `json:"journal"`
		Year        string `json:"year"`
		SpecialtyID string `json:"specialty_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.URL == "" || req.HTMLContent == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "URL and HTML content are required",
		})
	}

	err := h.processor.ProcessDocument(c.Context(), ingestion.Request{
		URL:         req.URL,
		HTMLContent: req.HTMLContent,
		Title:       req.Title,
		Authors:     req.Authors,
		Journal:     req.Journal,
		Year:        req.Year,
		SpecialtyID: req.SpecialtyID,
	})
	if err != nil {
		logger.Error("Failed to process document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Document processed successfully",
		"url":     req.URL,
	})
}
