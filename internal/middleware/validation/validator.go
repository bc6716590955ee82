// Package validation rejects malformed query and document submissions at
// the edge, before they reach the pipeline or the LLM.
package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	injectionPattern   = regexp.MustCompile(`(?i)(union\s+select|insert\s+into|drop\s+table|exec\s|<script|javascript:)`)
	specialtyIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

type Config struct {
	MaxQueryLength  int
	MaxDocumentSize int
	Logger          *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 5000
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = 10 * 1024 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		switch {
		case strings.HasSuffix(c.Path(), "/query"):
			return checkBody(c, cfg, checkQuery)
		case strings.HasSuffix(c.Path(), "/documents"):
			return checkBody(c, cfg, checkDocument)
		default:
			return c.Next()
		}
	}
}

type bodyCheck func(c *fiber.Ctx, cfg Config, body map[string]interface{}) (string, int)

func checkBody(c *fiber.Ctx, cfg Config, check bodyCheck) error {
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return reject(c, fiber.StatusBadRequest, "Invalid JSON format")
	}

	if msg, status := check(c, cfg, body); msg != "" {
		return reject(c, status, msg)
	}

	return c.Next()
}

func checkQuery(c *fiber.Ctx, cfg Config, body map[string]interface{}) (string, int) {
	query, ok := body["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "Query is required and must be a string", fiber.StatusBadRequest
	}
	if len(query) > cfg.MaxQueryLength {
		return "Query exceeds maximum length", fiber.StatusBadRequest
	}
	if injectionPattern.MatchString(query) {
		cfg.Logger.Warn("Suspicious query content", zap.String("ip", c.IP()))
		return "Invalid query content", fiber.StatusBadRequest
	}

	if specialtyID, ok := body["specialty_id"].(string); ok && specialtyID != "" {
		if !specialtyIDPattern.MatchString(specialtyID) {
			return "Invalid specialty id", fiber.StatusBadRequest
		}
	}

	return "", 0
}

func checkDocument(c *fiber.Ctx, cfg Config, body map[string]interface{}) (string, int) {
	rawURL, ok := body["url"].(string)
	if !ok || rawURL == "" {
		return "URL is required and must be a string", fiber.StatusBadRequest
	}
	if !validHTTPURL(rawURL) {
		return "Invalid URL format", fiber.StatusBadRequest
	}

	if content, ok := body["html_content"].(string); ok && len(content) > cfg.MaxDocumentSize {
		return "Document content exceeds maximum size", fiber.StatusRequestEntityTooLarge
	}

	return "", 0
}

func reject(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
