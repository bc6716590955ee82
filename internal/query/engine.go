package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medassist/backend/internal/citations"
	"github.com/medassist/backend/internal/llm"
	"github.com/medassist/backend/internal/metrics"
	"github.com/medassist/backend/internal/prompt"
	"github.com/medassist/backend/internal/ranking"
	"github.com/medassist/backend/internal/retrieval"
	"github.com/medassist/backend/internal/storage/models"
	"github.com/medassist/backend/internal/storage/sqlite"
	"github.com/medassist/backend/internal/terms"
	"github.com/medassist/backend/pkg/logger"
)

// Engine runs one user turn end to end: term extraction, retrieval,
// ranking, prompt composition, generation, then citation extraction and
// persistence. The chain is strictly sequential.
type Engine struct {
	db        *sqlite.Client
	extractor *terms.Extractor
	retriever *retrieval.Retriever
	ranker    *ranking.Ranker
	composer  *prompt.Composer
	llmClient *llm.Client
	parser    *citations.Parser
	persister *citations.Persister
}

type Request struct {
	Query       string
	UserID      string
	SpecialtyID string
	Threshold   float64
	Limit       int
}

type Response struct {
	MessageID string
	Query     string
	Response  string
	Passages  int
	Citations []models.Citation
	LatencyMS int
}

func NewEngine(
	db *sqlite.Client,
	extractor *terms.Extractor,
	retriever *retrieval.Retriever,
	ranker *ranking.Ranker,
	composer *prompt.Composer,
	llmClient *llm.Client,
	parser *citations.Parser,
	persister *citations.Persister,
) *Engine {
	return &Engine{
		db:        db,
		extractor: extractor,
		retriever: retriever,
		ranker:    ranker,
		composer:  composer,
		llmClient: llmClient,
		parser:    parser,
		persister: persister,
	}
}

// Process answers one turn. A retrieval failure does not fail the turn:
// the assistant answers without augmentation and without citations.
func (e *Engine) Process(ctx context.Context, req Request) (*Response, error) {
	return e.process(ctx, req, nil)
}

// ProcessStream behaves like Process but forwards answer chunks to onChunk
// as they arrive from the generation service.
func (e *Engine) ProcessStream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	return e.process(ctx, req, onChunk)
}

func (e *Engine) process(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	startTime := time.Now()
	messageID := uuid.New().String()

	logger.Info("Processing query",
		zap.String("message_id", messageID),
		zap.String("specialty_id", req.SpecialtyID),
	)

	queryTerms := e.extractor.Extract(req.Query)
	logger.Debug("Terms extracted", zap.Strings("terms", queryTerms))

	ranked := e.retrieveAndRank(ctx, req)

	composed := e.composer.Compose(ctx, prompt.Input{
		SpecialtyID:        req.SpecialtyID,
		Passages:           ranked,
		IncludeUserContext: len(queryTerms) > 0,
	})

	answer, err := e.generate(ctx, composed.Text, req.Query, onChunk)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	extractions := e.parser.Parse(answer)
	metrics.CitationsParsed.Add(float64(len(extractions)))

	storedCitations := e.persister.PersistAll(ctx, messageID, extractions)
	metrics.CitationsPersisted.Add(float64(len(storedCitations)))

	latency := int(time.Since(startTime).Milliseconds())

	record := &models.QueryRecord{
		ID:             messageID,
		UserID:         req.UserID,
		SpecialtyID:    req.SpecialtyID,
		QueryText:      req.Query,
		Response:       answer,
		PassagesUsed:   len(ranked),
		CitationsFound: len(storedCitations),
		LatencyMS:      latency,
		CreatedAt:      time.Now(),
	}
	if err := e.db.InsertQueryRecord(record); err != nil {
		logger.Warn("Failed to record query", zap.Error(err))
	}

	metrics.QueryTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.Observe(time.Since(startTime).Seconds())

	logger.Info("Query processed",
		zap.String("message_id", messageID),
		zap.Int("passages", len(ranked)),
		zap.Int("citations", len(storedCitations)),
		zap.Int("latency_ms", latency),
	)

	return &Response{
		MessageID: messageID,
		Query:     req.Query,
		Response:  answer,
		Passages:  len(ranked),
		Citations: storedCitations,
		LatencyMS: latency,
	}, nil
}

// retrieveAndRank degrades to an empty passage list on any retrieval-stage
// error; typed retrieval errors never cross the turn boundary.
func (e *Engine) retrieveAndRank(ctx context.Context, req Request) []ranking.RankedPassage {
	passages, err := e.retriever.Retrieve(ctx, retrieval.Request{
		Query:       req.Query,
		SpecialtyID: req.SpecialtyID,
		Threshold:   req.Threshold,
		Limit:       req.Limit,
	})
	if err != nil {
		logger.Warn("Retrieval failed, answering without augmentation", zap.Error(err))
		metrics.RetrievalFailures.Inc()
		return nil
	}

	metrics.RetrievalResults.Observe(float64(len(passages)))

	return e.ranker.Rank(passages, req.Query)
}

func (e *Engine) generate(ctx context.Context, systemPrompt, userQuery string, onChunk func(string) error) (string, error) {
	if onChunk != nil {
		return e.llmClient.CompleteStream(ctx, llm.CompletionRequest{
			SystemPrompt: systemPrompt,
			UserPrompt:   userQuery,
		}, onChunk)
	}

	resp, err := e.llmClient.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userQuery,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GetHistory returns recent turns for a user.
func (e *Engine) GetHistory(userID string, limit int) ([]models.QueryRecord, error) {
	return e.db.GetQueryHistory(userID, limit)
}

// GetCitations returns the stored citations for a message.
func (e *Engine) GetCitations(ctx context.Context, messageID string) ([]models.Citation, error) {
	return e.db.GetCitationsByMessage(ctx, messageID)
}

// Available reports whether the retrieval path is reachable.
func (e *Engine) Available(ctx context.Context) bool {
	return e.retriever.Available(ctx)
}
