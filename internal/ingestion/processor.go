package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/medassist/backend/internal/llm"
	"github.com/medassist/backend/internal/metrics"
	"github.com/medassist/backend/internal/storage/models"
	"github.com/medassist/backend/internal/storage/sqlite"
	"github.com/medassist/backend/internal/vector/milvus"
	"github.com/medassist/backend/pkg/logger"
	"github.com/medassist/backend/pkg/utils"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Processor loads reference articles into the content store: HTML cleanup,
// chunking with overlap, batch embedding, then vector and relational
// inserts.
type Processor struct {
	db           *sqlite.Client
	vectorStore  *milvus.Client
	llmClient    *llm.Client
	chunkSize    int
	chunkOverlap int
}

// Request is one reference article to ingest. Journal, Year, and
// SpecialtyID become the citation metadata attached to every chunk.
type Request struct {
	URL         string
	HTMLContent string
	Title       string
	Authors     string
	Journal     string
	Year        string
	SpecialtyID string
}

func NewProcessor(db *sqlite.Client, vectorStore *milvus.Client, llmClient *llm.Client, chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}
	return &Processor{
		db:           db,
		vectorStore:  vectorStore,
		llmClient:    llmClient,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

func (p *Processor) ProcessDocument(ctx context.Context, req Request) error {
	logger.Info("Processing document", zap.String("url", req.URL))

	cleanedText := cleanHTML(req.HTMLContent)
	if cleanedText == "" {
		return fmt.Errorf("no content extracted from HTML")
	}

	title := req.Title
	if title == "" {
		title = extractTitle(req.HTMLContent)
	}

	summary, err := p.llmClient.SummarizeDocument(ctx, truncateForSummary(cleanedText))
	if err != nil {
		logger.Warn("Failed to summarize document", zap.Error(err))
		summary = "Summary unavailable"
	}

	docID := utils.HashString(req.URL)
	now := time.Now()

	doc := &models.Document{
		ID:          docID,
		URL:         req.URL,
		Title:       title,
		SpecialtyID: req.SpecialtyID,
		Journal:     req.Journal,
		Year:        req.Year,
		Summary:     summary,
		RawContent:  cleanedText,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.db.InsertDocument(doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	chunks := p.chunkText(cleanedText)
	logger.Info("Document chunked", zap.Int("chunks", len(chunks)))

	embeddings, err := p.llmClient.GenerateBatchEmbeddings(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	vectorChunks := make([]milvus.PassageChunk, 0, len(chunks))
	for i, chunkText := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", docID, i)

		vectorChunks = append(vectorChunks, milvus.PassageChunk{
			ID:          chunkID,
			Embedding:   embeddings[i],
			Content:     chunkText,
			Title:       title,
			Authors:     req.Authors,
			Journal:     req.Journal,
			Year:        req.Year,
			SpecialtyID: req.SpecialtyID,
			SourceURL:   req.URL,
			Timestamp:   now,
		})

		dbChunk := &models.DocumentChunk{
			ID:          chunkID,
			DocID:       docID,
			ChunkIndex:  i,
			Text:        chunkText,
			EmbeddingID: chunkID,
			CreatedAt:   now,
		}
		if err := p.db.InsertChunk(dbChunk); err != nil {
			logger.Warn("Failed to insert chunk row", zap.String("chunk_id", chunkID), zap.Error(err))
		}
	}

	if len(vectorChunks) > 0 {
		if err := p.vectorStore.Insert(ctx, vectorChunks); err != nil {
			return fmt.Errorf("failed to insert into vector store: %w", err)
		}
	}

	metrics.DocumentsProcessed.Inc()

	logger.Info("Document processed successfully",
		zap.String("url", req.URL),
		zap.Int("chunks", len(chunks)),
	)

	return nil
}

func (p *Processor) chunkText(text string) []string {
	var chunks []string
	step := p.chunkSize - p.chunkOverlap

	runes := []rune(text)
	for start := 0; start < len(runes); start += step {
		end := start + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func cleanHTML(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		logger.Warn("Failed to parse HTML", zap.Error(err))
		return ""
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func extractTitle(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "Untitled"
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return "Untitled"
}

func truncateForSummary(text string) string {
	const maxSummaryInput = 4000
	if len(text) <= maxSummaryInput {
		return text
	}
	return text[:maxSummaryInput]
}
