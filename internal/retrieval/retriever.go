package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medassist/backend/internal/metrics"
	"github.com/medassist/backend/internal/vector/milvus"
	"github.com/medassist/backend/pkg/logger"
	"github.com/medassist/backend/pkg/utils"
)

const (
	DefaultThreshold = 0.7
	DefaultLimit     = 5

	embeddingCacheTTL = 24 * time.Hour
)

// PassageMetadata carries the structured citation fields attached to a
// stored passage, plus a catch-all for anything else the store returns.
type PassageMetadata struct {
	Title     string
	Authors   string
	Journal   string
	Year      string
	SourceURL string
	Extra     map[string]string
}

// Passage is one similarity hit mapped into the pipeline's domain. It is
// never mutated after creation; the ranker wraps it instead.
type Passage struct {
	ID         string
	Content    string
	Metadata   PassageMetadata
	Similarity float64
}

// Request is a single retrieval query. Zero-valued Threshold and Limit
// fall back to the retriever defaults.
type Request struct {
	Query       string
	SpecialtyID string
	Threshold   float64
	Limit       int
}

// Embedder is the embedding service collaborator.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the similarity-search collaborator. An empty specialtyID
// means no specialty restriction.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, threshold float64, limit int, specialtyID string) ([]milvus.SearchResult, error)
}

// EmbeddingCache memoizes query embeddings keyed by text hash. Optional.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Retriever struct {
	embedder     Embedder
	searcher     Searcher
	cache        EmbeddingCache
	embeddingDim int
}

// NewRetriever wires the retrieval stage. cache may be nil. embeddingDim
// is the pipeline-wide vector dimension; embedding responses of any other
// length are rejected as malformed.
func NewRetriever(embedder Embedder, searcher Searcher, cache EmbeddingCache, embeddingDim int) *Retriever {
	return &Retriever{
		embedder:     embedder,
		searcher:     searcher,
		cache:        cache,
		embeddingDim: embeddingDim,
	}
}

// Retrieve embeds the query and runs a filtered similarity search. Errors
// are typed (ValidationError, EmbeddingError, RetrievalError) so the caller
// can log and proceed with an empty passage list.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]Passage, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, &ValidationError{Reason: "query text is empty"}
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}

	embedding, err := r.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	hits, err := r.searcher.Search(ctx, embedding, threshold, limit, req.SpecialtyID)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	passages := make([]Passage, 0, len(hits))
	for _, hit := range hits {
		passages = append(passages, Passage{
			ID:      hit.ChunkID,
			Content: hit.Content,
			Metadata: PassageMetadata{
				Title:     hit.Title,
				Authors:   hit.Authors,
				Journal:   hit.Journal,
				Year:      hit.Year,
				SourceURL: hit.SourceURL,
			},
			Similarity: float64(hit.Score),
		})
	}

	logger.Debug("Passages retrieved",
		zap.Int("count", len(passages)),
		zap.Float64("threshold", threshold),
		zap.String("specialty_id", req.SpecialtyID),
	)

	return passages, nil
}

// Available probes the retrieval path with a minimal query. An empty result
// set is healthy; only a failed call reports unavailability.
func (r *Retriever) Available(ctx context.Context) bool {
	_, err := r.Retrieve(ctx, Request{Query: "availability probe", Limit: 1})
	if err != nil {
		logger.Warn("Retrieval availability probe failed", zap.Error(err))
		return false
	}
	return true
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	textHash := utils.HashString(query)

	if r.cache != nil {
		if cached, ok, err := r.cache.GetEmbedding(ctx, textHash); err == nil && ok {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return cached, nil
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
	}

	embedding, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if len(embedding) == 0 {
		return nil, &EmbeddingError{Err: errEmptyEmbedding}
	}
	if r.embeddingDim > 0 && len(embedding) != r.embeddingDim {
		return nil, &EmbeddingError{Err: errDimensionMismatch(len(embedding), r.embeddingDim)}
	}

	if r.cache != nil {
		if err := r.cache.SetEmbedding(ctx, textHash, embedding, embeddingCacheTTL); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}

	return embedding, nil
}
