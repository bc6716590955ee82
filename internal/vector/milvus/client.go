package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/medassist/backend/pkg/logger"
)

// Client is the similarity-search collaborator backed by a Milvus
// collection of embedded reference passages.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// PassageChunk is one embedded slice of a reference document as stored in
// the collection.
type PassageChunk struct {
	ID          string
	Embedding   []float32
	Content     string
	Title       string
	Authors     string
	Journal     string
	Year        string
	SpecialtyID string
	SourceURL   string
	Timestamp   time.Time
}

// SearchResult is one similarity hit. Score is cosine similarity in [0,1];
// embeddings are stored normalized and searched with the IP metric.
type SearchResult struct {
	ChunkID     string
	Content     string
	Title       string
	Authors     string
	Journal     string
	Year        string
	SpecialtyID string
	SourceURL   string
	Score       float32
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Medical reference passage embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "authors",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "journal",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "year",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8",
				},
			},
			{
				Name:     "specialty_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "source_url",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, chunks []PassageChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	contents := make([]string, len(chunks))
	titles := make([]string, len(chunks))
	authors := make([]string, len(chunks))
	journals := make([]string, len(chunks))
	years := make([]string, len(chunks))
	specialties := make([]string, len(chunks))
	sourceURLs := make([]string, len(chunks))
	timestamps := make([]int64, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		contents[i] = chunk.Content
		titles[i] = chunk.Title
		authors[i] = chunk.Authors
		journals[i] = chunk.Journal
		years[i] = chunk.Year
		specialties[i] = chunk.SpecialtyID
		sourceURLs[i] = chunk.SourceURL
		timestamps[i] = chunk.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("authors", authors),
		entity.NewColumnVarChar("journal", journals),
		entity.NewColumnVarChar("year", years),
		entity.NewColumnVarChar("specialty_id", specialties),
		entity.NewColumnVarChar("source_url", sourceURLs),
		entity.NewColumnInt64("timestamp", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector store", zap.Int("count", len(chunks)))

	return nil
}

// Search runs a similarity query. An empty specialtyID means no filter.
// Hits scoring below threshold are dropped before returning.
func (m *Client) Search(ctx context.Context, queryEmbedding []float32, threshold float64, limit int, specialtyID string) ([]SearchResult, error) {
	if len(queryEmbedding) != m.vectorDim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, collection expects %d", len(queryEmbedding), m.vectorDim)
	}

	expr := ""
	if specialtyID != "" {
		expr = fmt.Sprintf(`specialty_id == "%s"`, specialtyID)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "content", "title", "authors", "journal", "year", "specialty_id", "source_url"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.IP,
		limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			if float64(sr.Scores[i]) < threshold {
				continue
			}

			chunkID, _ := sr.Fields.GetColumn("chunk_id").Get(i)
			content, _ := sr.Fields.GetColumn("content").Get(i)
			title, _ := sr.Fields.GetColumn("title").Get(i)
			author, _ := sr.Fields.GetColumn("authors").Get(i)
			journal, _ := sr.Fields.GetColumn("journal").Get(i)
			year, _ := sr.Fields.GetColumn("year").Get(i)
			specialty, _ := sr.Fields.GetColumn("specialty_id").Get(i)
			sourceURL, _ := sr.Fields.GetColumn("source_url").Get(i)

			results = append(results, SearchResult{
				ChunkID:     chunkID.(string),
				Content:     content.(string),
				Title:       title.(string),
				Authors:     author.(string),
				Journal:     journal.(string),
				Year:        year.(string),
				SpecialtyID: specialty.(string),
				SourceURL:   sourceURL.(string),
				Score:       sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("limit", limit),
		zap.Float64("threshold", threshold),
		zap.Int("results", len(results)),
		zap.String("filter", expr),
	)

	return results, nil
}
