package models

import "time"

// Specialty is a domain filter narrowing retrieval and carrying the
// instruction text injected into composed prompts.
type Specialty struct {
	ID         string
	Name       string
	PromptText string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Citation is a persisted, structured citation extracted from a generated
// answer. A message holds at most one citation per reference number.
type Citation struct {
	ID              string
	MessageID       string
	ReferenceNumber int
	Title           string
	Authors         string
	Journal         string
	Year            string
	DOI             string
	URL             string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Document struct {
	ID          string
	URL         string
	Title       string
	SpecialtyID string
	Journal     string
	Year        string
	Summary     string
	RawContent  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type DocumentChunk struct {
	ID          string
	DocID       string
	ChunkIndex  int
	Text        string
	EmbeddingID string
	CreatedAt   time.Time
}

type QueryRecord struct {
	ID             string
	UserID         string
	SpecialtyID    string
	QueryText      string
	Response       string
	PassagesUsed   int
	CitationsFound int
	LatencyMS      int
	CreatedAt      time.Time
}
