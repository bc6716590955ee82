package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/medassist/backend/internal/storage/models"
	"github.com/medassist/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS specialties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		prompt_text TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_specialties_name ON specialties(name);

	CREATE TABLE IF NOT EXISTS citations (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL,
		reference_number INTEGER NOT NULL,
		title TEXT NOT NULL,
		authors TEXT,
		journal TEXT,
		year TEXT,
		doi TEXT,
		url TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(message_id, reference_number)
	);
	CREATE INDEX IF NOT EXISTS idx_citations_message ON citations(message_id);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		url TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		specialty_id TEXT,
		journal TEXT,
		year TEXT,
		summary TEXT,
		raw_content TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_specialty ON documents(specialty_id);
	CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding_id TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(doc_id);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		specialty_id TEXT,
		query_text TEXT NOT NULL,
		response TEXT,
		passages_used INTEGER,
		citations_found INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_user ON query_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// FindCitation looks up the citation stored for a (message, reference number)
// pair. A missing row is reported as (nil, nil), not an error.
func (c *Client) FindCitation(ctx context.Context, messageID string, referenceNumber int) (*models.Citation, error) {
	query := `
		SELECT id, message_id, reference_number, title, authors, journal, year, doi, url, created_at, updated_at
		FROM citations
		WHERE message_id = ? AND reference_number = ?
	`

	var cit models.Citation
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, messageID, referenceNumber).Scan(
		&cit.ID,
		&cit.MessageID,
		&cit.ReferenceNumber,
		&cit.Title,
		&cit.Authors,
		&cit.Journal,
		&cit.Year,
		&cit.DOI,
		&cit.URL,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find citation: %w", err)
	}

	cit.CreatedAt = time.Unix(createdAt, 0)
	cit.UpdatedAt = time.Unix(updatedAt, 0)

	return &cit, nil
}

// InsertCitation stores a citation. The UNIQUE(message_id, reference_number)
// constraint plus ON CONFLICT DO NOTHING makes concurrent extraction calls
// for the same message converge on a single row; the stored row is always
// re-read and returned.
func (c *Client) InsertCitation(ctx context.Context, cit *models.Citation) (*models.Citation, error) {
	query := `
		INSERT INTO citations (id, message_id, reference_number, title, authors, journal, year, doi, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id, reference_number) DO NOTHING
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		cit.ID,
		cit.MessageID,
		cit.ReferenceNumber,
		cit.Title,
		cit.Authors,
		cit.Journal,
		cit.Year,
		cit.DOI,
		cit.URL,
		cit.CreatedAt.Unix(),
		cit.UpdatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert citation: %w", err)
	}

	stored, err := c.FindCitation(ctx, cit.MessageID, cit.ReferenceNumber)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("citation not found after insert: message=%s ref=%d", cit.MessageID, cit.ReferenceNumber)
	}

	logger.Debug("Citation stored",
		zap.String("message_id", stored.MessageID),
		zap.Int("reference_number", stored.ReferenceNumber),
	)

	return stored, nil
}

func (c *Client) GetCitationsByMessage(ctx context.Context, messageID string) ([]models.Citation, error) {
	query := `
		SELECT id, message_id, reference_number, title, authors, journal, year, doi, url, created_at, updated_at
		FROM citations
		WHERE message_id = ?
		ORDER BY reference_number ASC
	`

	rows, err := c.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get citations: %w", err)
	}
	defer rows.Close()

	var citations []models.Citation
	for rows.Next() {
		var cit models.Citation
		var createdAt, updatedAt int64

		err := rows.Scan(
			&cit.ID,
			&cit.MessageID,
			&cit.ReferenceNumber,
			&cit.Title,
			&cit.Authors,
			&cit.Journal,
			&cit.Year,
			&cit.DOI,
			&cit.URL,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		cit.CreatedAt = time.Unix(createdAt, 0)
		cit.UpdatedAt = time.Unix(updatedAt, 0)
		citations = append(citations, cit)
	}

	return citations, rows.Err()
}

func (c *Client) UpsertSpecialty(specialty *models.Specialty) error {
	query := `
		INSERT INTO specialties (id, name, prompt_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			prompt_text = excluded.prompt_text,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		specialty.ID,
		specialty.Name,
		specialty.PromptText,
		specialty.CreatedAt.Unix(),
		specialty.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert specialty: %w", err)
	}

	return nil
}

func (c *Client) GetSpecialty(ctx context.Context, id string) (*models.Specialty, error) {
	query := `SELECT id, name, prompt_text, created_at, updated_at FROM specialties WHERE id = ?`

	var s models.Specialty
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.PromptText, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get specialty: %w", err)
	}

	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)

	return &s, nil
}

// GetSpecialtyPromptText adapts specialty lookup to the prompt composer's
// SpecialtySource interface. A missing specialty is (_, false, nil).
func (c *Client) GetSpecialtyPromptText(ctx context.Context, specialtyID string) (string, bool, error) {
	s, err := c.GetSpecialty(ctx, specialtyID)
	if err != nil {
		return "", false, err
	}
	if s == nil {
		return "", false, nil
	}
	return s.PromptText, true, nil
}

func (c *Client) InsertDocument(doc *models.Document) error {
	query := `
		INSERT INTO documents (id, url, title, specialty_id, journal, year, summary, raw_content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			raw_content = excluded.raw_content,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.URL,
		doc.Title,
		doc.SpecialtyID,
		doc.Journal,
		doc.Year,
		doc.Summary,
		doc.RawContent,
		doc.CreatedAt.Unix(),
		doc.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("url", doc.URL))
	return nil
}

func (c *Client) InsertChunk(chunk *models.DocumentChunk) error {
	query := `INSERT INTO document_chunks (id, doc_id, chunk_index, text, embedding_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		chunk.ID,
		chunk.DocID,
		chunk.ChunkIndex,
		chunk.Text,
		chunk.EmbeddingID,
		chunk.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, user_id, specialty_id, query_text, response, passages_used,
			citations_found, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.SpecialtyID,
		record.QueryText,
		record.Response,
		record.PassagesUsed,
		record.CitationsFound,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.Int("passages_used", record.PassagesUsed),
		zap.Int("citations_found", record.CitationsFound),
	)

	return nil
}

func (c *Client) GetQueryHistory(userID string, limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, specialty_id, query_text, response, passages_used, citations_found, created_at
		FROM query_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.SpecialtyID, &r.QueryText, &r.Response, &r.PassagesUsed, &r.CitationsFound, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}
