package citations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medassist/backend/internal/storage/models"
	"github.com/medassist/backend/pkg/logger"
)

// Store is the external citation store. Find reports a missing record as
// (nil, nil); Insert returns the stored row, which under the store's
// uniqueness constraint may be a pre-existing one.
type Store interface {
	FindCitation(ctx context.Context, messageID string, referenceNumber int) (*models.Citation, error)
	InsertCitation(ctx context.Context, citation *models.Citation) (*models.Citation, error)
}

// Persister owns the boundary logic between parsed citations and the
// store: check-then-insert keyed by (message, reference number).
type Persister struct {
	store Store
}

func NewPersister(store Store) *Persister {
	return &Persister{store: store}
}

// PersistAll stores the extractions one at a time, in order. Processing is
// deliberately sequential so two extractions resolving to the same
// reference number within one call cannot race check-then-insert. A
// failure on one citation is logged and skipped; the rest of the batch
// still goes through.
func (p *Persister) PersistAll(ctx context.Context, messageID string, extractions []Extraction) []models.Citation {
	stored := make([]models.Citation, 0, len(extractions))

	for _, ex := range extractions {
		cit, err := p.persistOne(ctx, messageID, ex)
		if err != nil {
			logger.Warn("Failed to persist citation",
				zap.String("message_id", messageID),
				zap.Int("reference_number", ex.ReferenceNumber),
				zap.Error(err),
			)
			continue
		}
		stored = append(stored, *cit)
	}

	logger.Info("Citations persisted",
		zap.String("message_id", messageID),
		zap.Int("parsed", len(extractions)),
		zap.Int("stored", len(stored)),
	)

	return stored
}

// persistOne reuses an existing record for the (message, reference) pair;
// otherwise it inserts a new one.
func (p *Persister) persistOne(ctx context.Context, messageID string, ex Extraction) (*models.Citation, error) {
	existing, err := p.store.FindCitation(ctx, messageID, ex.ReferenceNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	record := &models.Citation{
		ID:              uuid.New().String(),
		MessageID:       messageID,
		ReferenceNumber: ex.ReferenceNumber,
		Title:           ex.Citation.Title,
		Authors:         ex.Citation.Authors,
		Journal:         ex.Citation.Journal,
		Year:            ex.Citation.Year,
		DOI:             ex.Citation.DOI,
		URL:             ex.Citation.URL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	return p.store.InsertCitation(ctx, record)
}
