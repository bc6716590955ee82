package citations_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/backend/internal/citations"
	"github.com/medassist/backend/internal/storage/models"
)

// fakeStore keys records by (messageID, referenceNumber), mirroring the
// uniqueness constraint of the real store.
type fakeStore struct {
	records map[string]*models.Citation
	findErr map[int]error
	inserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*models.Citation),
		findErr: make(map[int]error),
	}
}

func storeKey(messageID string, referenceNumber int) string {
	return fmt.Sprintf("%s/%d", messageID, referenceNumber)
}

func (s *fakeStore) FindCitation(ctx context.Context, messageID string, referenceNumber int) (*models.Citation, error) {
	if err := s.findErr[referenceNumber]; err != nil {
		return nil, err
	}
	return s.records[storeKey(messageID, referenceNumber)], nil
}

func (s *fakeStore) InsertCitation(ctx context.Context, citation *models.Citation) (*models.Citation, error) {
	s.inserts++
	key := storeKey(citation.MessageID, citation.ReferenceNumber)
	if existing, ok := s.records[key]; ok {
		return existing, nil
	}
	s.records[key] = citation
	return citation, nil
}

func extraction(refNum int, title string) citations.Extraction {
	return citations.Extraction{
		ReferenceNumber: refNum,
		Citation:        citations.ParsedCitation{Title: title, Year: "2023"},
	}
}

func TestPersistAllStoresEachExtraction(t *testing.T) {
	store := newFakeStore()
	p := citations.NewPersister(store)

	out := p.PersistAll(context.Background(), "msg-1", []citations.Extraction{
		extraction(1, "First Source"),
		extraction(2, "Second Source"),
	})

	require.Len(t, out, 2)
	assert.Equal(t, 2, store.inserts)

	assert.Equal(t, "msg-1", out[0].MessageID)
	assert.Equal(t, 1, out[0].ReferenceNumber)
	assert.Equal(t, "First Source", out[0].Title)
	assert.NotEmpty(t, out[0].ID)
	assert.NotEqual(t, out[0].ID, out[1].ID)
}

func TestPersistAllReusesExistingRecord(t *testing.T) {
	store := newFakeStore()
	p := citations.NewPersister(store)

	exs := []citations.Extraction{extraction(1, "Stable Source")}

	first := p.PersistAll(context.Background(), "msg-1", exs)
	second := p.PersistAll(context.Background(), "msg-1", exs)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, store.inserts)
}

func TestPersistAllSeparateMessagesGetSeparateRecords(t *testing.T) {
	store := newFakeStore()
	p := citations.NewPersister(store)

	exs := []citations.Extraction{extraction(1, "Shared Source")}

	a := p.PersistAll(context.Background(), "msg-a", exs)
	b := p.PersistAll(context.Background(), "msg-b", exs)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].ID, b[0].ID)
	assert.Equal(t, 2, store.inserts)
}

func TestPersistAllSkipsFailedCitation(t *testing.T) {
	store := newFakeStore()
	store.findErr[2] = errors.New("connection reset")
	p := citations.NewPersister(store)

	out := p.PersistAll(context.Background(), "msg-1", []citations.Extraction{
		extraction(1, "First Source"),
		extraction(2, "Broken Source"),
		extraction(3, "Third Source"),
	})

	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].ReferenceNumber)
	assert.Equal(t, 3, out[1].ReferenceNumber)
}

func TestPersistAllEmptyInput(t *testing.T) {
	p := citations.NewPersister(newFakeStore())

	out := p.PersistAll(context.Background(), "msg-1", nil)

	assert.Empty(t, out)
}
