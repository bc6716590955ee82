package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/backend/internal/storage/models"
	"github.com/medassist/backend/internal/storage/sqlite"
)

func newTestClient(t *testing.T) *sqlite.Client {
	t.Helper()

	c, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.InitSchema())
	return c
}

func testCitation(id, messageID string, refNum int) *models.Citation {
	now := time.Now()
	return &models.Citation{
		ID:              id,
		MessageID:       messageID,
		ReferenceNumber: refNum,
		Title:           "Beta Blockade in Heart Failure",
		Authors:         "Smith J",
		Journal:         "Cardiology Today",
		Year:            "2023",
		DOI:             "10.1000/xyz123",
		URL:             "https://example.com/paper",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestFindCitationMissing(t *testing.T) {
	c := newTestClient(t)

	cit, err := c.FindCitation(context.Background(), "msg-1", 1)

	require.NoError(t, err)
	assert.Nil(t, cit)
}

func TestInsertCitationRoundTrip(t *testing.T) {
	c := newTestClient(t)

	stored, err := c.InsertCitation(context.Background(), testCitation("cit-1", "msg-1", 1))
	require.NoError(t, err)

	assert.Equal(t, "cit-1", stored.ID)
	assert.Equal(t, "Beta Blockade in Heart Failure", stored.Title)
	assert.Equal(t, "10.1000/xyz123", stored.DOI)

	found, err := c.FindCitation(context.Background(), "msg-1", 1)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "cit-1", found.ID)
}

func TestInsertCitationConflictKeepsFirstRow(t *testing.T) {
	c := newTestClient(t)

	first, err := c.InsertCitation(context.Background(), testCitation("cit-1", "msg-1", 1))
	require.NoError(t, err)

	second, err := c.InsertCitation(context.Background(), testCitation("cit-2", "msg-1", 1))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	all, err := c.GetCitationsByMessage(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetCitationsByMessageOrdered(t *testing.T) {
	c := newTestClient(t)

	for _, refNum := range []int{3, 1, 2} {
		_, err := c.InsertCitation(context.Background(), testCitation("cit-"+string(rune('0'+refNum)), "msg-1", refNum))
		require.NoError(t, err)
	}

	all, err := c.GetCitationsByMessage(context.Background(), "msg-1")
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, 1, all[0].ReferenceNumber)
	assert.Equal(t, 2, all[1].ReferenceNumber)
	assert.Equal(t, 3, all[2].ReferenceNumber)
}

func TestSpecialtyPromptText(t *testing.T) {
	c := newTestClient(t)

	now := time.Now()
	require.NoError(t, c.UpsertSpecialty(&models.Specialty{
		ID:         "cardiology",
		Name:       "Cardiology",
		PromptText: "Focus on cardiovascular guidelines.",
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	text, ok, err := c.GetSpecialtyPromptText(context.Background(), "cardiology")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Focus on cardiovascular guidelines.", text)

	_, ok, err = c.GetSpecialtyPromptText(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryHistory(t *testing.T) {
	c := newTestClient(t)

	for i, q := range []string{"first question", "second question"} {
		require.NoError(t, c.InsertQueryRecord(&models.QueryRecord{
			ID:             "msg-" + string(rune('a'+i)),
			UserID:         "user-1",
			SpecialtyID:    "cardiology",
			QueryText:      q,
			Response:       "answer",
			PassagesUsed:   2,
			CitationsFound: 1,
			LatencyMS:      120,
			CreatedAt:      time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	records, err := c.GetQueryHistory("user-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "second question", records[0].QueryText)

	none, err := c.GetQueryHistory("user-2", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
