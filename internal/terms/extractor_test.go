package terms_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medassist/backend/internal/terms"
)

func TestExtractEmptyInput(t *testing.T) {
	e := terms.NewExtractor()

	assert.Empty(t, e.Extract(""))
	assert.Empty(t, e.Extract("   \t\n"))
}

func TestExtractVocabularyMatch(t *testing.T) {
	e := terms.NewExtractor()

	got := e.Extract("first-line treatment for hypertension in diabetes patients")

	assert.Contains(t, got, "hypertension")
	assert.Contains(t, got, "diabetes")
}

func TestExtractVocabularyCaseInsensitive(t *testing.T) {
	e := terms.NewExtractor()

	got := e.Extract("management of HYPERTENSION")

	assert.Contains(t, got, "hypertension")
}

func TestExtractMeasurements(t *testing.T) {
	e := terms.NewExtractor()

	got := e.Extract("patient on metformin 500 mg with bp 140 mmHg")

	assert.Contains(t, got, "metformin")
	assert.Contains(t, got, "500 mg")
	assert.Contains(t, got, "140 mmhg")
}

func TestExtractDosages(t *testing.T) {
	e := terms.NewExtractor()

	got := e.Extract("titrate up to 10 mg/day as tolerated")

	assert.Contains(t, got, "10 mg/day")
}

func TestExtractAbbreviations(t *testing.T) {
	e := terms.NewExtractor()

	got := e.Extract("rule out PE with CT angiography")

	assert.Contains(t, got, "PE")
	assert.Contains(t, got, "CT")
}

func TestExtractNoDuplicatesNoEmptyStrings(t *testing.T) {
	e := terms.NewExtractor()

	got := e.Extract("warfarin and warfarin again, 5 mg then 5 mg, INR INR")

	seen := map[string]int{}
	for _, term := range got {
		assert.NotEmpty(t, term)
		seen[term]++
	}
	for term, count := range seen {
		assert.Equal(t, 1, count, "duplicate term %q", term)
	}
}

func TestExtractDeterministicOrder(t *testing.T) {
	e := terms.NewExtractor()

	query := "warfarin dosing with INR 2.5 target"
	first := e.Extract(query)
	second := e.Extract(query)

	assert.Equal(t, first, second)
}
