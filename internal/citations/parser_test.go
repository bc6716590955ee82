package citations_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/backend/internal/citations"
)

func TestParseEmptyInput(t *testing.T) {
	p := citations.NewParser()

	assert.Empty(t, p.Parse(""))
	assert.Empty(t, p.Parse("   \n\t  "))
}

func TestParseNoMarkers(t *testing.T) {
	p := citations.NewParser()

	out := p.Parse("Beta blockers reduce mortality in heart failure. No sources were cited.")

	assert.Empty(t, out)
}

func TestParseMarkersWithoutEntries(t *testing.T) {
	p := citations.NewParser()

	// Inline spans after the markers are too short to be entries.
	out := p.Parse("Early antibiotics are critical [1]. So is fluid resuscitation [2].")

	assert.Empty(t, out)
}

func TestParseReferenceSection(t *testing.T) {
	p := citations.NewParser()

	text := "Beta blockers reduce mortality [1]. ACE inhibitors also help [2].\n\n" +
		"References:\n" +
		"[1] Smith J, Beta Blockade in Heart Failure, Cardiology Today (2023).\n" +
		"[2] \"Renin Angiotensin Blockade.\" Jones K, Internal Medicine (2022).\n"

	out := p.Parse(text)
	require.Len(t, out, 2)

	assert.Equal(t, 1, out[0].ReferenceNumber)
	assert.Equal(t, "Smith J", out[0].Citation.Authors)
	assert.Equal(t, "Beta Blockade in Heart Failure", out[0].Citation.Title)
	assert.Equal(t, "Cardiology Today", out[0].Citation.Journal)
	assert.Equal(t, "2023", out[0].Citation.Year)

	assert.Equal(t, 2, out[1].ReferenceNumber)
	assert.Equal(t, "Renin Angiotensin Blockade", out[1].Citation.Title)
	assert.Equal(t, "Jones K", out[1].Citation.Authors)
	assert.Equal(t, "Internal Medicine", out[1].Citation.Journal)
	assert.Equal(t, "2022", out[1].Citation.Year)
}

func TestParseRecordsInlinePositions(t *testing.T) {
	p := citations.NewParser()

	text := "First claim [1]. Second claim also cites it [1].\n\n" +
		"References:\n" +
		"[1] Smith J, Sepsis Management, Critical Care (2021).\n"

	out := p.Parse(text)
	require.Len(t, out, 1)

	positions := out[0].Positions
	require.GreaterOrEqual(t, len(positions), 2)
	assert.Equal(t, strings.Index(text, "[1]"), positions[0])
	assert.True(t, sortedAscending(positions))
}

func sortedAscending(xs []int) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			return false
		}
	}
	return true
}

func TestParseAbbreviatedFormat(t *testing.T) {
	p := citations.NewParser()

	text := "Beta blockade helps [1].\n\n" +
		"References:\n" +
		"[1] Smith J. \"Beta Blockade in HF.\" Cardiol. Today (2023).\n"

	out := p.Parse(text)
	require.Len(t, out, 1)

	assert.Equal(t, "Smith J", out[0].Citation.Authors)
	assert.Equal(t, "Beta Blockade in HF", out[0].Citation.Title)
	assert.Equal(t, "Cardiol. Today", out[0].Citation.Journal)
	assert.Equal(t, "2023", out[0].Citation.Year)
}

func TestParseFallbackSplit(t *testing.T) {
	p := citations.NewParser()

	text := "As shown previously [1].\n\n" +
		"References:\n" +
		"[1] Smith J. Title One. Journal A. (2023).\n"

	out := p.Parse(text)
	require.Len(t, out, 1)

	assert.Equal(t, "Smith J", out[0].Citation.Authors)
	assert.Equal(t, "Title One", out[0].Citation.Title)
	assert.Equal(t, "Journal A", out[0].Citation.Journal)
	assert.Equal(t, "2023", out[0].Citation.Year)
}

func TestParseRawTitleWhenNothingMatches(t *testing.T) {
	p := citations.NewParser()

	text := "See the handbook [1].\n\n" +
		"References:\n" +
		"[1] UpToDate clinical reference\n"

	out := p.Parse(text)
	require.Len(t, out, 1)

	assert.Equal(t, "UpToDate clinical reference", out[0].Citation.Title)
	assert.Empty(t, out[0].Citation.Authors)
	assert.Empty(t, out[0].Citation.Year)
}

func TestParseAttachesDOIAndURL(t *testing.T) {
	p := citations.NewParser()

	text := "Sepsis bundles improve outcomes [1].\n\n" +
		"References:\n" +
		"[1] Smith J. Sepsis Care. Critical Care (2021). doi:10.1000/xyz123 https://example.com/paper.\n"

	out := p.Parse(text)
	require.Len(t, out, 1)

	assert.Equal(t, "10.1000/xyz123", out[0].Citation.DOI)
	assert.Equal(t, "https://example.com/paper", out[0].Citation.URL)
	assert.Equal(t, "2021", out[0].Citation.Year)
}

func TestParseEntryLinesWithoutHeader(t *testing.T) {
	p := citations.NewParser()

	// No "References:" header. The entry-shaped lines sit in the later half
	// of the answer and start at a paragraph boundary.
	text := "Anticoagulation is indicated for most patients with atrial fibrillation " +
		"and an elevated stroke risk score [1]. Rate control remains the usual " +
		"first step for symptom management in the acute setting [2].\n\n" +
		"[1] Smith J, Anticoagulation in AF, Cardiology Today (2023).\n" +
		"[2] Jones K, Rate Versus Rhythm Control, Internal Medicine (2022).\n"

	out := p.Parse(text)
	require.Len(t, out, 2)

	assert.Equal(t, "Anticoagulation in AF", out[0].Citation.Title)
	assert.Equal(t, "Rate Versus Rhythm Control", out[1].Citation.Title)
}

func TestParseInlineFallback(t *testing.T) {
	p := citations.NewParser()

	text := "Early antibiotics within one hour improve survival in septic shock " +
		"[1] Surviving Sepsis Campaign, International Guidelines, Critical Care Medicine (2021)."

	out := p.Parse(text)
	require.Len(t, out, 1)

	assert.Equal(t, 1, out[0].ReferenceNumber)
	assert.Equal(t, "Surviving Sepsis Campaign", out[0].Citation.Authors)
	assert.Equal(t, "International Guidelines", out[0].Citation.Title)
	assert.Equal(t, "Critical Care Medicine", out[0].Citation.Journal)
	assert.Equal(t, "2021", out[0].Citation.Year)
}

func TestParseDuplicateEntryFirstWins(t *testing.T) {
	p := citations.NewParser()

	text := "Stated once [1].\n\n" +
		"References:\n" +
		"[1] Smith J, First Entry, Journal A (2020).\n" +
		"[1] Jones K, Second Entry, Journal B (2021).\n"

	out := p.Parse(text)
	require.Len(t, out, 1)

	assert.Equal(t, "First Entry", out[0].Citation.Title)
}

func TestParseSortedByReferenceNumber(t *testing.T) {
	p := citations.NewParser()

	text := "Later source [3], then an earlier one [1].\n\n" +
		"References:\n" +
		"[3] Smith J, Third Entry, Journal C (2022).\n" +
		"[1] Jones K, First Entry, Journal A (2020).\n"

	out := p.Parse(text)
	require.Len(t, out, 2)

	assert.Equal(t, 1, out[0].ReferenceNumber)
	assert.Equal(t, 3, out[1].ReferenceNumber)
}

func TestParseIdempotent(t *testing.T) {
	p := citations.NewParser()

	text := "A claim [1].\n\n" +
		"References:\n" +
		"[1] Smith J, Stable Entry, Journal A (2023).\n"

	first := p.Parse(text)
	second := p.Parse(text)

	assert.Equal(t, first, second)
}
