package prompt_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/backend/internal/prompt"
	"github.com/medassist/backend/internal/ranking"
	"github.com/medassist/backend/internal/retrieval"
)

const baseInstructions = "You are a medical reference assistant. Cite sources by number."

type fakeSpecialtySource struct {
	texts   map[string]string
	err     error
	lookups int
}

func (f *fakeSpecialtySource) GetSpecialtyPromptText(ctx context.Context, specialtyID string) (string, bool, error) {
	f.lookups++
	if f.err != nil {
		return "", false, f.err
	}
	text, ok := f.texts[specialtyID]
	return text, ok, nil
}

func rankedPassage(id, content string, meta retrieval.PassageMetadata) ranking.RankedPassage {
	return ranking.RankedPassage{
		Passage: retrieval.Passage{
			ID:       id,
			Content:  content,
			Metadata: meta,
		},
		EnhancedScore: 0.9,
	}
}

func TestComposeBaseOnly(t *testing.T) {
	c := prompt.NewComposer(baseInstructions, 8000, nil, prompt.NewSpecialtyCache())

	out := c.Compose(context.Background(), prompt.Input{})

	assert.Equal(t, baseInstructions, out.Text)
	assert.Empty(t, out.CitationIndex)
}

func TestComposeSpecialtyBlock(t *testing.T) {
	source := &fakeSpecialtySource{texts: map[string]string{
		"cardiology": "Focus on cardiovascular guidelines.",
	}}
	c := prompt.NewComposer(baseInstructions, 8000, source, prompt.NewSpecialtyCache())

	out := c.Compose(context.Background(), prompt.Input{SpecialtyID: "cardiology"})

	assert.Contains(t, out.Text, baseInstructions)
	assert.Contains(t, out.Text, "Specialty context:")
	assert.Contains(t, out.Text, "Focus on cardiovascular guidelines.")
}

func TestComposeUnknownSpecialtyOmitsBlock(t *testing.T) {
	source := &fakeSpecialtySource{texts: map[string]string{}}
	c := prompt.NewComposer(baseInstructions, 8000, source, prompt.NewSpecialtyCache())

	out := c.Compose(context.Background(), prompt.Input{SpecialtyID: "unknown"})

	assert.Equal(t, baseInstructions, out.Text)
}

func TestComposeSpecialtyLookupFailureDegrades(t *testing.T) {
	source := &fakeSpecialtySource{err: errors.New("db down")}
	c := prompt.NewComposer(baseInstructions, 8000, source, prompt.NewSpecialtyCache())

	out := c.Compose(context.Background(), prompt.Input{SpecialtyID: "cardiology"})

	assert.Equal(t, baseInstructions, out.Text)
}

func TestComposeUserContextParagraph(t *testing.T) {
	c := prompt.NewComposer(baseInstructions, 8000, nil, prompt.NewSpecialtyCache())

	with := c.Compose(context.Background(), prompt.Input{IncludeUserContext: true})
	without := c.Compose(context.Background(), prompt.Input{})

	assert.Greater(t, len(with.Text), len(without.Text))
	assert.Contains(t, with.Text, "patient context")
}

func TestComposePassageBlock(t *testing.T) {
	c := prompt.NewComposer(baseInstructions, 8000, nil, prompt.NewSpecialtyCache())

	passages := []ranking.RankedPassage{
		rankedPassage("p1", "Beta blockers reduce mortality in heart failure.", retrieval.PassageMetadata{
			Title:   "Heart Failure Management",
			Authors: "Smith J",
			Journal: "Cardiology Today",
			Year:    "2023",
		}),
		rankedPassage("p2", "ACE inhibitors are first line.", retrieval.PassageMetadata{}),
	}

	out := c.Compose(context.Background(), prompt.Input{Passages: passages})

	assert.Contains(t, out.Text, "[1] Beta blockers reduce mortality in heart failure.")
	assert.Contains(t, out.Text, "CITATION: Heart Failure Management, Smith J, Cardiology Today, 2023")
	assert.Contains(t, out.Text, "[2] ACE inhibitors are first line.")
	// p2 has no metadata, so no CITATION line follows it.
	idx := strings.Index(out.Text, "[2]")
	assert.NotContains(t, out.Text[idx:], "CITATION:")

	assert.Equal(t, map[string]int{"p1": 1, "p2": 2}, out.CitationIndex)
}

func TestComposeNoPassagesNoPassageBlock(t *testing.T) {
	c := prompt.NewComposer(baseInstructions, 8000, nil, prompt.NewSpecialtyCache())

	out := c.Compose(context.Background(), prompt.Input{})

	assert.NotContains(t, out.Text, "Reference material")
}

func TestComposeSkipsPassagesOverBudget(t *testing.T) {
	maxLength := len(baseInstructions) + 200
	c := prompt.NewComposer(baseInstructions, maxLength, nil, prompt.NewSpecialtyCache())

	small := rankedPassage("small", "Short passage.", retrieval.PassageMetadata{})
	huge := rankedPassage("huge", strings.Repeat("x", 500), retrieval.PassageMetadata{})
	tail := rankedPassage("tail", "Also short.", retrieval.PassageMetadata{})

	out := c.Compose(context.Background(), prompt.Input{
		Passages: []ranking.RankedPassage{small, huge, tail},
	})

	assert.LessOrEqual(t, len(out.Text), maxLength)
	assert.Contains(t, out.Text, "[1] Short passage.")
	assert.NotContains(t, out.Text, "xxxx")
	// The skipped passage keeps its slot; tail stays at index 3.
	assert.Contains(t, out.Text, "[3] Also short.")
	assert.Equal(t, map[string]int{"small": 1, "tail": 3}, out.CitationIndex)
}

func TestComposeNeverExceedsMaxLength(t *testing.T) {
	long := strings.Repeat("A paragraph of base instructions.\n\n", 100)
	c := prompt.NewComposer(long, 500, nil, prompt.NewSpecialtyCache())

	out := c.Compose(context.Background(), prompt.Input{IncludeUserContext: true})

	assert.LessOrEqual(t, len(out.Text), 500)
	assert.NotEmpty(t, out.Text)
}

func TestComposeTruncatesAtParagraphBreak(t *testing.T) {
	// Paragraphs of 50 chars; the last break before the cut lands past 80%
	// of the budget, so the cut moves back to it.
	para := strings.Repeat("p", 48) + "\n\n"
	text := strings.Repeat(para, 40)
	c := prompt.NewComposer(text, 1000, nil, prompt.NewSpecialtyCache())

	out := c.Compose(context.Background(), prompt.Input{})

	assert.LessOrEqual(t, len(out.Text), 1000)
	assert.True(t, strings.HasSuffix(out.Text, strings.Repeat("p", 48)),
		"expected truncation at a paragraph boundary, got tail %q", out.Text[len(out.Text)-10:])
}

func TestComposeDeterministic(t *testing.T) {
	c := prompt.NewComposer(baseInstructions, 8000, nil, prompt.NewSpecialtyCache())

	in := prompt.Input{
		Passages: []ranking.RankedPassage{
			rankedPassage("p1", "Content one.", retrieval.PassageMetadata{Title: "T1"}),
		},
		IncludeUserContext: true,
	}

	first := c.Compose(context.Background(), in)
	second := c.Compose(context.Background(), in)

	assert.Equal(t, first, second)
}

func TestComposeCachesSpecialtyOnlyWithoutPassages(t *testing.T) {
	source := &fakeSpecialtySource{texts: map[string]string{
		"cardiology": "Cardio context.",
	}}
	cache := prompt.NewSpecialtyCache()
	c := prompt.NewComposer(baseInstructions, 8000, source, cache)

	c.Compose(context.Background(), prompt.Input{SpecialtyID: "cardiology"})
	require.Equal(t, 1, cache.Len())
	require.Equal(t, 1, source.lookups)

	// Second passage-free turn hits the cache, not the source.
	c.Compose(context.Background(), prompt.Input{SpecialtyID: "cardiology"})
	assert.Equal(t, 1, source.lookups)

	// Retrieval-bearing turns are always recomputed.
	c.Compose(context.Background(), prompt.Input{
		SpecialtyID: "cardiology",
		Passages:    []ranking.RankedPassage{rankedPassage("p1", "Content.", retrieval.PassageMetadata{})},
	})
	assert.Equal(t, 2, source.lookups)
}
