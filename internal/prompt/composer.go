package prompt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/medassist/backend/internal/ranking"
	"github.com/medassist/backend/pkg/logger"
)

const (
	passageHeader = "Reference material (cite by number):"

	userContextParagraph = "Take the clinician's stated patient context into account. " +
		"Frame the answer for a healthcare professional and flag anything that requires " +
		"in-person evaluation."

	// When hard truncation is needed, prefer the last paragraph break that
	// still lands past this share of the budget.
	truncationFloor = 0.8
)

// SpecialtySource resolves a specialty identifier to its instruction text.
// The second return reports whether the specialty exists.
type SpecialtySource interface {
	GetSpecialtyPromptText(ctx context.Context, specialtyID string) (string, bool, error)
}

// Input is everything one composition needs. Passages are assumed already
// ranked; their position in the slice fixes the citation numbering 1..N.
type Input struct {
	SpecialtyID        string
	Passages           []ranking.RankedPassage
	IncludeUserContext bool
}

// Composer assembles the instruction prompt for one turn. The returned
// text never exceeds MaxLength.
type Composer struct {
	baseInstructions string
	maxLength        int
	source           SpecialtySource
	cache            *SpecialtyCache
}

// NewComposer wires the composer. cache holds pre-composed base+specialty
// text and is consulted only for turns with no retrieved passages;
// retrieval-bearing prompts are always recomputed.
func NewComposer(baseInstructions string, maxLength int, source SpecialtySource, cache *SpecialtyCache) *Composer {
	return &Composer{
		baseInstructions: baseInstructions,
		maxLength:        maxLength,
		source:           source,
		cache:            cache,
	}
}

func (c *Composer) MaxLength() int {
	return c.maxLength
}

// Composed is the assembled prompt plus the passage-id to citation-index
// mapping for every passage that made it into the text.
type Composed struct {
	Text          string
	CitationIndex map[string]int
}

// Compose builds the prompt: base instructions, optional specialty block,
// optional user-context paragraph, then numbered passages with CITATION
// lines. Passages that do not fit the remaining budget are skipped whole.
// The returned text never exceeds the configured budget.
func (c *Composer) Compose(ctx context.Context, in Input) Composed {
	prefix := c.basePrefix(ctx, in.SpecialtyID, len(in.Passages) == 0)

	var b strings.Builder
	b.WriteString(prefix)

	if in.IncludeUserContext {
		b.WriteString("\n\n")
		b.WriteString(userContextParagraph)
	}

	index := make(map[string]int)
	if len(in.Passages) > 0 {
		c.appendPassages(&b, in.Passages, index)
	}

	out := c.truncate(b.String())

	logger.Debug("Prompt composed",
		zap.Int("length", len(out)),
		zap.Int("passages_included", len(index)),
		zap.String("specialty_id", in.SpecialtyID),
	)

	return Composed{Text: out, CitationIndex: index}
}

// basePrefix returns base instructions plus the specialty block. For turns
// without passages the result is memoized per specialty.
func (c *Composer) basePrefix(ctx context.Context, specialtyID string, cacheable bool) string {
	if specialtyID == "" {
		return c.baseInstructions
	}

	if cacheable && c.cache != nil {
		if text, ok := c.cache.Get(specialtyID); ok {
			return text
		}
	}

	prefix := c.baseInstructions
	if c.source != nil {
		text, ok, err := c.source.GetSpecialtyPromptText(ctx, specialtyID)
		if err != nil {
			logger.Warn("Specialty lookup failed", zap.String("specialty_id", specialtyID), zap.Error(err))
		} else if ok && strings.TrimSpace(text) != "" {
			prefix = prefix + "\n\nSpecialty context:\n" + strings.TrimSpace(text)
		}
	}

	if cacheable && c.cache != nil {
		c.cache.Set(specialtyID, prefix)
	}

	return prefix
}

// appendPassages writes the numbered passage block, skipping any passage
// whose full entry would push the prompt past the budget. Entries are
// never split, so citation blocks stay well formed.
func (c *Composer) appendPassages(b *strings.Builder, passages []ranking.RankedPassage, index map[string]int) {
	header := "\n\n" + passageHeader
	if b.Len()+len(header) > c.maxLength {
		return
	}
	b.WriteString(header)

	for i, p := range passages {
		entry := formatPassage(i+1, p)
		if b.Len()+len(entry) > c.maxLength {
			logger.Debug("Passage skipped for budget", zap.Int("index", i+1), zap.String("passage_id", p.ID))
			continue
		}
		b.WriteString(entry)
		index[p.ID] = i + 1
	}
}

func formatPassage(index int, p ranking.RankedPassage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n[%d] %s", index, strings.TrimSpace(p.Content))

	if line := citationLine(p); line != "" {
		b.WriteString("\nCITATION: ")
		b.WriteString(line)
	}

	return b.String()
}

func citationLine(p ranking.RankedPassage) string {
	var parts []string
	for _, field := range []string{p.Metadata.Title, p.Metadata.Authors, p.Metadata.Journal, p.Metadata.Year} {
		if strings.TrimSpace(field) != "" {
			parts = append(parts, strings.TrimSpace(field))
		}
	}
	return strings.Join(parts, ", ")
}

// truncate enforces the budget. When the hard cut point is reached, the
// nearest preceding paragraph break still past 80% of the budget wins, so
// the prompt does not end mid-sentence or mid-citation.
func (c *Composer) truncate(text string) string {
	if len(text) <= c.maxLength {
		return text
	}

	cut := text[:c.maxLength]
	floor := int(float64(c.maxLength) * truncationFloor)

	if idx := strings.LastIndex(cut, "\n\n"); idx >= floor {
		cut = cut[:idx]
	}

	logger.Debug("Prompt truncated", zap.Int("final_length", len(cut)), zap.Int("max_length", c.maxLength))

	return cut
}
