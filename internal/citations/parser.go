package citations

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/medassist/backend/pkg/logger"
)

// Trailing fragments shorter than this are noise, not reference entries.
const minEntryLength = 5

var (
	markerPattern = regexp.MustCompile(`\[(\d+)\]`)

	sectionHeaderPattern = regexp.MustCompile(`(?im)^[ \t]*(?:references|citations|sources|bibliography)[ \t]*:[ \t]*$`)

	// A line starting with "[n] Capitalized" reads as a reference entry
	// even without a section header.
	entryLinePattern = regexp.MustCompile(`(?m)^[ \t]*\[\d+\][ \t]+[A-Z"]`)

	entryStartPattern = regexp.MustCompile(`(?m)^[ \t]*\[(\d+)\]`)
)

// Marker is every inline occurrence of one reference number.
type Marker struct {
	ReferenceNumber int
	Positions       []int
}

// Extraction pairs a parsed citation with its reference number and the
// inline positions where it is cited.
type Extraction struct {
	ReferenceNumber int
	Citation        ParsedCitation
	Positions       []int
}

// Parser turns raw answer text into structured citations. It holds no
// mutable state across calls and never fails: malformed input degrades to
// raw-text titles, and input without markers yields an empty list.
type Parser struct {
	strategies []FormatStrategy
}

func NewParser() *Parser {
	return &Parser{strategies: defaultStrategies()}
}

// NewParserWithStrategies lets callers extend or reorder the cascade.
func NewParserWithStrategies(strategies []FormatStrategy) *Parser {
	return &Parser{strategies: strategies}
}

// Parse runs the full extraction: marker scan, reference-section location,
// entry segmentation (with an inline fallback when no section exists), and
// the field-parsing cascade. Output is sorted by reference number.
func (p *Parser) Parse(text string) []Extraction {
	if strings.TrimSpace(text) == "" {
		return []Extraction{}
	}

	markers := scanMarkers(text)
	if len(markers) == 0 {
		return []Extraction{}
	}

	entries := map[int]string{}
	if start, ok := locateReferenceSection(text); ok {
		entries = segmentEntries(text[start:])
	}
	if len(entries) == 0 {
		entries = inlineFallbackEntries(text, markers)
	}

	extractions := make([]Extraction, 0, len(entries))
	for refNum, entry := range entries {
		extractions = append(extractions, Extraction{
			ReferenceNumber: refNum,
			Citation:        p.parseEntry(entry),
			Positions:       markers[refNum],
		})
	}

	sort.Slice(extractions, func(i, j int) bool {
		return extractions[i].ReferenceNumber < extractions[j].ReferenceNumber
	})

	logger.Debug("Citations parsed",
		zap.Int("markers", len(markers)),
		zap.Int("extractions", len(extractions)),
	)

	return extractions
}

// scanMarkers records every [n] occurrence grouped by reference number.
func scanMarkers(text string) map[int][]int {
	markers := make(map[int][]int)
	for _, m := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		markers[n] = append(markers[n], m[0])
	}
	return markers
}

// locateReferenceSection finds where the trailing reference block begins.
// A header line wins; otherwise a run of entry-shaped lines in the later
// half of the document is accepted, starting at the paragraph boundary
// preceding the first such line.
func locateReferenceSection(text string) (int, bool) {
	if loc := sectionHeaderPattern.FindStringIndex(text); loc != nil {
		return loc[1], true
	}

	loc := entryLinePattern.FindStringIndex(text)
	if loc == nil || loc[0] < len(text)/2 {
		return 0, false
	}

	start := 0
	if idx := strings.LastIndex(text[:loc[0]], "\n\n"); idx >= 0 {
		start = idx
	}
	return start, true
}

// segmentEntries splits the reference section on line breaks that begin a
// new [n] marker and keeps one trimmed entry per reference number.
func segmentEntries(section string) map[int]string {
	starts := entryStartPattern.FindAllStringSubmatchIndex(section, -1)

	entries := make(map[int]string, len(starts))
	for i, m := range starts {
		end := len(section)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}

		refNum, err := strconv.Atoi(section[m[2]:m[3]])
		if err != nil {
			continue
		}

		entry := strings.TrimSpace(section[m[1]:end])
		if len(entry) < minEntryLength {
			continue
		}

		if _, exists := entries[refNum]; !exists {
			entries[refNum] = entry
		}
	}
	return entries
}

// inlineFallbackEntries captures the text trailing each inline marker up to
// the next marker or end of text. Lower quality than a proper reference
// section, but better than dropping the citation.
func inlineFallbackEntries(text string, markers map[int][]int) map[int]string {
	all := markerPattern.FindAllStringSubmatchIndex(text, -1)

	entries := make(map[int]string)
	for i, m := range all {
		refNum, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}

		end := len(text)
		if i+1 < len(all) {
			end = all[i+1][0]
		}

		span := strings.TrimSpace(text[m[1]:end])
		span = strings.TrimLeft(span, ":,;- ")
		if len(span) < minEntryLength {
			continue
		}
		// Ordinary prose follows most inline markers; a year token is the
		// cheapest signal that the span is an actual citation.
		if !yearPattern.MatchString(span) {
			continue
		}

		// Later occurrences overwrite earlier ones: the span nearest the
		// end of the document is the most citation-shaped.
		entries[refNum] = span
	}

	// Keep only reference numbers that actually appear inline.
	for refNum := range entries {
		if _, ok := markers[refNum]; !ok {
			delete(entries, refNum)
		}
	}

	return entries
}

// parseEntry runs the strategy cascade over one entry. DOI and URL are
// attached independently of the structural match. When nothing matches,
// the raw entry text becomes the title.
func (p *Parser) parseEntry(entry string) ParsedCitation {
	for _, strategy := range p.strategies {
		cit, ok := strategy.TryParse(entry)
		if !ok {
			continue
		}
		if strings.TrimSpace(cit.Title) == "" {
			cit.Title = entry
		}
		attachLinks(&cit, entry)
		return cit
	}

	cit := ParsedCitation{Title: entry}
	attachLinks(&cit, entry)
	return cit
}
