package citations

import (
	"regexp"
	"strings"
)

// ParsedCitation is the structured form of one reference entry. Title is
// always populated; everything else is best effort. Extra tolerates
// unexpected fields without losing them.
type ParsedCitation struct {
	Title   string
	Authors string
	Journal string
	Year    string
	DOI     string
	URL     string
	Extra   map[string]string
}

// FormatStrategy is one tagged parser in the cascade. Strategies are tried
// in order and the first success wins.
type FormatStrategy interface {
	Name() string
	TryParse(entry string) (ParsedCitation, bool)
}

func defaultStrategies() []FormatStrategy {
	return []FormatStrategy{
		StandardFormat{},
		AbbreviatedFormat{},
		TitleFirstFormat{},
		FallbackSplit{},
	}
}

var (
	doiPattern  = regexp.MustCompile(`\b10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)
	urlPattern  = regexp.MustCompile(`https?://[^\s)\]">]+`)
	yearPattern = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

	standardPattern    = regexp.MustCompile(`^(.+?),\s*(.+?),\s*([^,]+?)\s*\((\d{4})\)\.?$`)
	abbreviatedPattern = regexp.MustCompile(`^(.+?)\.\s*"(.+?)\.?"\s*(.+?)\s*\((\d{4})\)\.?$`)
	titleFirstPattern  = regexp.MustCompile(`^"(.+?)\.?"\s*(.+?),\s*(.+?)\s*\((\d{4})\)\.?$`)
)

// StandardFormat parses `Authors, Title, Journal (Year)`.
type StandardFormat struct{}

func (StandardFormat) Name() string { return "standard" }

func (StandardFormat) TryParse(entry string) (ParsedCitation, bool) {
	m := standardPattern.FindStringSubmatch(entry)
	if m == nil {
		return ParsedCitation{}, false
	}
	return ParsedCitation{
		Authors: strings.TrimSpace(m[1]),
		Title:   strings.TrimSpace(m[2]),
		Journal: strings.TrimSpace(m[3]),
		Year:    m[4],
	}, true
}

// AbbreviatedFormat parses `Authors. "Title." J. Abbr. (Year)`.
type AbbreviatedFormat struct{}

func (AbbreviatedFormat) Name() string { return "abbreviated" }

func (AbbreviatedFormat) TryParse(entry string) (ParsedCitation, bool) {
	m := abbreviatedPattern.FindStringSubmatch(entry)
	if m == nil {
		return ParsedCitation{}, false
	}
	return ParsedCitation{
		Authors: strings.TrimSpace(m[1]),
		Title:   strings.TrimSpace(m[2]),
		Journal: strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[3]), ".")),
		Year:    m[4],
	}, true
}

// TitleFirstFormat parses `"Title." Authors, Journal (Year)`.
type TitleFirstFormat struct{}

func (TitleFirstFormat) Name() string { return "title-first" }

func (TitleFirstFormat) TryParse(entry string) (ParsedCitation, bool) {
	m := titleFirstPattern.FindStringSubmatch(entry)
	if m == nil {
		return ParsedCitation{}, false
	}
	return ParsedCitation{
		Title:   strings.TrimSpace(m[1]),
		Authors: strings.TrimSpace(m[2]),
		Journal: strings.TrimSpace(m[3]),
		Year:    m[4],
	}, true
}

// FallbackSplit breaks the entry on commas and periods and assigns
// author/title/journal positionally, scanning the later parts for a
// four-digit year token.
type FallbackSplit struct{}

func (FallbackSplit) Name() string { return "fallback-split" }

func (FallbackSplit) TryParse(entry string) (ParsedCitation, bool) {
	raw := regexp.MustCompile(`[.,]`).Split(entry, -1)

	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 3 {
		return ParsedCitation{}, false
	}

	cit := ParsedCitation{
		Authors: parts[0],
		Title:   parts[1],
	}

	yearIdx := -1
	for i := 2; i < len(parts); i++ {
		if y := yearPattern.FindString(parts[i]); y != "" {
			cit.Year = y
			yearIdx = i
			break
		}
	}
	if yearIdx == -1 {
		return ParsedCitation{}, false
	}
	if yearIdx > 2 {
		cit.Journal = parts[2]
	}

	return cit, true
}

// attachLinks pulls DOI and URL out of the raw entry independently of
// whichever structural pattern matched.
func attachLinks(cit *ParsedCitation, entry string) {
	if doi := doiPattern.FindString(entry); doi != "" {
		cit.DOI = strings.TrimRight(doi, ".")
	}
	if url := urlPattern.FindString(entry); url != "" {
		cit.URL = strings.TrimRight(url, ".")
	}
}
