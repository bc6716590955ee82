package ranking

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/medassist/backend/internal/retrieval"
)

const (
	phraseBoost  = 0.20
	termBoost    = 0.05
	recencyBoost = 0.10

	// Metadata years this many calendar years back still count as recent.
	recencyWindowYears = 2
)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// RankedPassage wraps a retrieved passage with its lexically enhanced
// score. The underlying passage is not mutated.
type RankedPassage struct {
	retrieval.Passage
	EnhancedScore float64
}

// Ranker re-scores similarity hits with lexical heuristics. It performs no
// I/O; the clock is injected so the recency boost is testable.
type Ranker struct {
	now func() time.Time
}

func NewRanker() *Ranker {
	return &Ranker{now: time.Now}
}

// NewRankerWithClock is used by tests to pin the recency boost.
func NewRankerWithClock(now func() time.Time) *Ranker {
	return &Ranker{now: now}
}

// Rank scores each passage starting from its similarity, boosting for a
// full query-phrase match, per-term matches, and recent publication year.
// Scores are capped at 1.0. Output is sorted by enhanced score descending,
// ties broken by original similarity descending, then passage ID ascending.
func (r *Ranker) Rank(passages []retrieval.Passage, queryText string) []RankedPassage {
	if len(passages) == 0 {
		return []RankedPassage{}
	}

	lowerQuery := strings.ToLower(strings.TrimSpace(queryText))
	queryTerms := distinctLongTerms(lowerQuery)
	currentYear := r.now().Year()

	ranked := make([]RankedPassage, 0, len(passages))
	for _, p := range passages {
		score := p.Similarity
		lowerContent := strings.ToLower(p.Content)

		if lowerQuery != "" && strings.Contains(lowerContent, lowerQuery) {
			score += phraseBoost
		}

		for _, term := range queryTerms {
			if strings.Contains(lowerContent, term) {
				score += termBoost
			}
		}

		if isRecent(p.Metadata.Year, currentYear) {
			score += recencyBoost
		}

		if score > 1.0 {
			score = 1.0
		}

		ranked = append(ranked, RankedPassage{Passage: p, EnhancedScore: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].EnhancedScore != ranked[j].EnhancedScore {
			return ranked[i].EnhancedScore > ranked[j].EnhancedScore
		}
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].ID < ranked[j].ID
	})

	return ranked
}

// distinctLongTerms strips punctuation and returns the deduplicated query
// terms longer than three characters.
func distinctLongTerms(lowerQuery string) []string {
	cleaned := punctuation.ReplaceAllString(lowerQuery, " ")

	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= 3 {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

func isRecent(yearField string, currentYear int) bool {
	year, err := strconv.Atoi(strings.TrimSpace(yearField))
	if err != nil {
		return false
	}
	return year >= currentYear-recencyWindowYears && year <= currentYear
}
