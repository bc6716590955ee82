package terms

import (
	"regexp"
	"sort"
	"strings"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/medassist/backend/pkg/logger"
)

// clinicalVocabulary is the curated term list matched case-insensitively
// against query text. Matches bias retrieval toward the named concepts.
var clinicalVocabulary = []string{
	"hypertension",
	"hypotension",
	"diabetes",
	"insulin",
	"myocardial infarction",
	"stroke",
	"sepsis",
	"pneumonia",
	"asthma",
	"copd",
	"anticoagulation",
	"warfarin",
	"heparin",
	"metformin",
	"statin",
	"beta blocker",
	"ace inhibitor",
	"antibiotic",
	"chemotherapy",
	"dialysis",
	"creatinine",
	"hemoglobin",
	"troponin",
	"tachycardia",
	"bradycardia",
	"arrhythmia",
	"atrial fibrillation",
	"heart failure",
	"renal failure",
	"hepatitis",
	"cirrhosis",
	"anemia",
	"thrombosis",
	"embolism",
	"pregnancy",
	"contraindication",
	"dosage",
	"titration",
	"prophylaxis",
	"palliative",
}

var (
	// 5 mg, 0.25 mcg/kg, 120 mmHg, 98.6 F, 2 L
	measurementPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:mg|mcg|g|kg|ml|l|mmol/l|mg/dl|mmhg|bpm|units?|iu|meq)\b`)
	// 10 mg/day, 5 mg/kg, 2 tablets twice daily
	dosagePattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:mg|mcg|g|ml|units?|iu)\s?/\s?(?:day|kg|dose|hr?|week)\b`)
	// Short all-uppercase tokens read as clinical abbreviations (CT, MRI, CHF).
	abbreviationPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
)

// Extractor pulls candidate clinical terms out of a free-text query.
// It never performs I/O and treats empty input as "no terms found".
type Extractor struct {
	vocabulary []string
}

func NewExtractor() *Extractor {
	return &Extractor{vocabulary: clinicalVocabulary}
}

// Extract returns the deduplicated set of domain terms found in the query,
// sorted for deterministic output. Terms are lowercased except preserved
// abbreviations.
func (e *Extractor) Extract(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}
	}

	seen := make(map[string]struct{})
	add := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" {
			return
		}
		seen[term] = struct{}{}
	}

	lowerQuery := strings.ToLower(query)
	for _, term := range e.vocabulary {
		if strings.Contains(lowerQuery, term) {
			add(term)
		}
	}

	for _, m := range measurementPattern.FindAllString(query, -1) {
		add(strings.ToLower(m))
	}
	for _, m := range dosagePattern.FindAllString(query, -1) {
		add(strings.ToLower(m))
	}
	for _, m := range abbreviationPattern.FindAllString(query, -1) {
		add(m)
	}

	for _, ent := range namedEntities(query) {
		add(strings.ToLower(ent))
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	logger.Debug("Terms extracted", zap.Int("count", len(terms)))

	return terms
}

// namedEntities runs prose NER over the query. Tokenization failures are
// treated as "no entities", never surfaced.
func namedEntities(query string) []string {
	doc, err := prose.NewDocument(query)
	if err != nil {
		logger.Debug("NER skipped", zap.Error(err))
		return nil
	}

	var entities []string
	for _, ent := range doc.Entities() {
		entities = append(entities, ent.Text)
	}
	return entities
}
