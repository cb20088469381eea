package rule

import (
	"context"
	"strings"
	"unicode"

	"github.com/poiesic/gnosis/ai"
)

// typeHints maps lowercase cue words to the entity type they suggest. When a
// candidate phrase contains one of these words, or is immediately followed by
// one, the hint wins over the default "concept" label.
var typeHints = map[string]string{
	"algorithm":  "algorithm",
	"model":      "method",
	"method":     "method",
	"approach":   "method",
	"technique":  "method",
	"dataset":    "dataset",
	"corpus":     "dataset",
	"benchmark":  "dataset",
	"metric":     "term",
	"score":      "term",
	"accuracy":   "term",
	"task":       "concept",
	"problem":    "concept",
	"tool":       "technology",
	"library":    "technology",
	"framework":  "technology",
	"system":     "technology",
	"university": "organization",
	"institute":  "organization",
	"laboratory": "organization",
	"conference": "conference",
	"workshop":   "conference",
	"theory":     "concept",
	"theorem":    "concept",
	"journal":    "journal",
}

// stopWords are sentence-initial words that look like proper nouns only
// because of capitalization.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true,
	"these": true, "those": true, "we": true, "our": true, "it": true,
	"in": true, "on": true, "for": true, "with": true, "however": true,
	"therefore": true, "furthermore": true, "moreover": true, "finally": true,
	"first": true, "second": true, "third": true, "table": true,
	"figure": true, "section": true, "as": true, "to": true, "by": true,
}

// EntityExtractor proposes entities with surface-level heuristics: runs of
// capitalized words, all-caps acronyms, and type cue words. It needs no
// network access and is deterministic, which makes it the default strategy for
// offline deployments and the fast first pass when chained with a model-based
// extractor.
type EntityExtractor struct {
	minConfidence float64
}

var _ ai.EntityExtractor = (*EntityExtractor)(nil)

// NewEntityExtractor creates a rule-based entity extractor.
// Proposals below minConfidence are dropped.
func NewEntityExtractor(minConfidence float64) *EntityExtractor {
	return &EntityExtractor{minConfidence: minConfidence}
}

// ExtractEntities scans the text for capitalized phrases and acronyms.
// Duplicate surface forms within one call are collapsed, keeping the highest
// confidence. The error is always nil; the signature matches the interface.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
	seen := make(map[string]int) // surface form -> index into result
	var result []ai.ExtractedEntity

	add := func(entity ai.ExtractedEntity) {
		if entity.Confidence < e.minConfidence {
			return
		}
		key := strings.ToLower(entity.Name)
		if i, ok := seen[key]; ok {
			if entity.Confidence > result[i].Confidence {
				result[i] = entity
			}
			return
		}
		seen[key] = len(result)
		result = append(result, entity)
	}

	for _, sentence := range splitSentences(text) {
		words := strings.Fields(sentence)
		for i := 0; i < len(words); i++ {
			word := trimWord(words[i])
			if word == "" {
				continue
			}

			if isAcronym(word) {
				add(ai.ExtractedEntity{
					Name:       word,
					Type:       "technology",
					Confidence: 0.8,
				})
				continue
			}

			if !isCapitalized(word) {
				continue
			}
			// A capitalized sentence opener is not evidence by itself.
			if i == 0 && stopWords[strings.ToLower(word)] {
				continue
			}
			if stopWords[strings.ToLower(word)] {
				continue
			}

			// Extend the phrase over consecutive capitalized words.
			phrase := []string{word}
			j := i + 1
			for j < len(words) {
				next := trimWord(words[j])
				if next == "" || !(isCapitalized(next) || isAcronym(next)) {
					break
				}
				phrase = append(phrase, next)
				j++
			}

			name := strings.Join(phrase, " ")
			confidence := 0.6
			if len(phrase) > 1 {
				// Multi-word capitalized runs are rarely accidents.
				confidence = 0.75
			}

			entityType := "concept"
			if hint := hintFor(phrase, words, j); hint != "" {
				entityType = hint
				confidence += 0.1
			}

			add(ai.ExtractedEntity{
				Name:       name,
				Type:       entityType,
				Confidence: confidence,
			})
			i = j - 1
		}
	}

	if result == nil {
		result = []ai.ExtractedEntity{}
	}
	return result, nil
}

// hintFor checks the phrase itself and the word following it for type cues.
func hintFor(phrase []string, words []string, next int) string {
	for _, w := range phrase {
		if hint, ok := typeHints[strings.ToLower(w)]; ok {
			return hint
		}
	}
	if next < len(words) {
		if hint, ok := typeHints[strings.ToLower(trimWord(words[next]))]; ok {
			return hint
		}
	}
	return ""
}

func trimWord(w string) string {
	return strings.Trim(w, ".,!?;:\"'()[]{}")
}

func isCapitalized(w string) bool {
	r := []rune(w)
	if len(r) < 2 {
		return false
	}
	return unicode.IsUpper(r[0]) && unicode.IsLower(r[1])
}

func isAcronym(w string) bool {
	if len(w) < 2 || len(w) > 10 {
		return false
	}
	upper := 0
	for _, r := range w {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsDigit(r) || r == '-':
		default:
			return false
		}
	}
	return upper >= 2
}

// splitSentences breaks text on sentence-final punctuation. Good enough for
// heuristic extraction; the resolver tolerates over-splitting.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
