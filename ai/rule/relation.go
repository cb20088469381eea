package rule

import (
	"context"
	"strings"

	"github.com/poiesic/gnosis/ai"
)

// verbCues maps connective phrases to relation types. Longer phrases are
// listed explicitly so "is based on" wins over a bare "on".
var verbCues = []struct {
	cue  string
	typ  string
	swap bool // true when the surface order is target-first
}{
	{"is based on", "based_on", false},
	{"based on", "based_on", false},
	{"builds on", "based_on", false},
	{"extends", "based_on", false},
	{"improves on", "improves", false},
	{"improves", "improves", false},
	{"outperforms", "improves", false},
	{"uses", "uses", false},
	{"employs", "uses", false},
	{"applies", "uses", false},
	{"leverages", "uses", false},
	{"causes", "causes", false},
	{"leads to", "causes", false},
	{"results in", "causes", false},
	{"includes", "includes", false},
	{"contains", "includes", false},
	{"comprises", "includes", false},
	{"is part of", "part_of", false},
	{"belongs to", "part_of", false},
	{"cites", "cites", false},
	{"references", "cites", false},
	{"is similar to", "similar_to", false},
	{"resembles", "similar_to", false},
	{"contradicts", "opposes", false},
	{"conflicts with", "opposes", false},
	{"precedes", "precedes", false},
	{"predates", "precedes", false},
	{"is evaluated on", "uses", false},
	{"evaluated on", "uses", false},
	{"is proposed by", "authored_by", false},
	{"proposed by", "authored_by", false},
	{"introduced by", "authored_by", false},
}

// RelationExtractor proposes relations between known entity names using verb
// cues, falling back to sentence co-occurrence. It only ever relates names
// from the entities argument, so it cannot invent endpoints the entity pass
// did not produce.
type RelationExtractor struct {
	minConfidence float64
}

var _ ai.RelationExtractor = (*RelationExtractor)(nil)

// NewRelationExtractor creates a rule-based relation extractor.
func NewRelationExtractor(minConfidence float64) *RelationExtractor {
	return &RelationExtractor{minConfidence: minConfidence}
}

// ExtractRelations scans each sentence for pairs of known entities. A pair
// joined by a verb cue gets the cue's relation type; a pair merely sharing a
// sentence gets a low-confidence relates_to. The error is always nil.
func (e *RelationExtractor) ExtractRelations(ctx context.Context, text string, entities []string) ([]ai.ExtractedRelation, error) {
	if len(entities) < 2 {
		return []ai.ExtractedRelation{}, nil
	}

	type pairKey struct {
		source, target, typ string
	}
	seen := make(map[pairKey]bool)
	var result []ai.ExtractedRelation

	add := func(rel ai.ExtractedRelation) {
		if rel.Confidence < e.minConfidence || rel.Source == rel.Target {
			return
		}
		key := pairKey{strings.ToLower(rel.Source), strings.ToLower(rel.Target), rel.Type}
		if seen[key] {
			return
		}
		seen[key] = true
		result = append(result, rel)
	}

	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)

		// Entities present in this sentence, in order of appearance.
		type mention struct {
			name string
			pos  int
		}
		var mentions []mention
		for _, name := range entities {
			if pos := strings.Index(lower, strings.ToLower(name)); pos >= 0 {
				mentions = append(mentions, mention{name, pos})
			}
		}
		if len(mentions) < 2 {
			continue
		}

		for i := 0; i < len(mentions); i++ {
			for j := 0; j < len(mentions); j++ {
				if i == j || mentions[i].pos >= mentions[j].pos {
					continue
				}
				between := lower[mentions[i].pos+len(mentions[i].name) : mentions[j].pos]

				matched := false
				for _, cue := range verbCues {
					if !containsPhrase(between, cue.cue) {
						continue
					}
					source, target := mentions[i].name, mentions[j].name
					if cue.swap {
						source, target = target, source
					}
					add(ai.ExtractedRelation{
						Source:     source,
						Target:     target,
						Type:       cue.typ,
						Confidence: 0.7,
					})
					matched = true
					break
				}
				if !matched {
					add(ai.ExtractedRelation{
						Source:     mentions[i].name,
						Target:     mentions[j].name,
						Type:       "relates_to",
						Confidence: 0.35,
					})
				}
			}
		}
	}

	if result == nil {
		result = []ai.ExtractedRelation{}
	}
	return result, nil
}

// containsPhrase reports whether phrase occurs in s on word boundaries.
func containsPhrase(s, phrase string) bool {
	idx := strings.Index(s, phrase)
	for idx >= 0 {
		beforeOK := idx == 0 || !isWordByte(s[idx-1])
		end := idx + len(phrase)
		afterOK := end == len(s) || !isWordByte(s[end])
		if beforeOK && afterOK {
			return true
		}
		next := strings.Index(s[idx+1:], phrase)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
