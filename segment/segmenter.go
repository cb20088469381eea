// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package segment

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/gnosis/core"
)

// sectionKinds maps recognized section names to segment kinds.
var sectionKinds = map[string]core.SegmentKind{
	"abstract":     core.SegmentKindAbstract,
	"summary":      core.SegmentKindAbstract,
	"introduction": core.SegmentKindIntroduction,
	"background":   core.SegmentKindIntroduction,
	"related work": core.SegmentKindIntroduction,
	"method":       core.SegmentKindMethod,
	"methods":      core.SegmentKindMethod,
	"methodology":  core.SegmentKindMethod,
	"approach":     core.SegmentKindMethod,
	"experiment":   core.SegmentKindResult,
	"experiments":  core.SegmentKindResult,
	"result":       core.SegmentKindResult,
	"results":      core.SegmentKindResult,
	"evaluation":   core.SegmentKindResult,
	"discussion":   core.SegmentKindDiscussion,
	"conclusion":   core.SegmentKindConclusion,
	"conclusions":  core.SegmentKindConclusion,
	"references":   core.SegmentKindReference,
	"bibliography": core.SegmentKindReference,
}

var sectionNames = func() string {
	names := make([]string, 0, len(sectionKinds))
	for name := range sectionKinds {
		names = append(names, name)
	}
	sort.Strings(names)
	// Longest first so "conclusions" wins over "conclusion"
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return strings.Join(names, "|")
}()

// headingPattern matches a line that consists solely of an optional section
// number and a known section name: "1. Introduction", "Methods", "ABSTRACT".
var headingPattern = regexp.MustCompile(
	`(?mi)^[ \t]*(?:\d+(?:\.\d+)*[.)]?[ \t]+)?(` + sectionNames + `)[ \t]*:?[ \t]*$`)

// inlinePattern matches a section name followed by a colon inside running
// text: "Abstract: we study ...".
var inlinePattern = regexp.MustCompile(
	`(?i)(?:^|[\s])(` + sectionNames + `)[ \t]*:`)

// Segmenter splits a document's text into an ordered sequence of segments.
// It first attempts structural splitting on recognized section markers; when
// fewer than a minimum number of structural units are found it falls back to
// paragraph-boundary splitting. Segmenting has no side effects; persistence
// belongs to the pipeline.
type Segmenter struct {
	minStructuralUnits int
	logger             *slog.Logger
}

// Option is a functional option for configuring a Segmenter.
type Option func(*Segmenter) error

// WithMinStructuralUnits sets how many structural units a document must yield
// before structural splitting is preferred over paragraph splitting.
func WithMinStructuralUnits(n int) Option {
	return func(s *Segmenter) error {
		if n < 1 {
			return fmt.Errorf("min structural units must be at least 1, got %d", n)
		}
		s.minStructuralUnits = n
		return nil
	}
}

// New creates a Segmenter with the provided options.
func New(opts ...Option) (*Segmenter, error) {
	s := &Segmenter{
		minStructuralUnits: 2,
		logger:             slog.Default().With("component", "segmenter"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Segment splits the document text into ordered segments. Positions start at 0
// with no gaps; the concatenated contents reconstruct the document text modulo
// the whitespace consumed at split boundaries. Returns ErrNoExtractableText if
// the document has no text to split.
func (s *Segmenter) Segment(doc *core.Document) ([]*core.Segment, error) {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: document %d", ErrNoExtractableText, doc.Id)
	}

	units := splitStructural(text)
	if len(units) < s.minStructuralUnits {
		s.logger.Debug("falling back to paragraph splitting",
			"document", doc.Id,
			"structural_units", len(units))
		units = splitParagraphs(text)
	}

	now := time.Now()
	segments := make([]*core.Segment, len(units))
	for i, unit := range units {
		segments[i] = &core.Segment{
			Id:         core.SegmentID(doc.Id, i),
			DocumentId: doc.Id,
			Content:    unit.content,
			Kind:       unit.kind,
			Position:   i,
			InsertedAt: now,
		}
	}

	s.logger.Debug("segmented document",
		"document", doc.Id,
		"segments", len(segments))
	return segments, nil
}

type unit struct {
	content string
	kind    core.SegmentKind
}

// splitStructural finds section markers (heading lines and inline "Name:"
// markers), and cuts the text at each marker. The marker text stays in its
// segment so the partition loses nothing but boundary whitespace. Text before
// the first marker becomes a plain paragraph unit.
func splitStructural(text string) []unit {
	type marker struct {
		start int
		kind  core.SegmentKind
	}
	var markers []marker

	for _, m := range headingPattern.FindAllStringSubmatchIndex(text, -1) {
		name := strings.ToLower(text[m[2]:m[3]])
		markers = append(markers, marker{start: m[0], kind: sectionKinds[name]})
	}
	for _, m := range inlinePattern.FindAllStringSubmatchIndex(text, -1) {
		name := strings.ToLower(text[m[2]:m[3]])
		markers = append(markers, marker{start: m[2], kind: sectionKinds[name]})
	}

	sort.Slice(markers, func(i, j int) bool { return markers[i].start < markers[j].start })

	// Heading and inline patterns can match the same marker; keep the first.
	deduped := markers[:0]
	lastEnd := -1
	for _, m := range markers {
		if m.start <= lastEnd {
			continue
		}
		deduped = append(deduped, m)
		lastEnd = m.start
	}
	markers = deduped

	if len(markers) == 0 {
		return nil
	}

	var units []unit
	if lead := strings.TrimSpace(text[:markers[0].start]); lead != "" {
		units = append(units, unit{content: lead, kind: core.SegmentKindParagraph})
	}
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		content := strings.TrimSpace(text[m.start:end])
		if content == "" {
			continue
		}
		units = append(units, unit{content: content, kind: m.kind})
	}
	return units
}

var paragraphBoundary = regexp.MustCompile(`\n[ \t]*\n`)

// splitParagraphs cuts the text at blank lines.
func splitParagraphs(text string) []unit {
	var units []unit
	for _, chunk := range paragraphBoundary.Split(text, -1) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		units = append(units, unit{content: chunk, kind: core.SegmentKindParagraph})
	}
	return units
}
