package segment

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gnosis/core"
)

func testDocument(text string) *core.Document {
	return &core.Document{
		Id:       core.DocumentID("test-doc", 1),
		SourceId: "test-doc",
		Text:     text,
	}
}

func TestSegment_InlineSectionMarkers(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	doc := testDocument("Abstract: we study X and its properties. Introduction: X relates to Y in several ways.")
	segments, err := s.Segment(doc)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, core.SegmentKindAbstract, segments[0].Kind)
	assert.Contains(t, segments[0].Content, "we study X")
	assert.Equal(t, core.SegmentKindIntroduction, segments[1].Kind)
	assert.Contains(t, segments[1].Content, "X relates to Y")
}

func TestSegment_HeadingLines(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	text := "Abstract\nWe study things.\n\n1. Introduction\nThings are interesting.\n\n2. Methods\nWe measured them.\n\n3. Conclusion\nThings confirmed."
	segments, err := s.Segment(testDocument(text))
	require.NoError(t, err)
	require.Len(t, segments, 4)

	assert.Equal(t, core.SegmentKindAbstract, segments[0].Kind)
	assert.Equal(t, core.SegmentKindIntroduction, segments[1].Kind)
	assert.Equal(t, core.SegmentKindMethod, segments[2].Kind)
	assert.Equal(t, core.SegmentKindConclusion, segments[3].Kind)
}

func TestSegment_ParagraphFallback(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	text := "First paragraph of plain prose.\n\nSecond paragraph continues.\n\nThird paragraph ends."
	segments, err := s.Segment(testDocument(text))
	require.NoError(t, err)
	require.Len(t, segments, 3)

	for _, seg := range segments {
		assert.Equal(t, core.SegmentKindParagraph, seg.Kind)
	}
}

func TestSegment_Positions(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	text := "Alpha.\n\nBravo.\n\nCharlie.\n\nDelta."
	segments, err := s.Segment(testDocument(text))
	require.NoError(t, err)

	for i, seg := range segments {
		assert.Equal(t, i, seg.Position)
		assert.Equal(t, core.SegmentID(seg.DocumentId, i), seg.Id)
	}
}

func TestSegment_PartitionReconstructsText(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	text := "Abstract\nWe study things.\n\nIntroduction\nThings are interesting.\n\nConclusion\nThings confirmed."
	segments, err := s.Segment(testDocument(text))
	require.NoError(t, err)

	// Concatenation in position order reconstructs the text modulo the
	// whitespace consumed at split boundaries.
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Content)
		b.WriteString(" ")
	}
	normalize := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	assert.Equal(t, normalize(text), normalize(b.String()))
}

func TestSegment_SingleParagraph(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	segments, err := s.Segment(testDocument("Just one block of text with no structure at all."))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, 0, segments[0].Position)
	assert.Equal(t, core.SegmentKindParagraph, segments[0].Kind)
}

func TestSegment_NoExtractableText(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	tests := []string{"", "   ", "\n\n\t\n"}
	for _, text := range tests {
		_, err := s.Segment(testDocument(text))
		assert.True(t, errors.Is(err, ErrNoExtractableText))
	}
}

func TestSegment_LeadingTextBeforeFirstMarker(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	text := "Some title line.\n\nIntroduction\nThe intro.\n\nMethods\nThe methods."
	segments, err := s.Segment(testDocument(text))
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, core.SegmentKindParagraph, segments[0].Kind)
	assert.Contains(t, segments[0].Content, "Some title line")
	assert.Equal(t, core.SegmentKindIntroduction, segments[1].Kind)
}

func TestWithMinStructuralUnits(t *testing.T) {
	_, err := New(WithMinStructuralUnits(0))
	assert.Error(t, err)

	s, err := New(WithMinStructuralUnits(3))
	require.NoError(t, err)

	// Two structural units is below the threshold, so paragraph splitting wins.
	text := "Introduction\nThe intro.\n\nMethods\nThe methods."
	segments, err := s.Segment(testDocument(text))
	require.NoError(t, err)
	for _, seg := range segments {
		assert.Equal(t, core.SegmentKindParagraph, seg.Kind)
	}
}
