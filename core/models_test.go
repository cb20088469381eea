package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"same content produces same ID", "test content"},
		{"empty string", ""},
		{"long content", "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestEntityID_Deterministic(t *testing.T) {
	id1 := EntityID("neural network", EntityTypeTechnology)
	id2 := EntityID("neural network", EntityTypeTechnology)
	if id1 != id2 {
		t.Errorf("EntityID() not deterministic: %d vs %d", id1, id2)
	}

	other := EntityID("neural network", EntityTypeConcept)
	if id1 == other {
		t.Errorf("EntityID() ignored the entity type")
	}
}

func TestRelationID_Ordered(t *testing.T) {
	a := IDFromContent("a")
	b := IDFromContent("b")

	forward := RelationID(a, b, RelationTypeUses)
	backward := RelationID(b, a, RelationTypeUses)
	if forward == backward {
		t.Errorf("RelationID() should distinguish edge direction")
	}

	again := RelationID(a, b, RelationTypeUses)
	if forward != again {
		t.Errorf("RelationID() not deterministic: %d vs %d", forward, again)
	}
}

func TestSegmentID_PerPosition(t *testing.T) {
	doc := DocumentID("arxiv:1706.03762", 1)

	if SegmentID(doc, 0) == SegmentID(doc, 1) {
		t.Errorf("SegmentID() should differ per position")
	}
	if SegmentID(doc, 0) != SegmentID(doc, 0) {
		t.Errorf("SegmentID() not deterministic")
	}
}

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		label     string
		want      EntityType
		wantKnown bool
	}{
		{"technology", EntityTypeTechnology, true},
		{"person", EntityTypePerson, true},
		{"conference", EntityTypeConference, true},
		{"galaxy", EntityTypeOther, false},
		{"", EntityTypeOther, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, known := ParseEntityType(tt.label)
			if got != tt.want || known != tt.wantKnown {
				t.Errorf("ParseEntityType(%q) = (%v, %v), want (%v, %v)",
					tt.label, got, known, tt.want, tt.wantKnown)
			}
		})
	}
}

func TestParseRelationType(t *testing.T) {
	got, known := ParseRelationType("relates_to")
	if got != RelationTypeRelatesTo || !known {
		t.Errorf("ParseRelationType(relates_to) = (%v, %v)", got, known)
	}

	got, known = ParseRelationType("orbits")
	if got != RelationTypeOther || known {
		t.Errorf("ParseRelationType(orbits) = (%v, %v), want (other, false)", got, known)
	}
}

func TestJob_StageStatus(t *testing.T) {
	job := &Job{
		Segmenting: StageStatusSucceeded,
		Extracting: StageStatusRunning,
		Resolving:  StageStatusPending,
		Indexing:   StageStatusPending,
	}

	if got := job.StageStatus(StageExtracting); got != StageStatusRunning {
		t.Errorf("StageStatus(extracting) = %v, want running", got)
	}

	job.SetStageStatus(StageResolving, StageStatusFailed)
	if job.Resolving != StageStatusFailed {
		t.Errorf("SetStageStatus(resolving) did not update the field")
	}
}
