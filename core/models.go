package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so that identical logical
// objects always map to the same identifier.
type ID uint64

// String renders the ID as an unsigned decimal, the form used in index
// metadata and log output.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentID derives the ID for a document version from its source identifier
// and version number. Superseding versions get distinct IDs.
func DocumentID(sourceID string, version int) ID {
	return IDFromContent(fmt.Sprintf("doc:%s:%d", sourceID, version))
}

// SegmentID derives the ID for a segment from its owning document and position.
func SegmentID(documentID ID, position int) ID {
	return IDFromContent(fmt.Sprintf("seg:%d:%d", documentID, position))
}

// EntityID derives the canonical ID for an entity from its normalized name and type.
func EntityID(normalizedName string, entityType EntityType) ID {
	return IDFromContent("(" + string(entityType) + "," + normalizedName + ")")
}

// RelationID derives the canonical ID for a relation from its ordered endpoint
// pair and type.
func RelationID(sourceID, targetID ID, relationType RelationType) ID {
	return IDFromContent(fmt.Sprintf("(%d,%s,%d)", sourceID, relationType, targetID))
}

// ContentType identifies the format of a document's raw content.
type ContentType string

const (
	ContentTypeText ContentType = "text"
	ContentTypePDF  ContentType = "pdf"
	ContentTypeHTML ContentType = "html"
	ContentTypeJSON ContentType = "json"
	ContentTypeXML  ContentType = "xml"
)

// SegmentKind categorizes a segment within a document.
type SegmentKind string

const (
	SegmentKindParagraph    SegmentKind = "paragraph"
	SegmentKindHeading      SegmentKind = "heading"
	SegmentKindTable        SegmentKind = "table"
	SegmentKindList         SegmentKind = "list"
	SegmentKindFigure       SegmentKind = "figure"
	SegmentKindCode         SegmentKind = "code"
	SegmentKindQuote        SegmentKind = "quote"
	SegmentKindAbstract     SegmentKind = "abstract"
	SegmentKindIntroduction SegmentKind = "introduction"
	SegmentKindMethod       SegmentKind = "method"
	SegmentKindResult       SegmentKind = "result"
	SegmentKindDiscussion   SegmentKind = "discussion"
	SegmentKindConclusion   SegmentKind = "conclusion"
	SegmentKindReference    SegmentKind = "reference"
)

// EntityType categorizes a canonical entity. The set is closed; extraction
// output that matches none of the known types maps to EntityTypeOther with the
// raw label preserved in Entity.Subtype.
type EntityType string

const (
	EntityTypeConcept      EntityType = "concept"
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeTechnology   EntityType = "technology"
	EntityTypeProduct      EntityType = "product"
	EntityTypeMethod       EntityType = "method"
	EntityTypeDataset      EntityType = "dataset"
	EntityTypeAlgorithm    EntityType = "algorithm"
	EntityTypeTerm         EntityType = "term"
	EntityTypeLocation     EntityType = "location"
	EntityTypeEvent        EntityType = "event"
	EntityTypePaper        EntityType = "paper"
	EntityTypeJournal      EntityType = "journal"
	EntityTypeConference   EntityType = "conference"
	EntityTypeOther        EntityType = "other"
)

// EntityTypes lists all valid entity types, excluding the catch-all.
var EntityTypes = []EntityType{
	EntityTypeConcept,
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeTechnology,
	EntityTypeProduct,
	EntityTypeMethod,
	EntityTypeDataset,
	EntityTypeAlgorithm,
	EntityTypeTerm,
	EntityTypeLocation,
	EntityTypeEvent,
	EntityTypePaper,
	EntityTypeJournal,
	EntityTypeConference,
}

// ParseEntityType maps a raw type label to a known EntityType.
// Unknown labels map to EntityTypeOther; the second return value reports
// whether the label matched a known type.
func ParseEntityType(label string) (EntityType, bool) {
	for _, t := range EntityTypes {
		if string(t) == label {
			return t, true
		}
	}
	return EntityTypeOther, false
}

// RelationType categorizes a canonical relation between two entities.
type RelationType string

const (
	RelationTypeIncludes   RelationType = "includes"
	RelationTypeUses       RelationType = "uses"
	RelationTypeOpposes    RelationType = "opposes"
	RelationTypeSimilarTo  RelationType = "similar_to"
	RelationTypePrecedes   RelationType = "precedes"
	RelationTypeCauses     RelationType = "causes"
	RelationTypePartOf     RelationType = "part_of"
	RelationTypeCites      RelationType = "cites"
	RelationTypeAuthoredBy RelationType = "authored_by"
	RelationTypeBasedOn    RelationType = "based_on"
	RelationTypeImproves   RelationType = "improves"
	RelationTypeRelatesTo  RelationType = "relates_to"
	RelationTypeOther      RelationType = "other"
)

// RelationTypes lists all valid relation types, excluding the catch-all.
var RelationTypes = []RelationType{
	RelationTypeIncludes,
	RelationTypeUses,
	RelationTypeOpposes,
	RelationTypeSimilarTo,
	RelationTypePrecedes,
	RelationTypeCauses,
	RelationTypePartOf,
	RelationTypeCites,
	RelationTypeAuthoredBy,
	RelationTypeBasedOn,
	RelationTypeImproves,
	RelationTypeRelatesTo,
}

// ParseRelationType maps a raw type label to a known RelationType.
// Unknown labels map to RelationTypeOther; the second return value reports
// whether the label matched a known type.
func ParseRelationType(label string) (RelationType, bool) {
	for _, t := range RelationTypes {
		if string(t) == label {
			return t, true
		}
	}
	return RelationTypeOther, false
}

// Document represents one ingested document version. Documents are immutable
// once stored; a superseding version is a new Document linked to the prior one
// through SupersedesId.
type Document struct {
	Id           ID
	SourceId     string
	Title        string
	Authors      []string
	Text         string
	ContentType  ContentType
	Language     string
	Version      int
	SupersedesId ID // 0 when this is the first version
	Metadata     map[string]string
	InsertedAt   time.Time
	UpdatedAt    time.Time
}

// Segment represents a contiguous, positioned slice of a document's text.
// Segments of a document partition its text: positions increase strictly from
// 0 and the contents joined in position order reconstruct the document text.
type Segment struct {
	Id         ID
	DocumentId ID
	Content    string
	Kind       SegmentKind
	Position   int
	Vector     []float32 // Embedding vector (populated by the indexing stage)
	InsertedAt time.Time
}

// Entity represents a canonical, deduplicated knowledge entity.
type Entity struct {
	Id          ID
	Name        string
	Type        EntityType
	Subtype     string // Raw label when Type is EntityTypeOther
	Aliases     []string
	Description string
	Provenance  []ID // Segment IDs supporting this entity
	Confidence  float64
	// DescriptionConfidence is the confidence of the contributor that
	// supplied Description. The merge keeps the description from the
	// highest-confidence contributor, not the running average.
	DescriptionConfidence float64
	Vector                []float32 // Embedding vector (populated by the indexing stage)
	NeedsReview bool      // Set when an ambiguous merge was declined
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// Relation represents a canonical, typed edge between two entities.
// (SourceId, TargetId, Type) is unique among canonical relations and
// SourceId differs from TargetId.
type Relation struct {
	Id          ID
	SourceId    ID
	TargetId    ID
	Type        RelationType
	Subtype     string // Raw label when Type is RelationTypeOther
	Description string
	Provenance  []ID // Segment IDs supporting this relation
	Confidence  float64
	// DescriptionConfidence mirrors Entity.DescriptionConfidence.
	DescriptionConfidence float64
	InsertedAt            time.Time
	UpdatedAt             time.Time
}

// EntityCandidate is an unresolved entity proposal produced by an extractor.
// It carries exactly one provenance segment and the extractor's raw confidence.
type EntityCandidate struct {
	Name        string
	Type        EntityType
	Subtype     string
	Description string
	SegmentId   ID
	Confidence  float64
}

// RelationCandidate is an unresolved relation proposal between two entities
// observed in the same segment. Endpoint IDs refer to resolved canonical
// entities at extraction time; the relation resolver re-keys them if either
// endpoint was merged into a different canonical entity afterwards.
type RelationCandidate struct {
	SourceId    ID
	TargetId    ID
	Type        RelationType
	Subtype     string
	Description string
	SegmentId   ID
	Confidence  float64
}

// Stage identifies one phase of the processing pipeline.
type Stage string

const (
	StageSegmenting Stage = "segmenting"
	StageExtracting Stage = "extracting"
	StageResolving  Stage = "resolving"
	StageIndexing   Stage = "indexing"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageSegmenting, StageExtracting, StageResolving, StageIndexing}

// StageStatus is the status of a single pipeline stage within a Job.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// JobState is the overall state of a processing Job.
type JobState string

const (
	JobStatePending       JobState = "pending"
	JobStateRunning       JobState = "running"
	JobStateDone          JobState = "done"
	JobStateFailedPartial JobState = "failed-partial"
)

// Job tracks the processing of one document through the pipeline.
// Jobs are mutated only by the pipeline coordinator and retained after
// completion for auditability.
type Job struct {
	Id         string // UUID
	DocumentId ID
	State      JobState
	Segmenting StageStatus
	Extracting StageStatus
	Resolving  StageStatus
	Indexing   StageStatus
	Errors     []string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// StageStatus returns the status of the named stage.
func (j *Job) StageStatus(stage Stage) StageStatus {
	switch stage {
	case StageSegmenting:
		return j.Segmenting
	case StageExtracting:
		return j.Extracting
	case StageResolving:
		return j.Resolving
	case StageIndexing:
		return j.Indexing
	}
	return ""
}

// SetStageStatus sets the status of the named stage.
func (j *Job) SetStageStatus(stage Stage, status StageStatus) {
	switch stage {
	case StageSegmenting:
		j.Segmenting = status
	case StageExtracting:
		j.Extracting = status
	case StageResolving:
		j.Resolving = status
	case StageIndexing:
		j.Indexing = status
	}
}

// Checkpoint records how far a batch processor has progressed, so an
// interrupted run resumes where it stopped instead of starting over.
type Checkpoint struct {
	ProcessorType   string
	LastProcessedID ID
	ProcessedCount  int64
	UpdatedAt       time.Time
}
