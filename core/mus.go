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


package core

// MUS serializers for the persisted domain types. Field order and encodings
// are part of the on-disk format: append new fields at the end only.

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// IDMUS serializes IDs in MUS format.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

// DocumentMUS serializes Documents in MUS format.
var DocumentMUS = documentMUS{}

type documentMUS struct{}

func (documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.SourceId, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += marshalStringSlice(v.Authors, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(string(v.ContentType), bs[n:])
	n += ord.String.Marshal(v.Language, bs[n:])
	n += varint.Int.Marshal(v.Version, bs[n:])
	n += IDMUS.Marshal(v.SupersedesId, bs[n:])
	n += marshalStringMap(v.Metadata, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	var m int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.SourceId, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Title, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Authors, m, err = unmarshalStringSlice(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var s string
	if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	v.ContentType = ContentType(s)
	n += m
	if v.Language, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Version, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.SupersedesId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Metadata, m, err = unmarshalStringMap(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (documentMUS) Size(v Document) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.SourceId)
	size += ord.String.Size(v.Title)
	size += sizeStringSlice(v.Authors)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(string(v.ContentType))
	size += ord.String.Size(v.Language)
	size += varint.Int.Size(v.Version)
	size += IDMUS.Size(v.SupersedesId)
	size += sizeStringMap(v.Metadata)
	size += sizeTime(v.InsertedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

// SegmentMUS serializes Segments in MUS format.
var SegmentMUS = segmentMUS{}

type segmentMUS struct{}

func (segmentMUS) Marshal(v Segment, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.DocumentId, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(string(v.Kind), bs[n:])
	n += varint.Int.Marshal(v.Position, bs[n:])
	n += marshalVector(v.Vector, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	return n
}

func (segmentMUS) Unmarshal(bs []byte) (v Segment, n int, err error) {
	var m int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.DocumentId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Content, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var s string
	if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	v.Kind = SegmentKind(s)
	n += m
	if v.Position, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Vector, m, err = unmarshalVector(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (segmentMUS) Size(v Segment) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.DocumentId)
	size += ord.String.Size(v.Content)
	size += ord.String.Size(string(v.Kind))
	size += varint.Int.Size(v.Position)
	size += sizeVector(v.Vector)
	size += sizeTime(v.InsertedAt)
	return size
}

// EntityMUS serializes Entities in MUS format.
var EntityMUS = entityMUS{}

type entityMUS struct{}

func (entityMUS) Marshal(v Entity, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(string(v.Type), bs[n:])
	n += ord.String.Marshal(v.Subtype, bs[n:])
	n += marshalStringSlice(v.Aliases, bs[n:])
	n += ord.String.Marshal(v.Description, bs[n:])
	n += marshalIDSlice(v.Provenance, bs[n:])
	n += varint.Float64.Marshal(v.Confidence, bs[n:])
	n += marshalVector(v.Vector, bs[n:])
	n += ord.Bool.Marshal(v.NeedsReview, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	n += varint.Float64.Marshal(v.DescriptionConfidence, bs[n:])
	return n
}

func (entityMUS) Unmarshal(bs []byte) (v Entity, n int, err error) {
	var m int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var s string
	if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	v.Type = EntityType(s)
	n += m
	if v.Subtype, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Aliases, m, err = unmarshalStringSlice(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Description, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Provenance, m, err = unmarshalIDSlice(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Confidence, m, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Vector, m, err = unmarshalVector(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.NeedsReview, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.DescriptionConfidence, m, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (entityMUS) Size(v Entity) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(string(v.Type))
	size += ord.String.Size(v.Subtype)
	size += sizeStringSlice(v.Aliases)
	size += ord.String.Size(v.Description)
	size += sizeIDSlice(v.Provenance)
	size += varint.Float64.Size(v.Confidence)
	size += sizeVector(v.Vector)
	size += ord.Bool.Size(v.NeedsReview)
	size += sizeTime(v.InsertedAt)
	size += sizeTime(v.UpdatedAt)
	size += varint.Float64.Size(v.DescriptionConfidence)
	return size
}

// RelationMUS serializes Relations in MUS format.
var RelationMUS = relationMUS{}

type relationMUS struct{}

func (relationMUS) Marshal(v Relation, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.SourceId, bs[n:])
	n += IDMUS.Marshal(v.TargetId, bs[n:])
	n += ord.String.Marshal(string(v.Type), bs[n:])
	n += ord.String.Marshal(v.Subtype, bs[n:])
	n += ord.String.Marshal(v.Description, bs[n:])
	n += marshalIDSlice(v.Provenance, bs[n:])
	n += varint.Float64.Marshal(v.Confidence, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	n += varint.Float64.Marshal(v.DescriptionConfidence, bs[n:])
	return n
}

func (relationMUS) Unmarshal(bs []byte) (v Relation, n int, err error) {
	var m int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.SourceId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.TargetId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var s string
	if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	v.Type = RelationType(s)
	n += m
	if v.Subtype, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Description, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Provenance, m, err = unmarshalIDSlice(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Confidence, m, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.DescriptionConfidence, m, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (relationMUS) Size(v Relation) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.SourceId)
	size += IDMUS.Size(v.TargetId)
	size += ord.String.Size(string(v.Type))
	size += ord.String.Size(v.Subtype)
	size += ord.String.Size(v.Description)
	size += sizeIDSlice(v.Provenance)
	size += varint.Float64.Size(v.Confidence)
	size += sizeTime(v.InsertedAt)
	size += sizeTime(v.UpdatedAt)
	size += varint.Float64.Size(v.DescriptionConfidence)
	return size
}

// JobMUS serializes Jobs in MUS format.
var JobMUS = jobMUS{}

type jobMUS struct{}

func (jobMUS) Marshal(v Job, bs []byte) (n int) {
	n = ord.String.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.DocumentId, bs[n:])
	n += ord.String.Marshal(string(v.State), bs[n:])
	n += ord.String.Marshal(string(v.Segmenting), bs[n:])
	n += ord.String.Marshal(string(v.Extracting), bs[n:])
	n += ord.String.Marshal(string(v.Resolving), bs[n:])
	n += ord.String.Marshal(string(v.Indexing), bs[n:])
	n += marshalStringSlice(v.Errors, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (jobMUS) Unmarshal(bs []byte) (v Job, n int, err error) {
	var m int
	if v.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.DocumentId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var s string
	if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	v.State = JobState(s)
	n += m
	statuses := []*StageStatus{&v.Segmenting, &v.Extracting, &v.Resolving, &v.Indexing}
	for _, status := range statuses {
		if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return v, n + m, err
		}
		*status = StageStatus(s)
		n += m
	}
	if v.Errors, m, err = unmarshalStringSlice(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (jobMUS) Size(v Job) (size int) {
	size = ord.String.Size(v.Id)
	size += IDMUS.Size(v.DocumentId)
	size += ord.String.Size(string(v.State))
	size += ord.String.Size(string(v.Segmenting))
	size += ord.String.Size(string(v.Extracting))
	size += ord.String.Size(string(v.Resolving))
	size += ord.String.Size(string(v.Indexing))
	size += sizeStringSlice(v.Errors)
	size += sizeTime(v.InsertedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

var CheckpointMUS = checkpointMUS{}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.ProcessorType, bs)
	n += IDMUS.Marshal(v.LastProcessedID, bs[n:])
	n += varint.Int64.Marshal(v.ProcessedCount, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (checkpointMUS) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	var m int
	if v.ProcessorType, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.LastProcessedID, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ProcessedCount, m, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (checkpointMUS) Size(v Checkpoint) (size int) {
	size = ord.String.Size(v.ProcessorType)
	size += IDMUS.Size(v.LastProcessedID)
	size += varint.Int64.Size(v.ProcessedCount)
	size += sizeTime(v.UpdatedAt)
	return size
}

// Collection helpers. Lengths are varint-prefixed, elements follow in order.

func marshalStringSlice(v []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func unmarshalStringSlice(bs []byte) (v []string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make([]string, length)
	var m int
	for i := 0; i < length; i++ {
		if v[i], m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n + m, err
		}
		n += m
	}
	return v, n, nil
}

func sizeStringSlice(v []string) (size int) {
	size = varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

func marshalIDSlice(v []ID, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, id := range v {
		n += IDMUS.Marshal(id, bs[n:])
	}
	return n
}

func unmarshalIDSlice(bs []byte) (v []ID, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make([]ID, length)
	var m int
	for i := 0; i < length; i++ {
		if v[i], m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
			return nil, n + m, err
		}
		n += m
	}
	return v, n, nil
}

func sizeIDSlice(v []ID) (size int) {
	size = varint.Int.Size(len(v))
	for _, id := range v {
		size += IDMUS.Size(id)
	}
	return size
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make([]float32, length)
	var m int
	for i := 0; i < length; i++ {
		if v[i], m, err = varint.Float32.Unmarshal(bs[n:]); err != nil {
			return nil, n + m, err
		}
		n += m
	}
	return v, n, nil
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Float32.Size(f)
	}
	return size
}

func marshalStringMap(v map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for k, val := range v {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(val, bs[n:])
	}
	return n
}

func unmarshalStringMap(bs []byte) (v map[string]string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make(map[string]string, length)
	var m int
	for i := 0; i < length; i++ {
		var key, val string
		if key, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n + m, err
		}
		n += m
		if val, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n + m, err
		}
		n += m
		v[key] = val
	}
	return v, n, nil
}

func sizeStringMap(v map[string]string) (size int) {
	size = varint.Int.Size(len(v))
	for k, val := range v {
		size += ord.String.Size(k)
		size += ord.String.Size(val)
	}
	return size
}

// Timestamps are stored as Unix microseconds; the zero time is stored as 0.

func marshalTime(t time.Time, bs []byte) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Marshal(micros, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Size(micros)
}
