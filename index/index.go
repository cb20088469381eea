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


package index

import (
	"context"
	"errors"

	"github.com/poiesic/gnosis/core"
)

// ErrDimensionMismatch indicates a vector's length disagrees with the index's
// fixed dimensionality. Fatal for the call, not for the index.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Kind distinguishes the object families sharing one index.
type Kind string

const (
	KindSegment Kind = "segment"
	KindEntity  Kind = "entity"
)

// Hit is one ranked query result.
type Hit struct {
	Kind  Kind
	Id    core.ID
	Score float64
}

// Filter restricts a query. A nil filter matches everything. Kinds restricts
// to the listed object kinds; Metadata requires every listed key to be present
// with the given value on the stored object.
type Filter struct {
	Kinds    []Kind
	Metadata map[string]string
}

// Index is a fixed-dimension similarity index over embedding vectors.
// Upserts are atomic per (kind, id); queries observe a consistent snapshot and
// rank by descending similarity with ties broken by kind then id for
// determinism.
type Index interface {
	Upsert(ctx context.Context, kind Kind, id core.ID, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, kind Kind, id core.ID) error
	Query(ctx context.Context, vector []float32, k int, filter *Filter) ([]Hit, error)
	Dimension() int
}
