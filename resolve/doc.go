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


// Package resolve deduplicates extraction candidates into canonical entities
// and relations.
//
// Entity resolution matches a candidate against the canonical set in order:
// exact normalized-name (or alias) match within the type, then fuzzy match
// above a configurable similarity threshold, then creation of a new canonical
// entity. Merging unions aliases and provenance and updates confidence as a
// provenance-count-weighted running average, so the outcome is the same
// whatever order candidates arrive in, and re-resolving a candidate is a
// no-op. A fuzzy score inside the review band keeps the candidate separate
// with NeedsReview set rather than force-merging or dropping it.
//
// Relation resolution runs after the entities of a segment are canonical:
// candidates are keyed by the ordered (source, target, type) triple and merged
// with the same provenance/confidence semantics.
//
// Both resolvers serialize merges per canonical key through sharded mutexes;
// concurrent jobs proposing candidates for the same key converge to the same
// final state regardless of interleaving.
package resolve
