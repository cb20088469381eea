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


// Package pipeline drives documents through the knowledge extraction stages.
//
// The Coordinator runs a per-document Job through segmentation, extraction,
// resolution and indexing, in that order. Jobs for different documents run
// concurrently on a bounded worker pool; within one job, segment-level
// extraction and embedding parallelize while stage boundaries stay strict.
//
// Failure handling follows two tiers:
//   - Per-segment failures (an extractor erroring on one segment) are recorded
//     in the Job's error list and the remaining segments continue.
//   - Whole-stage failures (a store being unreachable, embedding failing for
//     the batch) move the Job to the absorbing failed-partial state. Artifacts
//     produced before the failure are kept.
//
// Cancellation between stages keeps completed work, records the reason, and
// settles the Job as failed-partial. There is no automatic retry; batch
// repair flows live in the reindex package.
package pipeline
