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


// Package search answers queries over the indexed knowledge base.
//
// The Searcher type implements a multi-stage search algorithm that combines:
//   - Semantic retrieval over segment and entity embeddings
//   - Verbatim keyword boosting with stop-word filtering
//   - Optional graph expansion attaching related entities to entity hits
//
// It also exposes direct graph traversal (GraphQuery) and document
// reconstruction (Document) for non-semantic lookups.
package search
