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


// Package search retrieves the passages most relevant to a question.
//
// A Retriever embeds the question in query mode, asks the vector index for
// the k nearest chunks, and returns them in descending score order. An empty
// index yields an empty result rather than an error.
//
// RetrieveWithMonitor exposes each stage to a RetrievalMonitor; LogMonitor
// writes them to a slog.Logger, noting which query terms occur verbatim in
// each hit.
package search
