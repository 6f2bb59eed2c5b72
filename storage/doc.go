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

// Package storage defines the vector index abstraction for primer.
//
// A VectorIndex holds one IndexEntry per chunk ID and answers nearest-neighbor
// queries over their embeddings. Backends live in subpackages:
//
//   - storage/badger: embedded BadgerDB store with brute-force search
//   - storage/qdrant: remote Qdrant collection over gRPC
//
// # Constructor Return Type Pattern
//
// Public backend constructors return the storage.VectorIndex interface so
// callers cannot couple to one backend:
//
//	index, err := badger.NewIndex(backend, "textbook")  // returns storage.VectorIndex
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	index, err := badger.NewMemoryIndex("textbook")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer index.Close()
//
// # Errors
//
// Write and connectivity failures are reported wrapping
// core.ErrIndexUnavailable. Lookups of unknown IDs return ErrNotFound.
//
// # Thread Safety
//
// All index implementations must be safe for concurrent use. Concurrent
// upserts of the same ID resolve last-writer-wins.
package storage
