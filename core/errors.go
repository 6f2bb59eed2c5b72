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

import "errors"

// Collaborator failures. Callers match these with errors.Is.
var (
	// ErrTransientCollaborator marks a rate-limit, temporary unavailability, or
	// per-call timeout reported by an external service. It is safe to retry.
	ErrTransientCollaborator = errors.New("transient collaborator error")

	// ErrEmbeddingUnavailable indicates an embedding batch failed after the
	// retry budget was spent, or failed with a non-retryable error.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrIndexUnavailable indicates the vector index could not be reached or
	// rejected a write.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrMalformedAnswer indicates generated output did not parse into a
	// StructuredAnswer.
	ErrMalformedAnswer = errors.New("malformed answer")
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidIndexEntry indicates an IndexEntry failed validation.
	ErrInvalidIndexEntry = errors.New("invalid index entry")

	// ErrInvalidAnswer indicates a StructuredAnswer failed validation.
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrEmptyID indicates the ID field is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyText indicates the Text field is empty or whitespace.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyVector indicates an entry has no embedding.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrEmptyAnswerText indicates the answer field is empty.
	ErrEmptyAnswerText = errors.New("answer cannot be empty")
)
