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

import (
	"fmt"
	"strings"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Text must contain something other than whitespace
//
// NOT validated:
//   - ChapterLabel (optional)
//   - SourceIndex (any position is valid)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyID)
	}

	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyText)
	}

	return nil
}

// ValidateIndexEntry validates an IndexEntry before it is written.
//
// Validation rules:
//   - ID must not be empty
//   - Text must contain something other than whitespace
//   - Vector must not be empty
func ValidateIndexEntry(entry *IndexEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidIndexEntry)
	}

	if entry.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidIndexEntry, ErrEmptyID)
	}

	if strings.TrimSpace(entry.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidIndexEntry, ErrEmptyText)
	}

	if len(entry.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidIndexEntry, ErrEmptyVector)
	}

	return nil
}

// ValidateStructuredAnswer checks that a parsed answer has a non-empty answer
// and a non-nil keyword list.
func ValidateStructuredAnswer(answer *StructuredAnswer) error {
	if answer == nil {
		return fmt.Errorf("%w: answer is nil", ErrInvalidAnswer)
	}

	if strings.TrimSpace(answer.Answer) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAnswer, ErrEmptyAnswerText)
	}

	if answer.Keywords == nil {
		return fmt.Errorf("%w: keywords missing", ErrInvalidAnswer)
	}

	return nil
}

// EntryFromChunk builds an IndexEntry for chunk with the given vector and fingerprint.
func EntryFromChunk(chunk *Chunk, vector []float32, fingerprint ID) *IndexEntry {
	return &IndexEntry{
		ID:           chunk.ID,
		Text:         chunk.Text,
		ChapterLabel: chunk.ChapterLabel,
		SourceIndex:  chunk.SourceIndex,
		Vector:       vector,
		Fingerprint:  fingerprint,
	}
}
