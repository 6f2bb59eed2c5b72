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


package answer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/primer/ai"
	"github.com/poiesic/primer/core"
)

// NoGroundingMessage is the answer given when no passages were retrieved.
const NoGroundingMessage = "No relevant passages were found in the textbook, so this question cannot be answered from it."

// ChapterNames supplies the chapter list shown to the generator.
type ChapterNames interface {
	Names() []string
}

// Composer answers questions from retrieved passages.
type Composer struct {
	generator ai.Generator
	chapters  ChapterNames
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer) error

// WithCatalog adds the chapter list to every prompt.
func WithCatalog(chapters ChapterNames) Option {
	return func(c *Composer) error {
		c.chapters = chapters
		return nil
	}
}

// WithGenerateTimeout bounds each generator call. Zero means no bound
// beyond the caller's context.
func WithGenerateTimeout(timeout time.Duration) Option {
	return func(c *Composer) error {
		if timeout < 0 {
			return errors.New("generate timeout cannot be negative")
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewComposer creates a composer that calls generator once per question.
func NewComposer(generator ai.Generator, opts ...Option) (*Composer, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	c := &Composer{
		generator: generator,
		logger:    slog.Default().With("component", "composer"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NoGroundingAnswer returns the fixed answer used when retrieval is empty.
func NoGroundingAnswer() *core.StructuredAnswer {
	return &core.StructuredAnswer{
		Answer:   NoGroundingMessage,
		Keywords: []string{},
		Grounded: false,
	}
}

// Answer builds the prompt, calls the generator, and parses its reply.
// Generator failures are returned as is; the composer never retries.
func (c *Composer) Answer(ctx context.Context, question string, passages []string) (*core.StructuredAnswer, error) {
	if len(passages) == 0 {
		c.logger.Info("no passages retrieved, returning no-grounding answer")
		return NoGroundingAnswer(), nil
	}

	var chapters []string
	if c.chapters != nil {
		chapters = c.chapters.Names()
	}
	prompt := BuildPrompt(question, passages, chapters)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		c.logger.Error("generation failed", "passages", len(passages), "err", err)
		return nil, err
	}

	answer, err := ParseAnswer(raw)
	if err != nil {
		c.logger.Warn("malformed answer", "err", err, "raw", raw)
		return nil, err
	}
	c.logger.Debug("answer composed",
		"passages", len(passages),
		"source_chapter", answer.SourceChapter,
		"elapsed", time.Since(start))
	return answer, nil
}
