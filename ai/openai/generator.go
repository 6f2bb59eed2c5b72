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


package openai

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/primer/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const systemPrompt = `You are a careful teaching assistant. You answer questions about a textbook
using only the passages you are given, and you always reply with a single JSON object.`

const defaultRetryDelay = 500 * time.Millisecond

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client     llms.Model
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return newGeneratorWithModel(client, config.GenerateRetries), nil
}

func newGeneratorWithModel(client llms.Model, attempts int) *Generator {
	if attempts < 1 {
		attempts = 1
	}
	return &Generator{
		client:     client,
		attempts:   attempts,
		retryDelay: defaultRetryDelay,
		logger:     slog.Default().With("component", "openai-generator"),
	}
}

// NewGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate sends prompt as the human turn and returns the first choice's text.
// Rate-limited and unavailable responses are retried up to the configured
// attempt budget with doubling delay.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	delay := g.retryDelay
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err == nil {
			if len(response.Choices) < 1 {
				g.logger.Warn("no choices returned from model")
				return "", ErrNoChoices
			}
			return response.Choices[0].Content, nil
		}

		lastErr = classify(ctx, err)
		if !retryable(lastErr) || attempt == g.attempts {
			break
		}

		g.logger.Warn("generation failed, retrying", "attempt", attempt, "delay", delay, "err", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	g.logger.Error("failed to generate content", "err", lastErr)
	return "", lastErr
}
