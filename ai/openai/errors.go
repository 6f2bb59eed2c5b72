package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/primer/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoChoices is returned when the model responds without any completion.
var ErrNoChoices = errors.New("model returned no choices")

// classify maps a provider error to langchaingo's error codes and marks
// rate limits, unavailability, and timeouts as transient.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	mapped := openai.MapError(err)
	switch {
	case llms.IsRateLimitError(mapped), llms.IsProviderUnavailableError(mapped), llms.IsTimeoutError(mapped):
		return fmt.Errorf("%w: %w", core.ErrTransientCollaborator, mapped)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		// The HTTP client reports deadlines as plain strings.
		return fmt.Errorf("%w: %w: %w", core.ErrTransientCollaborator, context.DeadlineExceeded, mapped)
	}
	return mapped
}

// retryable reports whether a generation error may be retried by the client.
// Timeouts are transient for callers but terminal here.
func retryable(err error) bool {
	return llms.IsRateLimitError(err) || llms.IsProviderUnavailableError(err)
}
