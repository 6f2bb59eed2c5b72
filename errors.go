package primer

import "errors"

var (
	ErrIndexRequired    = errors.New("vector index is required")
	ErrProviderRequired = errors.New("AI provider is required")
	ErrConfigRequired   = errors.New("config is required")
)
