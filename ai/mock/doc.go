// Package mock provides test doubles for the ai package interfaces.
//
// # Usage
//
//	provider := mock.NewMockProvider()
//	embedder := provider.(*mock.MockProvider).GetMockEmbedder()
//
//	// Inject failures
//	embedder.EmbedFunc = func(ctx context.Context, texts []string, mode core.EmbedMode) ([][]float32, error) {
//	    return nil, core.ErrTransientCollaborator
//	}
//
//	// Script generator output
//	generator := mock.NewMockGenerator(`{"answer": "42", "source_chapter": "", "keywords": []}`)
//
// # Default Behavior
//
//   - MockEmbedder: bag-of-words vectors; texts that share words score higher
//   - MockGenerator: returns DefaultAnswer, or Responses in order
//   - MockProvider: aggregates mock embedder and generator
package mock
