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


// Package ai provides abstractions for the model services Primer depends on.
//
// Two capabilities are consumed: an Embedder that turns text into vectors in
// either document or query mode, and a Generator that turns a prompt into
// text. Both are external collaborators; the rest of the module depends only
// on the interfaces defined here.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder,
// openai.NewGenerator) return INTERFACE types. Test constructors
// (mock.NewMockEmbedder, mock.NewMockGenerator) return CONCRETE types so tests
// can inject behavior and inspect call counts.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
//	mockEmbed := mock.NewMockEmbedder()           // returns *mock.MockEmbedder
//	count := mockEmbed.CallCount()
//
// # Asymmetric Embedding
//
// The embedding mode is an explicit argument on every call. There is no
// mutable "current mode" on an Embedder.
//
//	docs, err := provider.Embedder().Embed(ctx, passages, core.EmbedModeDocument)
//	q, err := provider.Embedder().Embed(ctx, []string{question}, core.EmbedModeQuery)
//
// # Errors
//
// Rate limits, temporary unavailability, and per-call timeouts are reported
// wrapping core.ErrTransientCollaborator; IsTransient tests for it.
package ai
