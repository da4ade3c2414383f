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


// Package ai provides abstractions for the AI services used by relevance.
//
// The only service the classifier needs is an Embedder: the "embedding"
// encoder variant turns text into dense vectors through it and trains a
// linear relevance head on top. Embedding models themselves are never
// trained here.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewEmbedder) return INTERFACE types to enforce
// abstraction. Test utility constructors (mock.NewMockEmbedder) return
// CONCRETE types to enable test assertions and behavior injection.
//
//	embedder, err := openai.NewEmbedder(config)  // returns ai.Embedder
//	mockEmbed := mock.NewMockEmbedder(64)        // returns *mock.MockEmbedder
//	count := mockEmbed.CallCount()               // test assertion
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithEmbeddingModel("embeddinggemma"))
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := embedder.EmbedTexts(ctx, []string{"Hello world"})
package ai
