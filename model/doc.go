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


// Package model defines the relevance classifier capability set and its
// encoder variants.
//
// Every variant turns text into a fixed-length Encoding and scores it with a
// single-logit head. The training loop, the pseudo-labeler and the
// orchestrator depend only on the Classifier interface, so a variant can be
// swapped without touching them.
//
// # Variants
//
//   - hashed-bow: hashed word counts, linear head
//   - hashed-mlp: hashed words and bigrams, one tanh hidden layer, linear head
//   - embedding: vectors from an ai.Embedder, linear head
//
// # Decisions
//
// A logit is turned into a binary relevance decision with Decide, which is
// sigmoid(logit) > 0.5.
//
// # Thread Safety
//
// Encode, Forward, Backward and Score never mutate parameters and may be
// called concurrently. ApplyGradient and SetParameters must not run
// concurrently with anything else.
package model
