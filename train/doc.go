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


// Package train runs training epochs, evaluation passes and batch prediction
// over a model.Classifier.
//
// # Training
//
// Loop.TrainEpoch shuffles the examples with a generator seeded by the
// epoch's (seed, index) pair, then for each batch computes logits, binary
// cross-entropy and gradients, and applies one optimizer step. A batch whose
// loss or gradient is not finite is logged with core.ErrTraining and its
// update is skipped; the epoch continues.
//
// # Concurrency
//
// Per-example forward and backward passes run on an ants worker pool. Each
// example writes its own gradient buffer and buffers are summed in example
// order, so results do not depend on the pool size. Encoding of the next
// batch is prefetched while the current batch is computed.
//
// # Evaluation
//
// Loop.Evaluate and Loop.Predict never compute gradients or touch
// parameters, and they visit examples in their given order.
package train
