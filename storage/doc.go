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


// Package storage provides the storage abstraction for the run log.
//
// The run log records, for every self-training run, one row per classifier
// epoch (train and validation metrics) plus a run record holding the split
// sizes, pseudo-label coverage, final test metrics and the location of the
// persisted classifier.
//
// # Constructor Return Type Pattern
//
// Public constructors return the RunRepository interface so the orchestrator
// never couples to BadgerDB specifics:
//
//	runs, err := badger.NewRunRepository(backend)  // returns storage.RunRepository
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	runs, err := badger.NewRunRepository(backend)
//
// Use in tests with in-memory storage:
//
//	runs, backend, err := badger.NewMemoryRunRepository()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
