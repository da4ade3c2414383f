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


package core

import "errors"

// Error taxonomy shared by every stage of a run. Call sites wrap these with
// fmt.Errorf("%w: ...") so callers can recover the category with errors.Is.
var (
	// ErrData indicates a malformed corpus or one that cannot be stratified.
	// Fatal: the run aborts before any training.
	ErrData = errors.New("data error")

	// ErrTraining indicates a batch produced a non-finite loss or gradient.
	// Recoverable: the batch update is skipped.
	ErrTraining = errors.New("training error")

	// ErrConsensus indicates pseudo-labeling produced no examples.
	// Non-fatal: phase 3 trains on the training partition alone.
	ErrConsensus = errors.New("consensus error")

	// ErrPersistence indicates a failure to write or restore classifier parameters.
	ErrPersistence = errors.New("persistence error")
)

// Validation errors for corpus examples.
var (
	// ErrEmptyText indicates an example has no text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidLabel indicates a label value could not be interpreted as binary.
	ErrInvalidLabel = errors.New("invalid binary label")
)
