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


// Package cotrain drives a consensus self-training run.
//
// A run moves through a fixed sequence of states:
//
//	INIT            labeled corpus split into train, val and test
//	PHASE1_TRAINED  classifiers A and B trained, epoch by epoch, A then B
//	PSEUDO_LABELED  unlabeled corpus labeled where A and B agree
//	PHASE3_TRAINED  fresh classifier C trained on train plus pseudo-labels
//	EVALUATED       C scored once on test
//	PERSISTED       C written to the output path
//
// Each step checks that the run is in the state it requires. Any error moves
// the run to FAILED without writing an artifact; calling Run again starts a
// new run from the beginning.
//
// Basic usage:
//
//	cfg := cotrain.NewConfig(cotrain.WithOutputPath("model.bin"))
//	trainer, err := cotrain.NewTrainer(cfg, labeled, unlabeled)
//	if err != nil {
//		return err
//	}
//	defer trainer.Release()
//
//	run, err := trainer.Run(ctx)
package cotrain
