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


// Package split partitions a labeled corpus into train, validation and test
// sets while preserving the proportion of relevant and irrelevant examples.
package split

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/poiesic/relevance/core"
)

// Stages of the split. They select independent random streams for the same seed.
const (
	stageTest uint64 = 1
	stageVal  uint64 = 2
)

// Result holds the three disjoint partitions of a labeled corpus.
type Result struct {
	Train core.Partition
	Val   core.Partition
	Test  core.Partition
}

// Split carves test (testFraction of the corpus) and then val (valFraction of
// what remains) out of corpus, stratified by label. Train is everything left.
//
// Each partition lists its examples in their original corpus order. The same
// corpus, fractions and seed always produce the same partitions.
func Split(corpus []core.LabeledExample, testFraction, valFraction float64, seed uint64) (Result, error) {
	if len(corpus) == 0 {
		return Result{}, fmt.Errorf("%w: labeled corpus is empty", core.ErrData)
	}
	if !validFraction(testFraction) {
		return Result{}, fmt.Errorf("%w: test fraction %v must be in (0, 1)", core.ErrData, testFraction)
	}
	if !validFraction(valFraction) {
		return Result{}, fmt.Errorf("%w: validation fraction %v must be in (0, 1)", core.ErrData, valFraction)
	}

	negatives, positives := ClassCounts(corpus)
	if negatives < 2 || positives < 2 {
		return Result{}, fmt.Errorf("%w: each class needs at least 2 examples for a stratified split (negative=%d, positive=%d)",
			core.ErrData, negatives, positives)
	}

	all := make([]int, len(corpus))
	for i := range all {
		all[i] = i
	}

	test, rest := carve(corpus, all, testFraction, seed, stageTest)
	val, train := carve(corpus, rest, valFraction, seed, stageVal)
	if len(train) == 0 {
		return Result{}, fmt.Errorf("%w: training partition is empty", core.ErrData)
	}

	return Result{
		Train: collect(core.PartitionTrain, corpus, train),
		Val:   collect(core.PartitionVal, corpus, val),
		Test:  collect(core.PartitionTest, corpus, test),
	}, nil
}

// ClassCounts returns the number of negative and positive examples.
func ClassCounts(examples []core.LabeledExample) (negatives, positives int) {
	for _, ex := range examples {
		if ex.Label {
			positives++
		} else {
			negatives++
		}
	}
	return negatives, positives
}

func validFraction(f float64) bool {
	return f > 0 && f < 1 && !math.IsNaN(f)
}

// carve selects ceil(fraction*len(positions)) of positions, stratified by
// label, and returns the selected and remaining positions in ascending order.
func carve(corpus []core.LabeledExample, positions []int, fraction float64, seed, stage uint64) (taken, rest []int) {
	// classes[0] holds negatives, classes[1] positives
	var classes [2][]int
	for _, pos := range positions {
		c := 0
		if corpus[pos].Label {
			c = 1
		}
		classes[c] = append(classes[c], pos)
	}

	n := len(positions)
	want := int(math.Ceil(fraction*float64(n) - 1e-9))
	quotas := allocate(want, n, [2]int{len(classes[0]), len(classes[1])})

	r := rand.New(rand.NewPCG(seed, stage))
	for c, members := range classes {
		perm := r.Perm(len(members))
		chosen := make([]bool, len(members))
		for _, k := range perm[:quotas[c]] {
			chosen[k] = true
		}
		for k, pos := range members {
			if chosen[k] {
				taken = append(taken, pos)
			} else {
				rest = append(rest, pos)
			}
		}
	}
	slices.Sort(taken)
	slices.Sort(rest)
	return taken, rest
}

// allocate splits want across the classes in proportion to their sizes using
// the largest remainder method. Ties go to the negative class. Every class
// keeps at least one member back; any share a class cannot give is moved to
// the other class when it has room.
func allocate(want, n int, sizes [2]int) [2]int {
	var (
		quotas     [2]int
		remainders [2]float64
		assigned   int
	)
	for c, size := range sizes {
		exact := float64(want) * float64(size) / float64(n)
		quotas[c] = int(math.Floor(exact))
		remainders[c] = exact - float64(quotas[c])
		assigned += quotas[c]
	}

	order := [2]int{0, 1}
	if remainders[1] > remainders[0] {
		order = [2]int{1, 0}
	}
	for _, c := range order {
		if assigned >= want {
			break
		}
		quotas[c]++
		assigned++
	}

	var excess int
	for c, size := range sizes {
		limit := max(size-1, 0)
		if quotas[c] > limit {
			excess += quotas[c] - limit
			quotas[c] = limit
		}
	}
	for c, size := range sizes {
		room := max(size-1, 0) - quotas[c]
		move := min(room, excess)
		quotas[c] += move
		excess -= move
	}
	return quotas
}

func collect(name core.PartitionName, corpus []core.LabeledExample, positions []int) core.Partition {
	examples := make([]core.LabeledExample, len(positions))
	for i, pos := range positions {
		examples[i] = corpus[pos]
	}
	return core.Partition{Name: name, Examples: examples}
}
