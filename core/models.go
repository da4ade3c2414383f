package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for corpus examples.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// LabeledExample is a hand-labeled piece of text.
// Label is true when the text is relevant.
type LabeledExample struct {
	Text  string
	Label bool
}

// UnlabeledExample is a piece of text with no known label.
type UnlabeledExample struct {
	Text string
}

// PseudoLabeledExample is an unlabeled text that two classifiers agreed on.
type PseudoLabeledExample struct {
	Text  string
	Label bool
}

// Labeled converts the pseudo-label into a training example.
func (p PseudoLabeledExample) Labeled() LabeledExample {
	return LabeledExample{Text: p.Text, Label: p.Label}
}

// PartitionName identifies one of the three disjoint subsets of the labeled corpus.
type PartitionName string

const (
	PartitionTrain PartitionName = "train"
	PartitionVal   PartitionName = "val"
	PartitionTest  PartitionName = "test"
)

// Partition is a named, ordered subset of the labeled corpus.
type Partition struct {
	Name     PartitionName
	Examples []LabeledExample
}

// Len returns the number of examples in the partition.
func (p *Partition) Len() int {
	return len(p.Examples)
}

// Positives returns the number of examples labeled relevant.
func (p *Partition) Positives() int {
	n := 0
	for _, ex := range p.Examples {
		if ex.Label {
			n++
		}
	}
	return n
}

// Metrics summarizes one pass over a partition.
type Metrics struct {
	Loss           float64
	Accuracy       float64
	Correct        int
	Total          int
	SkippedBatches int // batches whose update was dropped for a non-finite loss or gradient
}

// Phase names used in run logs.
const (
	PhaseOne   = "phase1"
	PhaseThree = "phase3"
)

// EpochRecord is one row of the run log: the result of training and then
// validating a single classifier for one epoch.
type EpochRecord struct {
	RunID      string
	Phase      string
	Classifier string
	Epoch      int
	Train      Metrics
	Val        Metrics
	RecordedAt time.Time
}

// RunStatus is the overall outcome of a self-training run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run records the lifecycle and final results of a self-training run.
type Run struct {
	ID             string
	State          string
	Status         RunStatus
	Error          string
	Architecture   string
	StartedAt      time.Time
	FinishedAt     time.Time
	TrainSize      int
	ValSize        int
	TestSize       int
	UnlabeledTotal int
	PseudoLabeled  int
	Test           Metrics
	ArtifactPath   string
	Checksum       string
}
