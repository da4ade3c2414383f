package storage

import (
	"context"

	"github.com/poiesic/relevance/core"
)

// RunRepository persists the run log of self-training runs.
// Implementations must be thread-safe and support concurrent access.
type RunRepository interface {
	// SaveRun inserts or replaces a run record.
	// Returns ErrInvalidQuery if the run has no ID.
	SaveRun(ctx context.Context, run *core.Run) error

	// GetRun retrieves a run by ID.
	// Returns ErrNotFound if the run doesn't exist.
	GetRun(ctx context.Context, id string) (*core.Run, error)

	// ListRuns returns all runs ordered by start time (oldest first).
	ListRuns(ctx context.Context) ([]*core.Run, error)

	// AppendEpoch records the metrics of one classifier epoch.
	// Records are keyed by (run, phase, classifier, epoch); appending the same
	// key twice replaces the earlier record.
	AppendEpoch(ctx context.Context, record *core.EpochRecord) error

	// ListEpochs returns the epoch records of a run in the order they were
	// produced: phase, then epoch, then classifier.
	ListEpochs(ctx context.Context, runID string) ([]*core.EpochRecord, error)

	// Close releases resources held by the repository.
	Close() error
}
