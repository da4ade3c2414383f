package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/relevance/core"
	"github.com/poiesic/relevance/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new run log repository.
func NewRunRepository(backend *Backend) (storage.RunRepository, error) {
	return newRunRepository(backend)
}

func newRunRepository(backend *Backend) (*RunRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &RunRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *RunRepository) Close() error {
	return nil
}

// SaveRun inserts or replaces a run record and maintains the start-time index.
func (r *RunRepository) SaveRun(ctx context.Context, run *core.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run ID is required", storage.ErrInvalidQuery)
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRunKey(run.ID)

		old, err := readRun(tx, key)
		if err != nil {
			return err
		}
		if old != nil && !old.StartedAt.Equal(run.StartedAt) {
			if err := tx.Delete(makeRunStartKey(old.StartedAt, old.ID)); err != nil {
				return err
			}
		}

		if err := tx.Set(key, storage.MarshalRun(run)); err != nil {
			return err
		}
		if err := tx.Set(makeRunStartKey(run.StartedAt, run.ID), []byte(run.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRun retrieves a run by ID.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*core.Run, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var run *core.Run
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		run, err = readRun(tx, makeRunKey(id))
		if err != nil {
			return err
		}
		if run == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns all runs ordered by start time.
func (r *RunRepository) ListRuns(ctx context.Context) ([]*core.Run, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var runs []*core.Run
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runStartPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			run, err := readRun(tx, makeRunKey(string(id)))
			if err != nil {
				return err
			}
			if run != nil {
				runs = append(runs, run)
			}
		}
		return nil
	}, false)
	return runs, err
}

// AppendEpoch records the metrics of one classifier epoch.
func (r *RunRepository) AppendEpoch(ctx context.Context, record *core.EpochRecord) error {
	if record == nil || record.RunID == "" {
		return fmt.Errorf("%w: epoch record requires a run ID", storage.ErrInvalidQuery)
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEpochKey(record.RunID, record.Phase, record.Epoch, record.Classifier)
		if err := tx.Set(key, storage.MarshalEpochRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListEpochs returns the epoch records of a run in key order.
func (r *RunRepository) ListEpochs(ctx context.Context, runID string) ([]*core.EpochRecord, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var records []*core.EpochRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEpochPrefix(runID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				record, err := storage.UnmarshalEpochRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return records, err
}

// readRun reads a run record within a transaction.
// Returns nil, nil if the key does not exist.
func readRun(tx *badger.Txn, key []byte) (*core.Run, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var run *core.Run
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		run, unmarshalErr = storage.UnmarshalRun(val)
		return unmarshalErr
	})
	return run, err
}
