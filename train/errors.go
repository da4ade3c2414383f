package train

import "errors"

var (
	// ErrClassifierRequired is returned when a nil classifier is passed to a loop.
	ErrClassifierRequired = errors.New("classifier is required")

	// ErrOptimizerRequired is returned when TrainEpoch is called without an optimizer.
	ErrOptimizerRequired = errors.New("optimizer is required")

	// ErrLossRequired is returned when a loop is called without a loss function.
	ErrLossRequired = errors.New("loss function is required")

	// ErrInvalidBatchSize is returned for a batch size below 1.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
)
