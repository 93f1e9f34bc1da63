package jobs

import "github.com/pkg/errors"

// Error kinds surfaced by the jobs domain. Callers wrap them with
// errors.Wrap and match with errors.Is; pkg/httpErrors maps them to statuses.
var (
	ErrNotFound     = errors.New("job not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyBatch   = errors.New("no files to process")
	ErrConflict     = errors.New("job is not in the required state")
	ErrProcessing   = errors.New("processing failed")
	ErrIO           = errors.New("storage i/o error")
	ErrIntegrity    = errors.New("job artifacts are inconsistent")
	ErrQueueFull    = errors.New("processing queue is full")
)
