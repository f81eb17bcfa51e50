package output

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim/metrics"
	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

const (
	DefaultInsertBatchSize   = 10000
	DefaultInsertMaxAttempts = 5
)

// InsertFunc performs one physical insert of a batch of rows. The underlying
// primitive reports failures as a returned error set rather than aborting, on
// the assumption they may be transient.
type InsertFunc func(ctx context.Context, rows []model.Row) []error

// Backoff decides how long to wait before retry attempt n. Injecting the
// policy keeps the retry loop testable with zero delays.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// ExponentialBackoff doubles the base delay per attempt up to Max, with full
// jitter so parallel retriers do not thunder together.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	delay := b.Base << uint(attempt)
	if delay > b.Max || delay <= 0 {
		delay = b.Max
	}
	return time.Duration(rand.Float64() * float64(delay))
}

// ZeroBackoff retries immediately. For tests.
type ZeroBackoff struct{}

func (ZeroBackoff) Delay(int) time.Duration { return 0 }

// InsertError is raised when a batch could not be inserted after all retry
// attempts. It carries the error set from the final attempt.
type InsertError struct {
	Attempts int
	Errs     *multierror.Error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert failed after %d attempts: %s", e.Attempts, e.Errs)
}

// RetryingBatchInserter batches rows for a remote table and flushes them with
// bounded, backed-off retries. A batch that still fails after the final
// attempt surfaces as an InsertError from Flush; rows are never silently
// dropped.
type RetryingBatchInserter struct {
	insert      InsertFunc
	batchSize   int
	maxAttempts int
	backoff     Backoff

	batch []model.Row
	total int
}

func NewRetryingBatchInserter(insert InsertFunc, batchSize int, maxAttempts int, backoff Backoff) (*RetryingBatchInserter, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("invalid insert batch size %d, must be greater than zero", batchSize)
	}
	if maxAttempts <= 0 {
		return nil, errors.Errorf("invalid insert max attempts %d, must be greater than zero", maxAttempts)
	}
	return &RetryingBatchInserter{
		insert:      insert,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}, nil
}

// Insert adds rows to the pending batch, flushing if the batch size is
// reached.
func (i *RetryingBatchInserter) Insert(ctx context.Context, rows []model.Row) error {
	i.batch = append(i.batch, rows...)
	if len(i.batch) >= i.batchSize {
		return i.Flush(ctx)
	}
	return nil
}

// Flush writes the pending batch, retrying transient error sets with backoff.
func (i *RetryingBatchInserter) Flush(ctx context.Context) error {
	if len(i.batch) == 0 {
		return nil
	}

	var errs []error
	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := i.backoff.Delay(attempt - 1)
			log.Warnf("Insert of %d rows failed, will retry in %s (attempt %d of %d)",
				len(i.batch), delay, attempt+1, i.maxAttempts)
			metrics.RecordInsertRetry()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		errs = i.insert(ctx, i.batch)
		if len(errs) == 0 {
			i.total += len(i.batch)
			i.batch = nil
			return nil
		}
		metrics.RecordInsertError()
	}

	return &InsertError{
		Attempts: i.maxAttempts,
		Errs:     multierror.Append(nil, errs...),
	}
}

// Total returns the number of rows successfully inserted so far.
func (i *RetryingBatchInserter) Total() int {
	return i.total
}

// Close performs the mandatory final flush.
func (i *RetryingBatchInserter) Close(ctx context.Context) error {
	if err := i.Flush(ctx); err != nil {
		return err
	}
	log.Debugf("Batch inserter wrote %d rows in total", i.total)
	return nil
}
