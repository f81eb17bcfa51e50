package output

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

// flakyInsert fails its first failures calls, then succeeds.
type flakyInsert struct {
	failures int
	attempts int
	inserted int
}

func (f *flakyInsert) insert(_ context.Context, rows []model.Row) []error {
	f.attempts++
	if f.attempts <= f.failures {
		return []error{errors.New("connection reset")}
	}
	f.inserted += len(rows)
	return nil
}

func TestInsertFlushesAtBatchSize(t *testing.T) {
	sink := &flakyInsert{}
	inserter, err := NewRetryingBatchInserter(sink.insert, 3, 5, ZeroBackoff{})
	require.NoError(t, err)

	require.NoError(t, inserter.Insert(context.Background(), rowSet(2)))
	assert.Equal(t, 0, sink.inserted)

	require.NoError(t, inserter.Insert(context.Background(), rowSet(2)))
	assert.Equal(t, 4, sink.inserted)
	assert.Equal(t, 4, inserter.Total())
}

func TestFlushRetriesTransientFailures(t *testing.T) {
	sink := &flakyInsert{failures: 2}
	inserter, err := NewRetryingBatchInserter(sink.insert, 10, 5, ZeroBackoff{})
	require.NoError(t, err)

	require.NoError(t, inserter.Insert(context.Background(), rowSet(4)))
	require.NoError(t, inserter.Flush(context.Background()))

	assert.Equal(t, 3, sink.attempts)
	assert.Equal(t, 4, sink.inserted)
}

func TestFlushGivesUpAfterMaxAttempts(t *testing.T) {
	sink := &flakyInsert{failures: 100}
	inserter, err := NewRetryingBatchInserter(sink.insert, 10, 5, ZeroBackoff{})
	require.NoError(t, err)

	require.NoError(t, inserter.Insert(context.Background(), rowSet(4)))
	err = inserter.Flush(context.Background())

	var insertErr *InsertError
	require.ErrorAs(t, err, &insertErr)
	assert.Equal(t, 5, insertErr.Attempts)
	assert.Equal(t, 5, sink.attempts)
	assert.Equal(t, 0, inserter.Total())
}

func TestFlushEmptyBatchIsNoop(t *testing.T) {
	sink := &flakyInsert{}
	inserter, err := NewRetryingBatchInserter(sink.insert, 10, 5, ZeroBackoff{})
	require.NoError(t, err)

	require.NoError(t, inserter.Flush(context.Background()))
	assert.Equal(t, 0, sink.attempts)
}

func TestCloseFlushesPendingRows(t *testing.T) {
	sink := &flakyInsert{}
	inserter, err := NewRetryingBatchInserter(sink.insert, 100, 5, ZeroBackoff{})
	require.NoError(t, err)

	require.NoError(t, inserter.Insert(context.Background(), rowSet(7)))
	require.NoError(t, inserter.Close(context.Background()))
	assert.Equal(t, 7, sink.inserted)
}

func TestNewRetryingBatchInserterRejectsBadConfig(t *testing.T) {
	sink := &flakyInsert{}

	_, err := NewRetryingBatchInserter(sink.insert, 0, 5, ZeroBackoff{})
	assert.Error(t, err)
	_, err = NewRetryingBatchInserter(sink.insert, 10, 0, ZeroBackoff{})
	assert.Error(t, err)
}
