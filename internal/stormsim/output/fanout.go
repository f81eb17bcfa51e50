package output

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

// Fanout routes one row-set to every configured RowWriter. Eventual delivery
// is guaranteed but may not be immediate.
type Fanout interface {
	Send(kind model.OutputKind, rows []model.Row) error
}

// stopSignal is the reserved sentinel that terminates the concurrent
// consumer loop.
const stopSignal model.OutputKind = "__stop_processing__"

// SerialFanout calls every writer synchronously, in registration order.
// Writers are initialised eagerly at construction.
type SerialFanout struct {
	writers []RowWriter
}

func NewSerialFanout(writers []RowWriter) (*SerialFanout, error) {
	for _, writer := range writers {
		if err := writer.LazyInitialize(); err != nil {
			return nil, errors.Wrapf(err, "initializing %s writer", writer.Name())
		}
	}
	return &SerialFanout{writers: writers}, nil
}

func (f *SerialFanout) Send(kind model.OutputKind, rows []model.Row) error {
	var result *multierror.Error
	for _, writer := range f.writers {
		if err := writer.WriteRows(kind, rows); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Close tears down every writer that needs it.
func (f *SerialFanout) Close() error {
	return closeWriters(f.writers)
}

// ConcurrentFanout decouples trial workers from the sinks. Send enqueues the
// row-set on a single shared queue; one dedicated consumer goroutine drains
// the queue FIFO and dispatches each message to every writer in registration
// order. Writers are initialised lazily inside the consumer, so network
// clients are never shared with producer goroutines.
type ConcurrentFanout struct {
	queue   chan model.Message
	writers []RowWriter
	done    chan struct{}
	err     error
}

func NewConcurrentFanout(writers []RowWriter, queueSize int) *ConcurrentFanout {
	return &ConcurrentFanout{
		queue:   make(chan model.Message, queueSize),
		writers: writers,
		done:    make(chan struct{}),
	}
}

// Send places the row-set on the output queue, blocking if it is full.
func (f *ConcurrentFanout) Send(kind model.OutputKind, rows []model.Row) error {
	f.queue <- model.Message{Kind: kind, Rows: rows}
	return nil
}

// Run is the consumer loop. Start it in its own goroutine; it exits when the
// stop sentinel is read.
func (f *ConcurrentFanout) Run() {
	defer close(f.done)

	var result *multierror.Error
	writers := f.writers
	for _, writer := range writers {
		if err := writer.LazyInitialize(); err != nil {
			// Drain and discard below rather than deadlocking producers on a
			// full queue.
			log.WithError(err).Errorf("Failed to initialize %s writer, its output will be dropped", writer.Name())
			result = multierror.Append(result, errors.Wrapf(err, "initializing %s writer", writer.Name()))
			writers = removeWriter(writers, writer)
		}
	}

	log.Info("Output consumer started")
	for message := range f.queue {
		if message.Kind == stopSignal {
			break
		}
		for _, writer := range writers {
			if err := writer.WriteRows(message.Kind, message.Rows); err != nil {
				log.WithError(err).Errorf("Failed writing %d %s rows to %s", len(message.Rows), message.Kind, writer.Name())
				result = multierror.Append(result, err)
			}
		}
	}

	if err := closeWriters(writers); err != nil {
		result = multierror.Append(result, err)
	}
	f.err = result.ErrorOrNil()
	log.Info("Output consumer finished")
}

// Stop enqueues the stop sentinel. In-flight messages ahead of it are still
// delivered; callers must Join afterwards to guarantee the queue is drained.
func (f *ConcurrentFanout) Stop() {
	f.queue <- model.Message{Kind: stopSignal}
}

// Join blocks until the consumer has drained the queue and torn down the
// writers, returning any errors the consumer accumulated.
func (f *ConcurrentFanout) Join() error {
	<-f.done
	return f.err
}

func closeWriters(writers []RowWriter) error {
	var result *multierror.Error
	for _, writer := range writers {
		if closer, ok := writer.(Closer); ok {
			if err := closer.Close(); err != nil {
				result = multierror.Append(result, errors.Wrapf(err, "closing %s writer", writer.Name()))
			}
		}
	}
	return result.ErrorOrNil()
}

func removeWriter(writers []RowWriter, target RowWriter) []RowWriter {
	remaining := make([]RowWriter, 0, len(writers))
	for _, writer := range writers {
		if writer != target {
			remaining = append(remaining, writer)
		}
	}
	return remaining
}
