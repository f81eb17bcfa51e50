package output

import (
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

const (
	DefaultPerOutputMaxRows   = 500
	DefaultTotalBufferMaxRows = 5000
)

// BufferedOutputStream batches rows per output kind before flushing them
// through the fanout in one send per kind. Row-heavy schema versions write
// thousands of rows per trial; buffering keeps the queue and sink traffic to
// a handful of large messages instead.
//
// Callers must Close the stream on every exit path, success or failure; the
// final flush is mandatory, not best effort.
type BufferedOutputStream struct {
	fanout             Fanout
	perOutputMaxRows   int
	totalBufferMaxRows int

	buffers map[model.OutputKind][]model.Row
	total   int
}

func NewBufferedOutputStream(fanout Fanout, perOutputMaxRows int, totalBufferMaxRows int) *BufferedOutputStream {
	if perOutputMaxRows <= 0 {
		perOutputMaxRows = DefaultPerOutputMaxRows
	}
	if totalBufferMaxRows <= 0 {
		totalBufferMaxRows = DefaultTotalBufferMaxRows
	}
	return &BufferedOutputStream{
		fanout:             fanout,
		perOutputMaxRows:   perOutputMaxRows,
		totalBufferMaxRows: totalBufferMaxRows,
		buffers:            make(map[model.OutputKind][]model.Row),
	}
}

// Add appends rows to the kind's buffer. When any kind's buffer or the total
// buffered row count reaches its threshold, every non-empty buffer is
// flushed.
func (s *BufferedOutputStream) Add(kind model.OutputKind, rows ...model.Row) error {
	s.buffers[kind] = append(s.buffers[kind], rows...)
	s.total += len(rows)

	if len(s.buffers[kind]) >= s.perOutputMaxRows || s.total >= s.totalBufferMaxRows {
		return s.Flush()
	}
	return nil
}

// Flush sends every non-empty buffer through the fanout, one send per kind
// in registration order, then clears all buffers. Buffers are cleared even
// when a send fails so rows are never delivered twice.
func (s *BufferedOutputStream) Flush() error {
	var result *multierror.Error
	for _, kind := range model.AllOutputs {
		rows := s.buffers[kind]
		if len(rows) == 0 {
			continue
		}
		log.Debugf("Flushing %d rows to output %s", len(rows), kind)
		if err := s.fanout.Send(kind, rows); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.buffers = make(map[model.OutputKind][]model.Row)
	s.total = 0
	return result.ErrorOrNil()
}

// Close performs the final flush.
func (s *BufferedOutputStream) Close() error {
	return s.Flush()
}
