package output

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

// recordingFanout captures every Send in order.
type recordingFanout struct {
	messages []model.Message
	err      error
}

func (f *recordingFanout) Send(kind model.OutputKind, rows []model.Row) error {
	f.messages = append(f.messages, model.Message{Kind: kind, Rows: rows})
	return f.err
}

func row(n int) model.Row {
	return model.Row{"sim_id": n}
}

func rowSet(n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = row(i)
	}
	return rows
}

func TestAddBuffersBelowThresholds(t *testing.T) {
	fanout := &recordingFanout{}
	stream := NewBufferedOutputStream(fanout, 3, 100)

	require.NoError(t, stream.Add(model.OutputExposures, row(1), row(2)))
	assert.Empty(t, fanout.messages)
}

func TestPerOutputThresholdFlushesEverything(t *testing.T) {
	fanout := &recordingFanout{}
	stream := NewBufferedOutputStream(fanout, 3, 100)

	require.NoError(t, stream.Add(model.OutputPremiums, row(1)))
	require.NoError(t, stream.Add(model.OutputExposures, row(1), row(2), row(3)))

	// one send per non-empty kind, in registration order
	require.Len(t, fanout.messages, 2)
	assert.Equal(t, model.OutputExposures, fanout.messages[0].Kind)
	assert.Len(t, fanout.messages[0].Rows, 3)
	assert.Equal(t, model.OutputPremiums, fanout.messages[1].Kind)
	assert.Len(t, fanout.messages[1].Rows, 1)

	// buffers were cleared: the next add does not re-send old rows
	require.NoError(t, stream.Add(model.OutputExposures, rowSet(3)...))
	require.Len(t, fanout.messages, 3)
	assert.Len(t, fanout.messages[2].Rows, 3)
}

func TestTotalThresholdFlushes(t *testing.T) {
	fanout := &recordingFanout{}
	stream := NewBufferedOutputStream(fanout, 100, 5)

	require.NoError(t, stream.Add(model.OutputExposures, rowSet(2)...))
	require.NoError(t, stream.Add(model.OutputLosses, rowSet(3)...))

	require.Len(t, fanout.messages, 2)
	assert.Equal(t, model.OutputExposures, fanout.messages[0].Kind)
	assert.Equal(t, model.OutputLosses, fanout.messages[1].Kind)
}

func TestCloseFlushesRemainder(t *testing.T) {
	fanout := &recordingFanout{}
	stream := NewBufferedOutputStream(fanout, 100, 100)

	require.NoError(t, stream.Add(model.OutputNLR, row(1)))
	require.NoError(t, stream.Close())

	require.Len(t, fanout.messages, 1)
	assert.Equal(t, model.OutputNLR, fanout.messages[0].Kind)

	// nothing left to flush
	require.NoError(t, stream.Close())
	assert.Len(t, fanout.messages, 1)
}

func TestFailedFlushClearsBuffersWithoutResend(t *testing.T) {
	fanout := &recordingFanout{err: errors.New("sink down")}
	stream := NewBufferedOutputStream(fanout, 100, 100)

	require.NoError(t, stream.Add(model.OutputExposures, row(1)))
	assert.Error(t, stream.Flush())
	require.Len(t, fanout.messages, 1)

	// rows are never delivered twice
	assert.NoError(t, stream.Flush())
	assert.Len(t, fanout.messages, 1)
}
