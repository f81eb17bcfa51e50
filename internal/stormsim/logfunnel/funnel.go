// Package logfunnel serialises log records produced by many concurrent trial
// workers into the parent process logger.
//
// Workers log through a dedicated logger whose only handler forwards records
// onto a shared queue. A single consumer goroutine drains the queue and
// re-emits each record through the parent logger, so parallel trials never
// interleave partial writes on one sink.
package logfunnel

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// stopRecord is the reserved sentinel that terminates the consumer loop.
var stopRecord = &logrus.Entry{}

// Funnel owns the shared record queue and the consumer that drains it.
type Funnel struct {
	queue  chan *logrus.Entry
	target *logrus.Logger
	done   chan struct{}
}

func New(target *logrus.Logger, queueSize int) *Funnel {
	return &Funnel{
		queue:  make(chan *logrus.Entry, queueSize),
		target: target,
		done:   make(chan struct{}),
	}
}

// Run is the consumer loop. Start it in its own goroutine; it exits when the
// stop sentinel is read.
func (f *Funnel) Run() {
	defer close(f.done)
	for entry := range f.queue {
		if entry == stopRecord {
			break
		}
		f.target.WithFields(entry.Data).Log(entry.Level, entry.Message)
	}
	f.target.Debug("Log funnel is exiting")
}

// Stop enqueues the sentinel. Records ahead of it are still emitted; callers
// must Join afterwards.
func (f *Funnel) Stop() {
	f.queue <- stopRecord
}

// Join blocks until the consumer has drained the queue.
func (f *Funnel) Join() {
	<-f.done
}

// queueHook forwards fired records onto the active funnel's queue. The queue
// is swapped when a new funnel initialises, so consecutive runs in one
// process each receive their own records.
type queueHook struct {
	mu    sync.RWMutex
	queue chan<- *logrus.Entry
}

func (h *queueHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *queueHook) Fire(entry *logrus.Entry) error {
	h.mu.RLock()
	queue := h.queue
	h.mu.RUnlock()
	if queue != nil {
		// Entry.Dup copies Data, Time and Context but not Level or Message;
		// carry them over so the consumer re-emits the record faithfully.
		dup := entry.Dup()
		dup.Level = entry.Level
		dup.Message = entry.Message
		queue <- dup
	}
	return nil
}

var (
	installMu    sync.Mutex
	workerLogger *logrus.Logger
	activeHook   *queueHook
)

// Initialize points the process-wide forwarding handler at this funnel and
// returns the logger all workers must log through. The handler is installed
// exactly once; installing more than one would emit every record multiple
// times. Repeat calls re-point the handler and return the same logger.
func (f *Funnel) Initialize(level logrus.Level) *logrus.Logger {
	installMu.Lock()
	defer installMu.Unlock()
	if workerLogger == nil {
		activeHook = &queueHook{}
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		logger.AddHook(activeHook)
		workerLogger = logger
	}
	workerLogger.SetLevel(level)
	activeHook.mu.Lock()
	activeHook.queue = f.queue
	activeHook.mu.Unlock()
	return workerLogger
}

// WorkerLogger returns the shared worker logger tagged with the trial id.
func (f *Funnel) WorkerLogger(simID int) *logrus.Entry {
	return f.Initialize(logrus.InfoLevel).WithField("sim_id", simID)
}

// reset clears the process-wide handler installation. Tests only.
func reset() {
	installMu.Lock()
	defer installMu.Unlock()
	workerLogger = nil
	activeHook = nil
}
