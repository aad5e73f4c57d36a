package metrics

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultQueueSize = 1024

// AsyncSink decouples producers from a slower sink. Log never blocks: when the
// queue is full, or after Close, the event is dropped and counted.
type AsyncSink struct {
	next   Sink
	events chan Event
	done   chan struct{}
	onDrop func(Event)
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

type AsyncConfig struct {
	QueueSize int
	// OnDrop is called synchronously from Log for every dropped event.
	OnDrop func(Event)
}

func NewAsyncSink(next Sink, cfg AsyncConfig, logger *slog.Logger) *AsyncSink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &AsyncSink{
		next:   next,
		events: make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		onDrop: cfg.OnDrop,
		logger: logger,
	}
	go a.run()
	return a
}

func (a *AsyncSink) Log(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(e)
		return
	}
	select {
	case a.events <- e:
	default:
		a.drop(e)
	}
}

// Dropped returns how many events were discarded.
func (a *AsyncSink) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are delivered.
func (a *AsyncSink) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.events)
	a.mu.Unlock()

	<-a.done
}

func (a *AsyncSink) drop(e Event) {
	a.dropped.Add(1)
	if a.onDrop != nil {
		a.onDrop(e)
	}
}

func (a *AsyncSink) run() {
	defer close(a.done)
	for e := range a.events {
		a.deliver(e)
	}
}

func (a *AsyncSink) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("metrics sink panicked", "kind", e.Kind, "panic", r)
		}
	}()
	a.next.Log(e)
}
