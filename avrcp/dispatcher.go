package avrcp

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Dispatcher serializes every session mutation onto one worker
// goroutine. Nothing else touches slot or registry state, so the
// session logic itself needs no locks.
type Dispatcher struct {
	reqs      chan *task
	stopChan  chan struct{}
	stopOnce  sync.Once
	stopped   atomic.Bool
	wg        sync.WaitGroup
	processed atomic.Uint64
}

type task struct {
	id   string
	name string
	fn   func() error
	done chan error // nil for fire-and-forget requests
}

// DefaultQueueDepth bounds how many requests may be waiting before
// enqueues start failing fast.
const DefaultQueueDepth = 64

// NewDispatcher creates a stopped dispatcher; call Start before use.
func NewDispatcher(queueDepth int) *Dispatcher {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &Dispatcher{
		reqs:     make(chan *task, queueDepth),
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop shuts the worker down. Requests still queued fail with
// ErrDispatcherStopped, as do all later enqueues.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stopChan)
	})
	d.wg.Wait()
}

// Processed returns how many requests the worker has executed.
func (d *Dispatcher) Processed() uint64 { return d.processed.Load() }

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case t := <-d.reqs:
			d.exec(t)
		case <-d.stopChan:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) exec(t *task) {
	err := t.fn()
	d.processed.Inc()
	if t.done != nil {
		t.done <- err
	} else if err != nil {
		log.Printf("DISPATCH: %s (%s) failed: %v", t.name, t.id, err)
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case t := <-d.reqs:
			if t.done != nil {
				t.done <- ErrDispatcherStopped
			} else {
				log.Printf("DISPATCH: dropping %s (%s): dispatcher stopped", t.name, t.id)
			}
		default:
			return
		}
	}
}

// Enqueue submits fn for asynchronous execution in arrival order.
func (d *Dispatcher) Enqueue(name string, fn func() error) error {
	if d.stopped.Load() {
		return ErrDispatcherStopped
	}
	t := &task{id: uuid.NewString(), name: name, fn: fn}
	select {
	case d.reqs <- t:
		return nil
	case <-d.stopChan:
		return ErrDispatcherStopped
	}
}

// Do submits fn and waits for its result. Used by the HTTP surface so
// reads observe a consistent snapshot.
func (d *Dispatcher) Do(name string, fn func() error) error {
	if d.stopped.Load() {
		return ErrDispatcherStopped
	}
	t := &task{id: uuid.NewString(), name: name, fn: fn, done: make(chan error, 1)}
	select {
	case d.reqs <- t:
		// The send can race Stop and land on the buffered queue after
		// the worker already drained. Drain again in that case so the
		// reply cannot strand; whoever pulls the task answers it.
		if d.stopped.Load() {
			d.drain()
		}
	case <-d.stopChan:
		return ErrDispatcherStopped
	}
	return <-t.done
}

// Delay schedules fn to be enqueued after the given duration. The
// timer is not tracked: expiry handlers revalidate slot generations
// instead of being proactively cancelled.
func (d *Dispatcher) Delay(name string, delay time.Duration, fn func() error) {
	if d.stopped.Load() {
		return
	}
	time.AfterFunc(delay, func() {
		if err := d.Enqueue(name, fn); err != nil {
			log.Printf("DISPATCH: delayed %s dropped: %v", name, err)
		}
	})
}
