package level

import (
	"context"
	"sync"
)

// task is an operation submitted while the store was still opening.
type task struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// lifecycle tracks the store status and the deferred-open queue. Tasks are
// released strictly in submission order by the goroutine that performs the
// open, so nothing submitted later can overtake them.
type lifecycle struct {
	mu      sync.Mutex
	status  Status
	queue   []*task
	opening chan struct{} // closed when the in-flight open attempt ends
	closing chan struct{} // closed when the in-flight close ends
	abort   bool          // close requested during an open attempt
	openErr error

	// rw guards the connection: operations hold it shared while they run,
	// close holds it exclusively while tearing the connection down.
	rw sync.RWMutex
}

// do runs fn now if the store is open, queues it while the store is
// opening, and fails with ErrNotOpen otherwise.
func (lc *lifecycle) do(ctx context.Context, fn func(ctx context.Context) error) error {
	lc.mu.Lock()
	switch lc.status {
	case StatusOpen:
		lc.rw.RLock()
		lc.mu.Unlock()
		defer lc.rw.RUnlock()
		return fn(ctx)
	case StatusOpening:
		t := &task{ctx: ctx, run: fn, done: make(chan error, 1)}
		lc.queue = append(lc.queue, t)
		lc.mu.Unlock()
		select {
		case err := <-t.done:
			return err
		case <-ctx.Done():
			if lc.withdraw(t) {
				return ctx.Err()
			}
			// Already dequeued: the task runs or is rejected, so wait for it.
			return <-t.done
		}
	default:
		lc.mu.Unlock()
		return ErrNotOpen
	}
}

// flush releases queued tasks in order and flips the status to open once
// the queue is empty. It returns ErrNotOpen if a close arrived meanwhile.
func (lc *lifecycle) flush() (int, error) {
	n := 0
	for {
		lc.mu.Lock()
		if lc.abort {
			lc.mu.Unlock()
			return n, ErrNotOpen
		}
		if len(lc.queue) == 0 {
			lc.status = StatusOpen
			lc.mu.Unlock()
			return n, nil
		}
		t := lc.queue[0]
		lc.queue[0] = nil
		lc.queue = lc.queue[1:]
		lc.mu.Unlock()

		lc.run(t)
		n++
	}
}

func (lc *lifecycle) run(t *task) {
	if err := t.ctx.Err(); err != nil {
		t.done <- err
		return
	}
	lc.rw.RLock()
	defer lc.rw.RUnlock()
	t.done <- t.run(t.ctx)
}

// withdraw removes t from the queue. It reports false once t has been
// dequeued for running or rejection.
func (lc *lifecycle) withdraw(t *task) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for i, q := range lc.queue {
		if q == t {
			lc.queue = append(lc.queue[:i], lc.queue[i+1:]...)
			return true
		}
	}
	return false
}

// takeQueue empties the queue. Callers hold mu.
func (lc *lifecycle) takeQueue() []*task {
	q := lc.queue
	lc.queue = nil
	return q
}

// reject fails every task with ErrNotOpen, in submission order.
func reject(tasks []*task) {
	for _, t := range tasks {
		t.done <- ErrNotOpen
	}
}

// pending reports the number of queued tasks.
func (lc *lifecycle) pending() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return len(lc.queue)
}

func (lc *lifecycle) current() Status {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.status
}

func wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
