// Package pool provides the bounded worker pool that all blocking
// acquisition work is offloaded to. Saturation degrades to queueing latency;
// a submitted task is never silently dropped.
package pool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/ulugbekdev/savetube/generic"
	"github.com/ulugbekdev/savetube/internal/sync_"
)

var ErrClosed = errors.New("worker pool closed")

// DefaultSize scales with available parallelism, capped so a large host does
// not turn into a download farm.
func DefaultSize() int {
	n := runtime.GOMAXPROCS(0) * 4
	if n > 16 {
		n = 16
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Pool runs submitted functions on a fixed set of workers.
type Pool struct {
	tasks chan func()
	// done is closed by Close to unblock and refuse in-flight Submits;
	// tasks itself is only closed after every sender has left.
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	sending sync.WaitGroup
	wg      sync.WaitGroup
	drained sync_.Event
}

func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize()
	}
	p := &Pool{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		p.drained.Set()
	}()
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues f for execution, blocking while the pool is saturated. It
// returns early if ctx is done before the task could be queued; once queued,
// the task will run regardless of ctx. A Submit still blocked when the pool
// closes returns ErrClosed.
func (p *Pool) Submit(ctx context.Context, f func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.sending.Add(1)
	p.mu.Unlock()
	defer p.sending.Done()

	select {
	case p.tasks <- f:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued tasks to finish. The task
// channel is closed only after every in-flight Submit has either queued its
// task or returned ErrClosed, so no sender can hit a closed channel.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.drained.Wait()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.sending.Wait()
	close(p.tasks)
	<-p.drained.Wait()
}

// Await runs f on the pool and waits for its result until ctx is done. A
// done context abandons the wait, not the task: the orphaned task keeps
// running to completion and its result is discarded. Tasks are expected to
// self-bound via their own timeouts, so an abandoned wait does not leak
// indefinitely.
func Await[T any](ctx context.Context, p *Pool, f func() (T, error)) (T, error) {
	var zero T
	result := make(chan generic.Result[T], 1)
	err := p.Submit(ctx, func() {
		result <- generic.NewResult(f())
	})
	if err != nil {
		return zero, err
	}
	select {
	case r := <-result:
		return r.Get()
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
