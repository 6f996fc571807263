package sync_

import "sync"

// Event is a one-way boolean flag that goroutines can wait on. The pool uses
// it to signal "fully drained".
type Event struct {
	mu    sync.Mutex
	ch    chan struct{}
	value bool
}

// Set ensures the Event is true (idempotent), notifying any waiters. Returns
// true if the state was changed.
func (e *Event) Set() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.value {
		return false
	}
	e.value = true
	close(e.getChannel())
	return true
}

// Wait returns a channel that will close when the Event is true (which may be
// immediately).
func (e *Event) Wait() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getChannel()
}

func (e *Event) getChannel() chan struct{} {
	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	return e.ch
}
