package viewfinder

import (
	"sync"
	"sync/atomic"
)

// mailbox is the single-slot exchange cell between the capture
// callback and the processing loop. put never blocks: an unconsumed
// frame is released and overwritten, keeping exactly the latest frame
// pending. take blocks until a frame arrives or the mailbox closes.
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *Frame
	closed  bool

	drops atomic.Uint64
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// put deposits a frame. Overwrites (and releases) any unconsumed
// predecessor; after close, the frame is released immediately.
// Both paths count a drop.
func (m *mailbox) put(f Frame) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if f.Buffer != nil {
			f.Buffer.Release()
		}
		m.drops.Add(1)
		return
	}
	if m.pending != nil {
		if m.pending.Buffer != nil {
			m.pending.Buffer.Release()
		}
		m.drops.Add(1)
	}
	m.pending = &f
	m.mu.Unlock()
	m.cond.Signal()
}

// take blocks until a frame is pending or the mailbox is closed.
// Returns nil exactly when closed.
func (m *mailbox) take() *Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.pending == nil && !m.closed {
		m.cond.Wait()
	}
	f := m.pending
	m.pending = nil
	return f
}

// close releases any pending frame and wakes the consumer. Idempotent.
func (m *mailbox) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.pending != nil {
		if m.pending.Buffer != nil {
			m.pending.Buffer.Release()
		}
		m.pending = nil
		m.drops.Add(1)
	}
	m.mu.Unlock()
	m.cond.Broadcast()
}
