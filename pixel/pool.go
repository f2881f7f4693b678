package pixel

import (
	"fmt"
	"sync/atomic"
)

// Pool is a fixed-capacity free list of buffers sharing one
// descriptor. Get is non-blocking: when every buffer is in flight the
// pool answers nil and counts the exhaustion, and the caller drops the
// frame instead of stalling the real-time path.
//
// Thread-safety: all methods are safe for concurrent use.
type Pool struct {
	desc     Descriptor
	capacity int
	free     chan *Buffer

	gets      atomic.Uint64
	recycled  atomic.Uint64
	exhausted atomic.Uint64
}

// PoolStats is a point-in-time snapshot of pool health.
type PoolStats struct {
	Capacity  int    // total buffers owned by the pool
	Available int    // buffers currently free
	Gets      uint64 // successful Get calls
	Recycled  uint64 // buffers returned by final Release
	Exhausted uint64 // Get calls that found the pool empty
}

// NewPool preallocates capacity buffers for the given descriptor.
func NewPool(desc Descriptor, capacity int) (*Pool, error) {
	if !desc.Valid() {
		return nil, fmt.Errorf("pixel: invalid pool descriptor %s", desc)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("pixel: pool capacity must be positive, got %d", capacity)
	}
	p := &Pool{
		desc:     desc,
		capacity: capacity,
		free:     make(chan *Buffer, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.free <- &Buffer{
			desc: desc,
			data: make([]byte, desc.Size()),
			pool: p,
		}
	}
	return p, nil
}

// Get returns a free buffer with its reference count reset to one, or
// nil when the pool is exhausted. Never blocks.
func (p *Pool) Get() *Buffer {
	select {
	case b := <-p.free:
		b.refs.Store(1)
		p.gets.Add(1)
		return b
	default:
		p.exhausted.Add(1)
		return nil
	}
}

// put re-files a buffer on its final Release. Non-blocking: if the
// pool was replaced while the buffer was in flight, the stray buffer
// is left to the garbage collector.
func (p *Pool) put(b *Buffer) {
	select {
	case p.free <- b:
		p.recycled.Add(1)
	default:
	}
}

// Descriptor returns the descriptor every pooled buffer shares.
func (p *Pool) Descriptor() Descriptor {
	return p.desc
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Capacity:  p.capacity,
		Available: len(p.free),
		Gets:      p.gets.Load(),
		Recycled:  p.recycled.Load(),
		Exhausted: p.exhausted.Load(),
	}
}
