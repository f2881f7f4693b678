package pixel

import "sync/atomic"

// Buffer is a reference-counted handle to one frame of raw pixel
// memory. Buffers are produced once per captured frame, consumed by at
// most one filter pass and one sink, and never retained across frames.
//
// Reference semantics:
//   - A new buffer starts with one reference.
//   - Retain() adds a reference; Release() removes one.
//   - The final Release returns pooled buffers to their pool and lets
//     free-standing buffers go to the garbage collector.
//   - Release() past zero panics (refcount bug, fail loudly).
type Buffer struct {
	desc Descriptor
	data []byte
	refs atomic.Int32
	pool *Pool
}

// NewBuffer allocates a free-standing buffer (no pool) with one
// reference. Returns nil if the descriptor is invalid.
func NewBuffer(desc Descriptor) *Buffer {
	if !desc.Valid() {
		return nil
	}
	b := &Buffer{
		desc: desc,
		data: make([]byte, desc.Size()),
	}
	b.refs.Store(1)
	return b
}

// Descriptor returns the buffer's format descriptor.
func (b *Buffer) Descriptor() Descriptor {
	return b.desc
}

// Data returns the raw pixel bytes (len == Descriptor().Size()).
// Writable only by the allocating stage before first hand-off.
func (b *Buffer) Data() []byte {
	return b.data
}

// Retain adds a reference and returns the same buffer, so a producer
// can keep a frame alive across a hand-off in one expression.
func (b *Buffer) Retain() *Buffer {
	b.refs.Add(1)
	return b
}

// Release drops one reference. On the final release a pooled buffer
// goes back to its pool for reuse; a free-standing buffer is left to
// the garbage collector.
func (b *Buffer) Release() {
	n := b.refs.Add(-1)
	if n < 0 {
		panic("pixel: Release called on an already-freed buffer")
	}
	if n == 0 && b.pool != nil {
		b.pool.put(b)
	}
}

// Refs returns the current reference count (diagnostic snapshot).
func (b *Buffer) Refs() int32 {
	return b.refs.Load()
}

// Clone returns a free-standing deep copy with one reference. Used
// when a frame must outlive the real-time path, e.g. a captured still
// handed to a completion callback.
func (b *Buffer) Clone() *Buffer {
	out := NewBuffer(b.desc)
	if out == nil {
		return nil
	}
	copy(out.data, b.data)
	return out
}
