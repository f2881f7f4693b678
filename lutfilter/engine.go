package lutfilter

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/visiona/lumen/pixel"
)

// Config carries the engine's immutable construction parameters.
type Config struct {
	// BufferCount sizes the output pool when Prepare gets no hint.
	// Default 3.
	BufferCount int
	// Workers bounds the goroutines banding one render. Default
	// min(NumCPU, 8).
	Workers int
}

const maxRenderWorkers = 8

// Engine applies the active LUT to one buffer at a time.
//
// State machine: unprepared → prepared(format), re-entrant per frame,
// back to unprepared on Reset or when a frame arrives in a different
// format. Identity changes never touch prepared resources; the same
// pool serves every look over one pixel geometry.
//
// Thread-safety: SetFilter/SetCustomTable/Reset are safe from any
// goroutine; Prepare and Render belong to the single processing
// goroutine.
type Engine struct {
	cfg Config

	// identity crosses from the control plane to the render path;
	// a change takes effect on the next Render, never mid-frame.
	identity atomic.Int32

	mu       sync.Mutex
	prepared bool
	desc     pixel.Descriptor
	pool     *pixel.Pool
	custom   *Table

	rendered        atomic.Uint64
	unpreparedDrops atomic.Uint64
	poolExhausted   atomic.Uint64
	prepareFailures atomic.Uint64
	resets          atomic.Uint64
	filterChanges   atomic.Uint64
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Filter          Identity
	Prepared        bool
	Rendered        uint64 // frames styled successfully
	UnpreparedDrops uint64 // Render calls answered nil for missing prep
	PoolExhausted   uint64 // Render calls answered nil for missing output buffer
	PrepareFailures uint64
	Resets          uint64
	FilterChanges   uint64
}

// New creates an engine with no active filter and nothing prepared.
func New(cfg Config) *Engine {
	if cfg.BufferCount <= 0 {
		cfg.BufferCount = 3
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Workers > maxRenderWorkers {
		cfg.Workers = maxRenderWorkers
	}
	return &Engine{cfg: cfg}
}

// SetFilter atomically selects the active LUT. Takes effect on the
// next Render. Prepared resources survive the switch.
func (e *Engine) SetFilter(id Identity) {
	e.identity.Store(int32(id))
	e.filterChanges.Add(1)
}

// Filter returns the active identity.
func (e *Engine) Filter() Identity {
	return Identity(e.identity.Load())
}

// Active reports whether a LUT is selected at all. When false the
// caller skips Render entirely and passes frames through.
func (e *Engine) Active() bool {
	return e.Filter() != None
}

// SetCustomTable installs the cube used by the Custom identity.
// Invalid tables are ignored and counted as a prepare failure.
func (e *Engine) SetCustomTable(t *Table) {
	if !t.valid() {
		e.prepareFailures.Add(1)
		return
	}
	e.mu.Lock()
	e.custom = t
	e.mu.Unlock()
}

// Prepare allocates render resources (output pool) for the given
// format. Idempotent no-op when already prepared for an identical
// descriptor; a different descriptor re-prepares from scratch.
//
// Failure is recorded, not returned: callers consult Prepared() or
// simply let Render answer nil and pass the frame through.
func (e *Engine) Prepare(desc pixel.Descriptor, bufferCountHint int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.prepared && e.desc == desc {
		return
	}
	if bufferCountHint <= 0 {
		bufferCountHint = e.cfg.BufferCount
	}
	pool, err := pixel.NewPool(desc, bufferCountHint)
	if err != nil {
		e.prepared = false
		e.pool = nil
		e.prepareFailures.Add(1)
		return
	}
	e.pool = pool
	e.desc = desc
	e.prepared = true
}

// Prepared reports whether the engine holds resources for some format.
func (e *Engine) Prepared() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prepared
}

// Reset clears prepared state. The next Render path must Prepare
// again. In-flight output buffers drain back to the abandoned pool
// and are garbage collected.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.prepared = false
	e.pool = nil
	e.mu.Unlock()
	e.resets.Add(1)
}

// Render pushes in through the active LUT and returns a freshly
// pooled output buffer of identical dimensions. Returns nil, meaning
// the caller passes the input through, when no filter is active, the
// engine is unprepared or prepared for a different format, the Custom
// identity has no table, or the output pool is exhausted.
//
// The input buffer is never modified and never returned.
func (e *Engine) Render(in *pixel.Buffer) *pixel.Buffer {
	if in == nil {
		return nil
	}
	id := e.Filter()
	if id == None {
		return nil
	}

	e.mu.Lock()
	if !e.prepared || e.desc != in.Descriptor() {
		e.mu.Unlock()
		e.unpreparedDrops.Add(1)
		return nil
	}
	pool := e.pool
	var table *Table
	if id == Custom {
		table = e.custom
	} else {
		table = builtinTable(id)
	}
	e.mu.Unlock()

	if table == nil {
		e.unpreparedDrops.Add(1)
		return nil
	}
	out := pool.Get()
	if out == nil {
		e.poolExhausted.Add(1)
		return nil
	}

	resolve(table, in, out, e.cfg.Workers)
	e.rendered.Add(1)
	return out
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	prepared := e.prepared
	e.mu.Unlock()
	return Stats{
		Filter:          e.Filter(),
		Prepared:        prepared,
		Rendered:        e.rendered.Load(),
		UnpreparedDrops: e.unpreparedDrops.Load(),
		PoolExhausted:   e.poolExhausted.Load(),
		PrepareFailures: e.prepareFailures.Load(),
		Resets:          e.resets.Load(),
		FilterChanges:   e.filterChanges.Load(),
	}
}
