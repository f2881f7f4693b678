package viewfinder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// stopTimeout bounds how long Stop waits for the processing loop.
const stopTimeout = 3 * time.Second

// Config carries the pipeline's immutable construction parameters.
type Config struct {
	// BufferCount is the output-pool hint passed to the engine's
	// Prepare on every frame. Default 3.
	BufferCount int
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Submitted       uint64 // frames handed to Submit
	Dropped         uint64 // frames overwritten in the mailbox or refused after stop
	Processed       uint64 // frames delivered to the sink
	Filtered        uint64 // deliveries carrying a styled buffer
	PassThrough     uint64 // deliveries with no filter active
	RenderFallbacks uint64 // filter active but render declined; original delivered
	Skipped         uint64 // malformed frames released without delivery
}

// Pipeline connects a frame producer to a display sink through the
// single-slot mailbox and an optional filter engine.
//
// Lifecycle: New → Start → Submit(...) → Stop. Start is one-shot;
// Stop is idempotent and safe from any goroutine.
type Pipeline struct {
	cfg    Config
	engine FilterEngine // nil means permanent pass-through
	sink   Sink

	inbox *mailbox

	transformMu sync.Mutex
	transform   Transform

	started atomic.Bool
	stopped atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	submitted   atomic.Uint64
	processed   atomic.Uint64
	filtered    atomic.Uint64
	passthrough atomic.Uint64
	fallbacks   atomic.Uint64
	skipped     atomic.Uint64
}

// New creates a pipeline. The engine may be nil (every frame passes
// through); the sink is required.
func New(cfg Config, engine FilterEngine, sink Sink) (*Pipeline, error) {
	if sink == nil {
		return nil, fmt.Errorf("viewfinder: sink is required")
	}
	if cfg.BufferCount <= 0 {
		cfg.BufferCount = 3
	}
	return &Pipeline{
		cfg:    cfg,
		engine: engine,
		sink:   sink,
		inbox:  newMailbox(),
	}, nil
}

// Start spawns the processing loop. Returns an error if the pipeline
// was already started; a stopped pipeline is not restartable.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return fmt.Errorf("viewfinder: pipeline already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(2)
	go p.processLoop()
	go func() {
		// Closing the mailbox is what actually wakes and ends the
		// loop; the context is the trigger.
		defer p.wg.Done()
		<-runCtx.Done()
		p.inbox.close()
	}()
	return nil
}

// Stop ends frame processing and waits for the loop to exit. After
// Stop returns, no further sink callbacks fire. Idempotent: extra
// calls (and calls before Start) are no-ops.
func (p *Pipeline) Stop() error {
	if !p.started.Load() {
		return nil
	}
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
		return fmt.Errorf("viewfinder: processing loop did not exit within %s", stopTimeout)
	}
}

// Submit deposits a frame for processing. Never blocks: if the
// previous frame is still unconsumed it is replaced and released, and
// after Stop the frame is released immediately.
//
// Ownership of frame.Buffer transfers to the pipeline.
func (p *Pipeline) Submit(f Frame) {
	p.submitted.Add(1)
	p.inbox.put(f)
}

// SetTransform caches the display orientation attached to every
// subsequent delivery. Called on device switch or interface rotation,
// not per frame.
func (p *Pipeline) SetTransform(t Transform) {
	p.transformMu.Lock()
	p.transform = t
	p.transformMu.Unlock()
}

// Transform returns the cached display transform.
func (p *Pipeline) Transform() Transform {
	p.transformMu.Lock()
	defer p.transformMu.Unlock()
	return p.transform
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted:       p.submitted.Load(),
		Dropped:         p.inbox.drops.Load(),
		Processed:       p.processed.Load(),
		Filtered:        p.filtered.Load(),
		PassThrough:     p.passthrough.Load(),
		RenderFallbacks: p.fallbacks.Load(),
		Skipped:         p.skipped.Load(),
	}
}

// processLoop drains the mailbox one frame at a time until close.
func (p *Pipeline) processLoop() {
	defer p.wg.Done()
	for {
		f := p.inbox.take()
		if f == nil {
			return
		}
		p.process(*f)
	}
}

// process styles and delivers one frame. Malformed frames are
// silently skipped: released, counted, never delivered. A single bad
// frame must not take the stream down.
func (p *Pipeline) process(f Frame) {
	if f.Buffer == nil {
		p.skipped.Add(1)
		return
	}
	desc := f.Buffer.Descriptor()
	if !desc.Valid() || len(f.Buffer.Data()) != desc.Size() {
		f.Buffer.Release()
		p.skipped.Add(1)
		return
	}

	out := f
	if p.engine != nil && p.engine.Active() {
		p.engine.Prepare(desc, p.cfg.BufferCount)
		if styled := p.engine.Render(f.Buffer); styled != nil {
			f.Buffer.Release()
			out.Buffer = styled
			p.filtered.Add(1)
		} else {
			p.fallbacks.Add(1)
		}
	} else {
		p.passthrough.Add(1)
	}

	p.processed.Add(1)
	p.sink.Display(out, p.Transform())
}
