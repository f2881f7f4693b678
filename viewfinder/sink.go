package viewfinder

import (
	"time"

	"github.com/visiona/lumen/pixel"
)

// Frame is one captured image traversing the pipeline.
type Frame struct {
	Buffer    *pixel.Buffer
	Seq       uint64
	Timestamp time.Time
	TraceID   string
}

// Transform tells the sink how to orient a frame for display. It is
// derived from device position and interface orientation whenever
// either changes, not recomputed per frame, and attached to every
// delivery.
type Transform struct {
	Rotation pixel.Rotation
	Mirrored bool
}

// Sink receives finished frames for display.
//
// Contract:
//   - Display must not block: it runs on the processing goroutine,
//     and a slow sink stalls the whole viewfinder.
//   - Ownership of frame.Buffer transfers to the sink, which must
//     Release it after use.
type Sink interface {
	Display(frame Frame, t Transform)
}

// FilterEngine is the styling stage consumed by the pipeline.
// A nil Render return means "could not style this frame" and the
// pipeline passes the original through. lutfilter.Engine satisfies
// this interface.
type FilterEngine interface {
	// Active reports whether any filter is selected; when false the
	// pipeline skips Prepare and Render entirely.
	Active() bool
	// Prepare is called once per frame with the frame's descriptor.
	// Implementations make it an idempotent no-op when already
	// prepared for that format.
	Prepare(desc pixel.Descriptor, bufferCountHint int)
	// Render returns a styled copy or nil.
	Render(in *pixel.Buffer) *pixel.Buffer
}
