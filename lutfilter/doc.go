// Package lutfilter implements the real-time LUT color engine: a 3D
// lookup-table transform applied per frame between capture and
// preview.
//
// # Philosophy
//
// "A late frame is worse than an unfiltered frame."
//
// The engine sits on the per-frame hot path, so every failure mode
// degrades to pass-through instead of stalling: render before prepare
// answers nil, an exhausted output pool answers nil, a missing custom
// table answers nil. The caller forwards the original frame and the
// viewer sees an unstyled image for a frame or two, never a freeze.
//
// # Design Principles
//
//  1. Prepare is decoupled from filter identity: switching LUTs over
//     the same pixel geometry reuses the prepared output pool; only
//     Reset or a format change forces re-allocation.
//  2. SetFilter is atomic and takes effect on the next Render, never
//     mid-frame.
//  3. Render never mutates its input; every output is a freshly
//     pooled buffer of identical dimensions.
//  4. Prepare failures are recorded, not returned: the render path
//     checks Prepared() and falls through, keeping the error surface
//     off the per-frame path.
//
// # Architecture
//
//	capture frame ──► Render ──► styled frame ──► sink
//	                    │
//	                    ├── Identity (atomic, control plane writes)
//	                    ├── Table (33³ RGB cube, trilinear sampled)
//	                    └── pixel.Pool (output buffers, non-blocking)
//
// Built-in looks are generated procedurally once and cached; custom
// looks load from industry-standard .cube files via LoadCube.
//
// # Basic Usage
//
//	engine := lutfilter.New(lutfilter.Config{})
//	engine.SetFilter(lutfilter.Sepia)
//
//	// per frame, on the processing goroutine:
//	engine.Prepare(frame.Descriptor(), 3) // idempotent
//	if out := engine.Render(frame); out != nil {
//	    deliver(out)
//	    frame.Release()
//	} else {
//	    deliver(frame) // pass-through
//	}
package lutfilter
