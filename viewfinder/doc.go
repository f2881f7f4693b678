// Package viewfinder implements the live frame pipeline: capture
// callbacks deposit frames into a single-slot mailbox, one processing
// goroutine drains it, optionally styles each frame through a filter
// engine, and delivers the result to a display sink.
//
// # Philosophy
//
// "Drop frames, never queue. Latency > Completeness."
//
// A viewfinder that shows a 500ms-old frame is broken; a viewfinder
// that skipped that frame is fine. The producer (capture hardware) is
// authoritative over timing and gets no backpressure signal: Submit
// never blocks, and a frame that arrives before its predecessor was
// consumed simply replaces it. The mailbox holds at most one frame,
// so latency is bounded by exactly one processing pass.
//
// # Architecture
//
//	capture ──Submit──► [mailbox: 1 slot, overwrite] ──take──► process loop
//	                                                              │
//	                                              engine.Render ──┤ (nil → pass-through)
//	                                                              ▼
//	                                                     sink.Display(frame, transform)
//
// The processing loop is strictly one frame at a time. Malformed
// frames (nil or inconsistent buffers) are released, counted and
// skipped; nothing reaches the sink, nothing escalates.
//
// # Basic Usage
//
//	pipe, err := viewfinder.New(viewfinder.Config{}, engine, sink)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := pipe.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pipe.Stop()
//
//	// from the capture callback:
//	pipe.Submit(viewfinder.Frame{Buffer: buf, Seq: seq, Timestamp: ts})
//
// # Ownership
//
// Submit transfers the frame's buffer reference to the pipeline. The
// pipeline releases it on overwrite, skip, or successful filtering;
// otherwise the reference travels to the sink, which releases it
// after display.
package viewfinder
