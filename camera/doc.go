// Package camera implements the device session controller: it owns
// the physical capture device selection, feeds the live frame
// pipeline, and serves one-shot still captures.
//
// # Philosophy
//
// "No operation may assume a device. Every operation must check."
//
// The session models "no active input" as an explicit state rather
// than an assumption: every device-dependent operation answers
// ErrNoInput instead of crashing when nothing is selected, and a
// failed input swap restores the previous input rather than leaving
// the session dark.
//
// # Architecture
//
//	Provider ──enumerate/open──► Session ──frames──► handler (viewfinder.Submit)
//	                               │
//	                               ├── device-configuration lock
//	                               │   (switch, cycle, zoom, focus: exclusive)
//	                               ├── orientation tracker (gravity @ 1/30s)
//	                               └── still capture (async, exactly-once callback)
//
// Hardware sits behind the Device and Provider interfaces. The
// package ships a simulated provider for tests and headless rigs;
// real backends live in camera/v4l2cam (raw V4L2) and camera/gstcam
// (GStreamer).
//
// # Session States
//
// idle → running (Start), running → stopped (Stop, idempotent),
// any → failed on unrecoverable setup errors. failed is terminal for
// the session instance; build a new session to recover.
//
// # Basic Usage
//
//	provider := camera.NewSimProvider(camera.DefaultSimRig()...)
//	session, err := camera.NewSession(camera.Config{Provider: provider})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session.SetFrameHandler(func(f camera.Frame) {
//	    pipe.Submit(viewfinder.Frame{Buffer: f.Buffer, Seq: f.Seq, Timestamp: f.Timestamp, TraceID: f.TraceID})
//	})
//	if err := session.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Stop()
package camera
