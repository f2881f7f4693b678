// Package v4l2cam backs the camera session with Video4Linux2 capture
// devices via go4vl.
//
// # Philosophy
//
// V4L2 knows device paths, not phone anatomy. Which /dev/video node is
// the "back wide" camera, whether it can zoom, whether tapping it
// should kick an autofocus cycle: none of that is discoverable, so
// the operator declares it. A Mapping is that declaration: one per
// device node, carrying position, lens role and control capabilities.
// The provider serves exactly what was declared, nothing probed.
//
// # Controls
//
// Zoom and focus go through raw V4L2 control IDs. UVC hardware is
// wildly inconsistent here, so control writes are tolerant: a camera
// that rejects focus-auto still streams, it just will not refocus.
// Hard failures are reserved for the stream itself.
//
// # Stills
//
// Webcams have no separate photo pipe. A still is a clone of the
// newest streamed frame, so it shares the stream's resolution and
// inherits whatever exposure the stream was running.
//
// # Basic Usage
//
//	provider, err := v4l2cam.NewProvider(v4l2cam.Mapping{
//	    Path:     "/dev/video0",
//	    Position: camera.PositionBack,
//	    Lens:     camera.LensWide,
//	    Width:    1280,
//	    Height:   720,
//	    FPS:      30,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, err := camera.NewSession(camera.Config{Provider: provider})
package v4l2cam
