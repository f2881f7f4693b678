package gstcam

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// pipelineElements holds the references needed for teardown and
// callback wiring after construction.
type pipelineElements struct {
	pipeline *gst.Pipeline
	appsink  *app.Sink
}

// buildPipeline constructs the MJPEG decode graph for one source.
// The pipeline is configured but not started; the caller sets it to
// PLAYING once callbacks are attached.
func buildPipeline(src Source) (*pipelineElements, error) {
	// Safe to call multiple times.
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create pipeline: %w", err)
	}

	v4l2src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create v4l2src: %w", err)
	}
	v4l2src.SetProperty("device", src.Path)

	// Lock the source to its compressed mode; without this v4l2src
	// negotiates a raw format and the good frame rates disappear.
	jpegCaps, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create jpeg capsfilter: %w", err)
	}
	jpegCaps.SetProperty("caps", gst.NewCapsFromString(fmt.Sprintf(
		"image/jpeg,width=%d,height=%d,framerate=%d/1", src.Width, src.Height, src.FPS)))

	jpegdec, err := gst.NewElement("jpegdec")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create jpegdec: %w", err)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // auto-detect cores

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	rgbaCaps, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create rgba capsfilter: %w", err)
	}
	rgbaCaps.SetProperty("caps", gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1", src.Width, src.Height, src.FPS)))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("gstcam: create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // real-time, no clock sync
	appsink.SetProperty("max-buffers", 1) // keep only the latest frame
	appsink.SetProperty("drop", true)
	appsink.SetProperty("qos", true) // let upstream drop before decoding

	pipeline.AddMany(v4l2src, jpegCaps, jpegdec, converter, scaler, videorate, rgbaCaps, appsink.Element)
	if err := gst.ElementLinkMany(v4l2src, jpegCaps, jpegdec, converter, scaler, videorate, rgbaCaps, appsink.Element); err != nil {
		return nil, fmt.Errorf("gstcam: link pipeline: %w", err)
	}

	return &pipelineElements{pipeline: pipeline, appsink: appsink}, nil
}

// destroyPipeline drops the graph to NULL, releasing device and
// decoder resources. Safe on a nil receiver.
func destroyPipeline(el *pipelineElements) {
	if el == nil || el.pipeline == nil {
		return
	}
	_ = el.pipeline.SetState(gst.StateNull)
}
