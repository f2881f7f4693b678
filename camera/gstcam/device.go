package gstcam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/pixel"
)

// framePoolSize bounds the RGBA buffers in flight per device.
const framePoolSize = 4

// busPollInterval keeps bus monitoring responsive to shutdown without
// spinning.
const busPollInterval = 50 * time.Millisecond

// Device streams one MJPEG node through a GStreamer graph. It
// implements camera.Device; handles are single-use.
type Device struct {
	src Source

	mu       sync.Mutex
	running  bool
	elements *pipelineElements
	cancel   context.CancelFunc
	stop     chan struct{}
	frames   chan camera.Frame
	err      error
	wg       sync.WaitGroup

	pool   *pixel.Pool
	latest *pixel.Buffer
	seq    atomic.Uint64

	decoded  atomic.Uint64
	dropped  atomic.Uint64
	badSizes atomic.Uint64
}

func newDevice(src Source) *Device {
	return &Device{src: src}
}

func (d *Device) Descriptor() camera.DeviceDescriptor { return d.src.descriptor() }

func (d *Device) Format() pixel.Descriptor { return d.src.format() }

// Start builds the pipeline, attaches the sample callback and brings
// the graph to PLAYING. Frames arrive asynchronously once the source
// negotiates its format.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("gstcam: %s already started", d.src.Path)
	}

	elements, err := buildPipeline(d.src)
	if err != nil {
		return err
	}
	pool, err := pixel.NewPool(d.src.format(), framePoolSize)
	if err != nil {
		destroyPipeline(elements)
		return fmt.Errorf("gstcam: %s: %w", d.src.Path, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.elements = elements
	d.cancel = cancel
	d.pool = pool
	d.stop = make(chan struct{})
	d.frames = make(chan camera.Frame, 1)
	d.running = true

	out := d.frames
	elements.appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return d.onSample(sink, out)
		},
	})

	if err := elements.pipeline.SetState(gst.StatePlaying); err != nil {
		cancel()
		destroyPipeline(elements)
		d.running = false
		d.elements = nil
		return fmt.Errorf("gstcam: start %s: %w", d.src.Path, err)
	}

	d.wg.Add(1)
	go d.monitorBus(runCtx, elements.pipeline, out)

	slog.Info("gst device streaming",
		"path", d.src.Path,
		"size", fmt.Sprintf("%dx%d", d.src.Width, d.src.Height),
		"fps", d.src.FPS)
	return nil
}

// Stop tears the pipeline down. Idempotent; the frame channel is
// closed by the time Stop returns.
func (d *Device) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stop)
	cancel := d.cancel
	elements := d.elements
	d.mu.Unlock()

	// NULL first: no callbacks fire past this point, so the monitor
	// can close the frame channel without racing a send.
	destroyPipeline(elements)
	cancel()
	d.wg.Wait()

	d.mu.Lock()
	if d.latest != nil {
		d.latest.Release()
		d.latest = nil
	}
	d.elements = nil
	d.mu.Unlock()

	slog.Info("gst device stopped",
		"path", d.src.Path,
		"decoded", d.decoded.Load(),
		"dropped", d.dropped.Load(),
		"bad_sizes", d.badSizes.Load())
	return nil
}

func (d *Device) Frames() <-chan camera.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// onSample copies one decoded RGBA frame out of GStreamer's buffer
// into a pooled buffer. Degradation is graceful: a bad sample skips
// the frame rather than killing the stream.
func (d *Device) onSample(sink *app.Sink, out chan<- camera.Frame) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}

	want := d.src.Width * d.src.Height * 4
	if len(data) < want {
		buffer.Unmap()
		if d.badSizes.Add(1) == 1 {
			slog.Warn("gst sample size mismatch", "path", d.src.Path, "got", len(data), "want", want)
		}
		return gst.FlowOK
	}

	buf := d.pool.Get()
	if buf == nil {
		buffer.Unmap()
		d.dropped.Add(1)
		return gst.FlowOK
	}
	copy(buf.Data(), data[:want])
	buffer.Unmap()

	d.decoded.Add(1)
	d.keepLatest(buf)

	f := camera.Frame{
		Buffer:    buf,
		Seq:       d.seq.Add(1),
		Timestamp: time.Now(),
		TraceID:   uuid.New().String(),
		Device:    d.src.descriptor(),
	}
	select {
	case out <- f:
	default:
		buf.Release()
		d.dropped.Add(1)
	}
	return gst.FlowOK
}

func (d *Device) keepLatest(buf *pixel.Buffer) {
	buf.Retain()
	d.mu.Lock()
	old := d.latest
	d.latest = buf
	d.mu.Unlock()
	if old != nil {
		old.Release()
	}
}

// monitorBus watches pipeline messages until shutdown or a fatal
// error, then closes the frame channel. By close time the pipeline is
// at NULL, so no callback can race the close.
func (d *Device) monitorBus(ctx context.Context, pipeline *gst.Pipeline, out chan camera.Frame) {
	defer d.wg.Done()
	defer close(out)

	bus := pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			d.failStream(fmt.Errorf("gstcam: %s reached end of stream", d.src.Path))
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("gst pipeline error",
				"path", d.src.Path, "error", gerr.Error(), "debug", gerr.DebugString())
			d.failStream(fmt.Errorf("gstcam: %s: %s", d.src.Path, gerr.Error()))
			return
		}
	}
}

// failStream records the death reason and tears the pipeline down,
// unless the stop was deliberate.
func (d *Device) failStream(reason error) {
	select {
	case <-d.stop:
		return
	default:
	}
	d.mu.Lock()
	if d.err == nil {
		d.err = reason
	}
	d.running = false
	elements := d.elements
	d.mu.Unlock()
	destroyPipeline(elements)
}

// MaxZoom reports no zoom headroom: this backend drives the decode
// path, not UVC optics. Map control-rich nodes through v4l2cam.
func (d *Device) MaxZoom() float64 { return camera.MinZoom }

func (d *Device) SetZoom(factor float64) error { return nil }

func (d *Device) SupportsFocus() bool { return false }

func (d *Device) Focus(pt camera.Point) error { return camera.ErrControlUnsupported }

// Still clones the newest decoded frame, waiting for the first one
// within the context's budget when the pipeline has just started.
func (d *Device) Still(ctx context.Context, opts camera.StillOptions) (*pixel.Buffer, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		d.mu.Lock()
		running := d.running
		latest := d.latest
		if latest != nil {
			latest.Retain()
		}
		d.mu.Unlock()

		if latest != nil {
			clone := latest.Clone()
			latest.Release()
			if clone == nil {
				return nil, fmt.Errorf("gstcam: still allocation failed for %s", d.src.Path)
			}
			return clone, nil
		}
		if !running {
			return nil, fmt.Errorf("gstcam: %s is not streaming", d.src.Path)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
