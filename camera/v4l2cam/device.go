//go:build linux

package v4l2cam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/visiona/lumen/camera"
	"github.com/visiona/lumen/pixel"
)

// Raw V4L2 camera-class control IDs. go4vl exposes the common UVC
// set; the camera-class extensions are addressed by number.
const (
	ctrlFocusAbsolute  uint32 = 0x009a090a
	ctrlFocusAuto      uint32 = 0x009a090c
	ctrlZoomAbsolute   uint32 = 0x009a090d
	ctrlAutoFocusStart uint32 = 0x009a091c
)

// framePoolSize bounds the RGBA buffers in flight per device. A slow
// consumer exhausts the pool and the pump drops, which is the point.
const framePoolSize = 4

// Device streams one V4L2 node as RGBA frames. It implements
// camera.Device; handles are single-use, the provider opens a fresh
// one per streaming run.
type Device struct {
	mapping Mapping

	mu      sync.Mutex
	running bool
	dev     *device.Device
	cancel  context.CancelFunc
	stop    chan struct{}
	frames  chan camera.Frame
	err     error
	wg      sync.WaitGroup

	pool   *pixel.Pool
	latest *pixel.Buffer // retained newest frame, feeds stills
	seq    atomic.Uint64

	converted atomic.Uint64
	dropped   atomic.Uint64
	badFrames atomic.Uint64
}

func newDevice(m Mapping) *Device {
	return &Device{mapping: m}
}

func (d *Device) Descriptor() camera.DeviceDescriptor { return d.mapping.descriptor() }

func (d *Device) Format() pixel.Descriptor { return d.mapping.format() }

// Start opens the node in YUYV, begins streaming and launches the
// conversion pump. The device asks for memory-mapped I/O and the
// declared geometry; V4L2 may adjust, and the pump validates every
// frame against the declared size rather than trusting the driver.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("v4l2cam: %s already started", d.mapping.Path)
	}

	m := d.mapping
	dev, err := device.Open(m.Path,
		device.WithIOType(v4l2.IOTypeMMAP),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtYUYV,
			Width:       uint32(m.Width),
			Height:      uint32(m.Height),
			Field:       v4l2.FieldNone,
		}),
		device.WithBufferSize(uint32(m.Width*m.Height*2)),
		device.WithFPS(uint32(m.FPS)),
	)
	if err != nil {
		return fmt.Errorf("v4l2cam: open %s: %w", m.Path, err)
	}

	pool, err := pixel.NewPool(m.format(), framePoolSize)
	if err != nil {
		dev.Close()
		return fmt.Errorf("v4l2cam: %s: %w", m.Path, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := dev.Start(runCtx); err != nil {
		cancel()
		dev.Close()
		return fmt.Errorf("v4l2cam: start %s: %w", m.Path, err)
	}

	d.dev = dev
	d.cancel = cancel
	d.pool = pool
	d.stop = make(chan struct{})
	d.frames = make(chan camera.Frame, 1)
	d.running = true
	d.wg.Add(1)
	go d.pump(dev.GetOutput(), d.frames, d.stop)

	slog.Info("v4l2 device streaming",
		"path", m.Path, "size", fmt.Sprintf("%dx%d", m.Width, m.Height), "fps", m.FPS)
	return nil
}

// Stop halts streaming and releases the node. Idempotent; the frame
// channel is closed by the time Stop returns.
func (d *Device) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stop)
	cancel := d.cancel
	dev := d.dev
	d.mu.Unlock()

	cancel()
	if err := dev.Stop(); err != nil {
		slog.Warn("v4l2 stream stop", "path", d.mapping.Path, "error", err)
	}
	if err := dev.Close(); err != nil {
		slog.Warn("v4l2 device close", "path", d.mapping.Path, "error", err)
	}
	d.wg.Wait()

	d.mu.Lock()
	if d.latest != nil {
		d.latest.Release()
		d.latest = nil
	}
	d.dev = nil
	d.mu.Unlock()

	slog.Info("v4l2 device stopped",
		"path", d.mapping.Path,
		"converted", d.converted.Load(),
		"dropped", d.dropped.Load(),
		"bad_frames", d.badFrames.Load())
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

// pump converts raw YUYV into pooled RGBA frames until the driver
// channel closes. Ownership of each emitted buffer transfers to the
// receiver; frames nobody takes are released on the spot.
func (d *Device) pump(raw <-chan []byte, out chan<- camera.Frame, stop <-chan struct{}) {
	defer d.wg.Done()
	defer close(out)

	m := d.mapping
	desc := m.descriptor()
	for data := range raw {
		if len(data) == 0 {
			continue
		}
		buf := d.pool.Get()
		if buf == nil {
			d.dropped.Add(1)
			continue
		}
		if err := yuyvToRGBA(data, buf.Data(), m.Width, m.Height); err != nil {
			buf.Release()
			if d.badFrames.Add(1) == 1 {
				slog.Warn("v4l2 frame geometry mismatch", "path", m.Path, "error", err)
			}
			continue
		}
		d.converted.Add(1)
		d.keepLatest(buf)

		f := camera.Frame{
			Buffer:    buf,
			Seq:       d.seq.Add(1),
			Timestamp: time.Now(),
			TraceID:   uuid.New().String(),
			Device:    desc,
		}
		select {
		case out <- f:
		default:
			buf.Release()
			d.dropped.Add(1)
		}
	}

	// Driver channel closed. Deliberate stop is fine; anything else
	// is the node dying mid-stream.
	select {
	case <-stop:
	default:
		d.mu.Lock()
		if d.err == nil {
			d.err = fmt.Errorf("v4l2cam: %s stopped delivering frames", m.Path)
		}
		d.running = false
		d.mu.Unlock()
	}
}

// keepLatest retains buf as the newest frame, releasing the previous
// holder. Stills clone from here.
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

func (d *Device) MaxZoom() float64 { return d.mapping.MaxZoomFactor }

// SetZoom maps the session factor linearly onto the declared
// zoom-absolute range. Fixed-optics mappings accept and ignore it.
func (d *Device) SetZoom(factor float64) error {
	m := d.mapping
	if m.MaxZoomFactor <= camera.MinZoom || m.ZoomMax <= m.ZoomMin {
		return nil
	}
	if factor < camera.MinZoom {
		factor = camera.MinZoom
	}
	if factor > m.MaxZoomFactor {
		factor = m.MaxZoomFactor
	}
	span := float64(m.ZoomMax - m.ZoomMin)
	value := m.ZoomMin + int32((factor-camera.MinZoom)/(m.MaxZoomFactor-camera.MinZoom)*span+0.5)
	return d.setControl(ctrlZoomAbsolute, value)
}

func (d *Device) SupportsFocus() bool { return d.mapping.Focusable }

// Focus kicks one autofocus cycle. V4L2 has no focus ROI, so the
// point of interest informs nothing beyond the decision to refocus;
// the hardware meters globally.
func (d *Device) Focus(pt camera.Point) error {
	if !d.mapping.Focusable {
		return camera.ErrControlUnsupported
	}
	// Not all cameras support all controls: enable continuous AF if
	// present, then kick a one-shot cycle for the ones that gate on it.
	_ = d.setControl(ctrlFocusAuto, 1)
	_ = d.setControl(ctrlAutoFocusStart, 1)
	slog.Debug("v4l2 focus kicked", "path", d.mapping.Path, "x", pt.X, "y", pt.Y)
	return nil
}

func (d *Device) setControl(id uint32, value int32) error {
	d.mu.Lock()
	dev := d.dev
	d.mu.Unlock()
	if dev == nil {
		return fmt.Errorf("v4l2cam: %s is not open", d.mapping.Path)
	}
	if err := dev.SetControlValue(id, value); err != nil {
		return fmt.Errorf("v4l2cam: control 0x%08x on %s: %w", id, d.mapping.Path, err)
	}
	return nil
}

// Still clones the newest streamed frame. Flash is accepted and
// ignored; V4L2 capture nodes have no strobe to fire. Right after
// Start the stream may not have produced a frame yet, so Still waits
// for one within the context's budget.
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
				return nil, fmt.Errorf("v4l2cam: still allocation failed for %s", d.mapping.Path)
			}
			return clone, nil
		}
		if !running {
			return nil, fmt.Errorf("v4l2cam: %s is not streaming", d.mapping.Path)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
