package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/lumen/pixel"
)

// SimSpec describes one simulated camera. Zero values get sensible
// defaults; the failure hooks let tests script hardware misbehavior.
type SimSpec struct {
	ID       string // default "sim:<position>-<lens>"
	Position Position
	Lens     Lens
	Model    string

	Width  int // stream geometry, default 64
	Height int // default 48
	FPS    int // default 30

	PhotoWidth  int // still geometry, default 2× stream
	PhotoHeight int

	MaxZoomFactor float64 // hardware zoom ceiling, default 4.0
	SupportsFocus bool

	OpenErr   error // Open always fails with this
	StartErr  error // Start always fails with this
	FailAfter int   // source dies after N frames (0 = never)
}

func (sp SimSpec) withDefaults() SimSpec {
	if sp.ID == "" {
		sp.ID = fmt.Sprintf("sim:%s-%s", sp.Position, sp.Lens)
	}
	if sp.Model == "" {
		sp.Model = "lumen-sim"
	}
	if sp.Width <= 0 {
		sp.Width = 64
	}
	if sp.Height <= 0 {
		sp.Height = 48
	}
	if sp.FPS <= 0 {
		sp.FPS = 30
	}
	if sp.PhotoWidth <= 0 {
		sp.PhotoWidth = sp.Width * 2
	}
	if sp.PhotoHeight <= 0 {
		sp.PhotoHeight = sp.Height * 2
	}
	if sp.MaxZoomFactor < MinZoom {
		sp.MaxZoomFactor = 4.0
	}
	return sp
}

func (sp SimSpec) descriptor() DeviceDescriptor {
	return DeviceDescriptor{ID: sp.ID, Position: sp.Position, Lens: sp.Lens, Model: sp.Model}
}

// DefaultSimRig is a phone-like four-camera rig: back wide with
// focus, front wide with fixed focus and no zoom headroom, plus back
// telephoto and ultrawide.
func DefaultSimRig() []SimSpec {
	return []SimSpec{
		{Position: PositionBack, Lens: LensWide, SupportsFocus: true, MaxZoomFactor: 4.0},
		{Position: PositionFront, Lens: LensWide, MaxZoomFactor: 1.0},
		{Position: PositionBack, Lens: LensTelephoto, SupportsFocus: true, MaxZoomFactor: 2.0},
		{Position: PositionBack, Lens: LensUltraWide, MaxZoomFactor: 1.0},
	}
}

// SimProvider serves simulated devices and counts hardware touches so
// tests can assert "zero hardware calls" contracts.
type SimProvider struct {
	specs []SimSpec

	opens  atomic.Uint64
	stills atomic.Uint64
}

// NewSimProvider builds a provider for the given rig. With no specs
// it serves DefaultSimRig.
func NewSimProvider(specs ...SimSpec) *SimProvider {
	if len(specs) == 0 {
		specs = DefaultSimRig()
	}
	p := &SimProvider{}
	for _, sp := range specs {
		p.specs = append(p.specs, sp.withDefaults())
	}
	return p
}

// Devices returns the rig's descriptors in declaration order.
func (p *SimProvider) Devices() []DeviceDescriptor {
	out := make([]DeviceDescriptor, 0, len(p.specs))
	for _, sp := range p.specs {
		out = append(out, sp.descriptor())
	}
	return out
}

// Open builds a fresh device for id.
func (p *SimProvider) Open(id string) (Device, error) {
	for _, sp := range p.specs {
		if sp.ID != id {
			continue
		}
		p.opens.Add(1)
		if sp.OpenErr != nil {
			return nil, sp.OpenErr
		}
		return &simDevice{spec: sp, provider: p}, nil
	}
	return nil, fmt.Errorf("camera: unknown device %q", id)
}

// OpenCalls reports how many times hardware was opened.
func (p *SimProvider) OpenCalls() uint64 { return p.opens.Load() }

// StillCalls reports how many still captures reached hardware.
func (p *SimProvider) StillCalls() uint64 { return p.stills.Load() }

// simDevice generates synthetic gradient frames on a ticker, the same
// shape a hardware callback would deliver them in.
type simDevice struct {
	spec     SimSpec
	provider *SimProvider

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	frames  chan Frame
	err     error
	wg      sync.WaitGroup

	zoom    float64
	focusPt Point
	focused uint64

	seq atomic.Uint64
}

func (d *simDevice) Descriptor() DeviceDescriptor {
	return d.spec.descriptor()
}

func (d *simDevice) Format() pixel.Descriptor {
	return pixel.Descriptor{Width: d.spec.Width, Height: d.spec.Height, Format: pixel.RGBA}
}

func (d *simDevice) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spec.StartErr != nil {
		return d.spec.StartErr
	}
	if d.running {
		return fmt.Errorf("camera: device %s already started", d.spec.ID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.frames = make(chan Frame, 1)
	d.running = true
	d.zoom = MinZoom
	d.wg.Add(1)
	go d.generate(runCtx, d.frames)
	return nil
}

func (d *simDevice) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
	return nil
}

func (d *simDevice) Frames() <-chan Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

func (d *simDevice) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *simDevice) MaxZoom() float64 { return d.spec.MaxZoomFactor }

func (d *simDevice) SetZoom(factor float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.zoom = factor
	return nil
}

// Zoom exposes the last applied factor for tests.
func (d *simDevice) Zoom() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zoom
}

func (d *simDevice) SupportsFocus() bool { return d.spec.SupportsFocus }

func (d *simDevice) Focus(pt Point) error {
	if !d.spec.SupportsFocus {
		return ErrControlUnsupported
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focusPt = pt
	d.focused++
	return nil
}

func (d *simDevice) Still(ctx context.Context, opts StillOptions) (*pixel.Buffer, error) {
	d.provider.stills.Add(1)
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return nil, fmt.Errorf("camera: device %s is not streaming", d.spec.ID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := pixel.NewBuffer(pixel.Descriptor{
		Width:  d.spec.PhotoWidth,
		Height: d.spec.PhotoHeight,
		Format: pixel.RGBA,
	})
	if buf == nil {
		return nil, fmt.Errorf("camera: still allocation failed for %s", d.spec.ID)
	}
	fillGradient(buf, d.seq.Load())
	return buf, nil
}

// generate emits frames at the configured rate until ctx cancels or
// the scripted failure point. Sends are non-blocking: the consumer is
// expected to keep up or lose frames, like real capture hardware.
func (d *simDevice) generate(ctx context.Context, out chan<- Frame) {
	defer d.wg.Done()
	defer close(out)
	ticker := time.NewTicker(time.Second / time.Duration(d.spec.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq := d.seq.Add(1)
			if d.spec.FailAfter > 0 && seq > uint64(d.spec.FailAfter) {
				d.mu.Lock()
				d.err = fmt.Errorf("camera: simulated source failure on %s", d.spec.ID)
				d.running = false
				d.mu.Unlock()
				return
			}
			buf := pixel.NewBuffer(d.Format())
			if buf == nil {
				continue
			}
			fillGradient(buf, seq)
			f := Frame{
				Buffer:    buf,
				Seq:       seq,
				Timestamp: time.Now(),
				TraceID:   uuid.New().String(),
				Device:    d.spec.descriptor(),
			}
			select {
			case out <- f:
			default:
				buf.Release()
			}
		}
	}
}

// fillGradient paints a seq-shifted diagonal gradient, enough texture
// to see motion in a preview and to distinguish frames in tests.
func fillGradient(buf *pixel.Buffer, seq uint64) {
	d := buf.Descriptor()
	data := buf.Data()
	shift := byte(seq)
	for y := 0; y < d.Height; y++ {
		row := y * d.Width * 4
		for x := 0; x < d.Width; x++ {
			i := row + x*4
			data[i+0] = byte(x) + shift
			data[i+1] = byte(y)
			data[i+2] = byte(x+y) - shift
			data[i+3] = 255
		}
	}
}
