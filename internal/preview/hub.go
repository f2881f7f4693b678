package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/visiona/lumen/internal/config"
	"github.com/visiona/lumen/viewfinder"
)

// Stats is a point-in-time snapshot of hub counters.
type Stats struct {
	Clients       int
	FramesIn      uint64
	FramesDropped uint64
	FramesSent    uint64
	EncodeErrors  uint64
}

// pending is the single slot between Display and the encoder.
type pending struct {
	frame     viewfinder.Frame
	transform viewfinder.Transform
}

// Hub is a WebSocket fan-out for encoded preview frames. It
// satisfies viewfinder.Sink.
type Hub struct {
	quality     int
	minInterval time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	slot    *pending
	closed  bool

	connsMu sync.Mutex
	conns   map[*websocket.Conn]bool

	// transform last announced to clients; new connections get it
	// on arrival so they can orient the first frame correctly
	tmu  sync.Mutex
	last viewfinder.Transform

	upgrader websocket.Upgrader
	server   *http.Server
	running  atomic.Bool
	wg       sync.WaitGroup

	framesIn      atomic.Uint64
	framesDropped atomic.Uint64
	framesSent    atomic.Uint64
	encodeErrors  atomic.Uint64
}

// NewHub builds a hub from validated preview configuration.
func NewHub(cfg config.PreviewConfig) *Hub {
	maxFPS := cfg.MaxFPS
	if maxFPS <= 0 {
		maxFPS = 15
	}
	quality := cfg.Quality
	if quality <= 0 {
		quality = 80
	}
	h := &Hub{
		quality:     quality,
		minInterval: time.Second / time.Duration(maxFPS),
		conns:       make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	h.cond = sync.NewCond(&h.mu)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/preview", h.serveWS)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "lumen preview: connect a WebSocket client to /ws/preview\n")
	})

	h.server = &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
		// no WriteTimeout: it would sever long-lived streams
		ReadHeaderTimeout: 5 * time.Second,
	}
	return h
}

// Start brings up the listener and the encoder goroutine.
func (h *Hub) Start(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return fmt.Errorf("preview: hub already running")
	}

	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()

	h.wg.Add(1)
	go h.encodeLoop()

	go func() {
		slog.Info("preview hub listening", "addr", h.server.Addr, "path", "/ws/preview")
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("preview server failed", "error", err)
		}
	}()

	return nil
}

// Stop closes the slot, the listener and every client connection.
func (h *Hub) Stop() error {
	if !h.running.CompareAndSwap(true, false) {
		return nil
	}

	h.mu.Lock()
	h.closed = true
	if h.slot != nil {
		if h.slot.frame.Buffer != nil {
			h.slot.frame.Buffer.Release()
		}
		h.slot = nil
		h.framesDropped.Add(1)
	}
	h.mu.Unlock()
	h.cond.Broadcast()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		slog.Warn("preview server shutdown", "error", err)
	}

	h.connsMu.Lock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
	h.connsMu.Unlock()

	h.wg.Wait()

	slog.Info("preview hub stopped",
		"frames_in", h.framesIn.Load(),
		"frames_sent", h.framesSent.Load(),
		"frames_dropped", h.framesDropped.Load())
	return nil
}

// Display deposits a frame for encoding. Never blocks: an unconsumed
// predecessor is released and overwritten. Satisfies viewfinder.Sink;
// ownership of frame.Buffer passes to the hub.
func (h *Hub) Display(frame viewfinder.Frame, t viewfinder.Transform) {
	h.framesIn.Add(1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		if frame.Buffer != nil {
			frame.Buffer.Release()
		}
		h.framesDropped.Add(1)
		return
	}
	if h.slot != nil {
		if h.slot.frame.Buffer != nil {
			h.slot.frame.Buffer.Release()
		}
		h.framesDropped.Add(1)
	}
	h.slot = &pending{frame: frame, transform: t}
	h.mu.Unlock()
	h.cond.Signal()
}

// Stats returns a snapshot of hub counters.
func (h *Hub) Stats() Stats {
	h.connsMu.Lock()
	clients := len(h.conns)
	h.connsMu.Unlock()
	return Stats{
		Clients:       clients,
		FramesIn:      h.framesIn.Load(),
		FramesDropped: h.framesDropped.Load(),
		FramesSent:    h.framesSent.Load(),
		EncodeErrors:  h.encodeErrors.Load(),
	}
}

// take blocks until a frame is pending or the hub stops. The bool is
// false exactly when stopping.
func (h *Hub) take() (pending, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.slot == nil && !h.closed {
		h.cond.Wait()
	}
	if h.slot == nil {
		return pending{}, false
	}
	p := *h.slot
	h.slot = nil
	return p, true
}

func (h *Hub) encodeLoop() {
	defer h.wg.Done()

	var lastEncode time.Time
	for {
		p, ok := h.take()
		if !ok {
			return
		}

		// pace to the configured ceiling; frames arriving while we
		// wait overwrite the slot, so we always encode the freshest
		if wait := h.minInterval - time.Since(lastEncode); wait > 0 {
			time.Sleep(wait)
		}
		lastEncode = time.Now()

		h.announceTransform(p.transform)

		data, err := h.encode(p.frame)
		if p.frame.Buffer != nil {
			p.frame.Buffer.Release()
		}
		if err != nil {
			if h.encodeErrors.Add(1) == 1 {
				slog.Warn("preview encode failed", "error", err, "trace_id", p.frame.TraceID)
			}
			continue
		}

		h.broadcast(websocket.BinaryMessage, data)
		h.framesSent.Add(1)
	}
}

// encode wraps the RGBA buffer without copying and JPEG-compresses it.
func (h *Hub) encode(f viewfinder.Frame) ([]byte, error) {
	if f.Buffer == nil {
		return nil, fmt.Errorf("preview: frame has no buffer")
	}
	desc := f.Buffer.Descriptor()
	img := &image.RGBA{
		Pix:    f.Buffer.Data(),
		Stride: desc.Width * 4,
		Rect:   image.Rect(0, 0, desc.Width, desc.Height),
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: h.quality}); err != nil {
		return nil, fmt.Errorf("preview: jpeg encode: %w", err)
	}
	return out.Bytes(), nil
}

// announceTransform tells clients how to orient upcoming frames.
// Sent only when the transform actually changes.
func (h *Hub) announceTransform(t viewfinder.Transform) {
	h.tmu.Lock()
	if t == h.last {
		h.tmu.Unlock()
		return
	}
	h.last = t
	h.tmu.Unlock()

	msg, err := json.Marshal(transformMessage(t))
	if err != nil {
		return
	}
	h.broadcast(websocket.TextMessage, msg)
}

func transformMessage(t viewfinder.Transform) map[string]interface{} {
	return map[string]interface{}{
		"type":     "transform",
		"rotation": t.Rotation.Degrees(),
		"mirrored": t.Mirrored,
	}
}

// broadcast writes to every client, dropping clients that error.
func (h *Hub) broadcast(messageType int, data []byte) {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(messageType, data); err != nil {
			slog.Debug("preview client write failed, dropping", "remote", conn.RemoteAddr(), "error", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("preview upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	slog.Info("preview client connected", "remote", r.RemoteAddr)

	// orient the client before its first frame; holding connsMu
	// keeps the hello ordered against concurrent broadcasts
	h.tmu.Lock()
	hello, _ := json.Marshal(transformMessage(h.last))
	h.tmu.Unlock()

	h.connsMu.Lock()
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		h.connsMu.Unlock()
		conn.Close()
		return
	}
	h.conns[conn] = true
	h.connsMu.Unlock()

	defer func() {
		conn.Close()
		h.connsMu.Lock()
		delete(h.conns, conn)
		h.connsMu.Unlock()
		slog.Info("preview client disconnected", "remote", r.RemoteAddr)
	}()

	// inbound messages are ignored; the loop exists to detect close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
