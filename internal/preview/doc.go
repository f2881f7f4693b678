// Package preview serves the viewfinder over WebSocket.
//
// The hub implements viewfinder.Sink: the pipeline hands it styled
// frames, the hub JPEG-encodes the most recent one at a bounded rate
// and broadcasts the bytes to every connected client as a binary
// message. Orientation is not baked into the pixels: when the
// display transform changes, clients receive a JSON text message
// ({"type":"transform","rotation":90,"mirrored":true}) and rotate on
// their side.
//
// # Philosophy
//
// The hub follows the same rule as the rest of the pipeline: drop
// frames, never queue. Display stores the frame in a single slot,
// overwriting (and releasing) whatever was there, and returns
// immediately. One encoder goroutine drains the slot no faster than
// the configured ceiling, so a burst of 30 fps capture costs at most
// max_fps JPEG encodes and slow clients see a fresh frame, never a
// backlog.
//
// A client that cannot keep up with the broadcast is closed and
// forgotten; the capture side never notices.
package preview
