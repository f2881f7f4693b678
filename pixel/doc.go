// Package pixel provides the frame-memory primitives shared by every
// stage of the lumen engine: packed 4-byte color formats, reference
// counted buffers, fixed-capacity buffer pools, and the rotation and
// mirroring transforms applied to finished stills.
//
// # Philosophy
//
// "Frames are perishable. Memory is not."
//
// A real-time camera path produces a buffer every ~33ms and must never
// stall on allocation or garbage collection. Buffers therefore come
// from fixed pools and travel by reference count: whoever holds a
// reference may read, the last Release returns the memory to its pool,
// and an exhausted pool answers nil instead of blocking, so the
// caller drops the frame, which is always the correct real-time
// answer.
//
// # Ownership Contract
//
//   - A buffer is created with one reference, owned by its producer.
//   - Handing a buffer across a stage boundary transfers that
//     reference unless the producer Retain()s first.
//   - Buffer data is read-only for everyone except the stage that
//     allocated it, before it is first handed off.
//   - Release() past zero panics: that is a bookkeeping bug, not a
//     runtime condition.
//
// # Basic Usage
//
//	pool, err := pixel.NewPool(pixel.Descriptor{Width: 1280, Height: 720, Format: pixel.RGBA}, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	buf := pool.Get() // nil when all buffers are in flight
//	if buf == nil {
//	    return // drop the frame
//	}
//	fill(buf.Data())
//	deliver(buf) // consumer calls buf.Release()
package pixel
