package pixel

import "fmt"

// Format identifies a packed 4-byte-per-pixel color layout.
type Format int

const (
	// RGBA stores channels in R, G, B, A byte order.
	RGBA Format = iota
	// BGRA stores channels in B, G, R, A byte order.
	BGRA
)

// MaxDimension bounds a single image axis. Descriptors beyond it are
// rejected so a corrupted width/height cannot trigger a huge allocation.
const MaxDimension = 16384

// BytesPerPixel returns the packed size of one pixel. All supported
// formats are 4-byte packed.
func (f Format) BytesPerPixel() int {
	return 4
}

// Offsets returns the byte offset of each channel within a pixel.
// Pixel-walking code uses these instead of hardcoding a layout.
func (f Format) Offsets() (r, g, b, a int) {
	if f == BGRA {
		return 2, 1, 0, 3
	}
	return 0, 1, 2, 3
}

func (f Format) String() string {
	switch f {
	case RGBA:
		return "RGBA"
	case BGRA:
		return "BGRA"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Descriptor describes the geometry and channel layout of a buffer.
// It travels with every frame; two buffers are format-compatible when
// their descriptors are equal.
type Descriptor struct {
	Width  int
	Height int
	Format Format
}

// Valid reports whether the descriptor describes an allocatable image.
func (d Descriptor) Valid() bool {
	return d.Width > 0 && d.Width <= MaxDimension &&
		d.Height > 0 && d.Height <= MaxDimension &&
		(d.Format == RGBA || d.Format == BGRA)
}

// Size returns the byte length of a buffer with this descriptor.
func (d Descriptor) Size() int {
	return d.Width * d.Height * d.Format.BytesPerPixel()
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%dx%d %s", d.Width, d.Height, d.Format)
}
