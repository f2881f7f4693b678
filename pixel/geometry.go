package pixel

import "fmt"

// Rotation is a quarter-turn image rotation, measured clockwise.
type Rotation int

const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

// Degrees returns the clockwise rotation angle.
func (r Rotation) Degrees() int {
	switch r {
	case Rotate90:
		return 90
	case Rotate180:
		return 180
	case Rotate270:
		return 270
	default:
		return 0
	}
}

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", r.Degrees())
}

// Rotate returns a newly allocated copy of src turned clockwise by r.
// Quarter turns swap the output width and height. Rotate0 still
// copies, so the result is always independent of src. Returns nil on
// allocation failure.
func Rotate(src *Buffer, r Rotation) *Buffer {
	d := src.Descriptor()
	outDesc := d
	if r == Rotate90 || r == Rotate270 {
		outDesc.Width, outDesc.Height = d.Height, d.Width
	}
	out := NewBuffer(outDesc)
	if out == nil {
		return nil
	}
	sd, od := src.Data(), out.Data()

	switch r {
	case Rotate0:
		copy(od, sd)
	case Rotate90:
		// (x, y) lands at column H-1-y of row x.
		for y := 0; y < d.Height; y++ {
			for x := 0; x < d.Width; x++ {
				si := (y*d.Width + x) * 4
				di := (x*outDesc.Width + (d.Height - 1 - y)) * 4
				copy(od[di:di+4], sd[si:si+4])
			}
		}
	case Rotate180:
		// (x, y) lands at (W-1-x, H-1-y).
		for y := 0; y < d.Height; y++ {
			for x := 0; x < d.Width; x++ {
				si := (y*d.Width + x) * 4
				di := ((d.Height-1-y)*d.Width + (d.Width - 1 - x)) * 4
				copy(od[di:di+4], sd[si:si+4])
			}
		}
	case Rotate270:
		// (x, y) lands at column y of row W-1-x.
		for y := 0; y < d.Height; y++ {
			for x := 0; x < d.Width; x++ {
				si := (y*d.Width + x) * 4
				di := ((d.Width-1-x)*outDesc.Width + y) * 4
				copy(od[di:di+4], sd[si:si+4])
			}
		}
	}
	return out
}

// Mirror returns a horizontally flipped copy of src (left edge becomes
// right edge), the correction applied to front-camera stills. Returns
// nil on allocation failure.
func Mirror(src *Buffer) *Buffer {
	d := src.Descriptor()
	out := NewBuffer(d)
	if out == nil {
		return nil
	}
	sd, od := src.Data(), out.Data()
	for y := 0; y < d.Height; y++ {
		row := y * d.Width * 4
		for x := 0; x < d.Width; x++ {
			si := row + x*4
			di := row + (d.Width-1-x)*4
			copy(od[di:di+4], sd[si:si+4])
		}
	}
	return out
}
