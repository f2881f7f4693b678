package lutfilter

import (
	"sync"

	"github.com/visiona/lumen/pixel"
)

// resolve maps every pixel of in through the table into out, banding
// rows across at most workers goroutines and waiting for the last
// band. The work is bounded by the image size; there is no queue to
// back up behind.
func resolve(t *Table, in, out *pixel.Buffer, workers int) {
	d := in.Descriptor()
	if workers > d.Height {
		workers = d.Height
	}
	if workers <= 1 {
		resolveRows(t, in.Data(), out.Data(), d, 0, d.Height)
		return
	}

	band := (d.Height + workers - 1) / workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < d.Height; y0 += band {
		y1 := y0 + band
		if y1 > d.Height {
			y1 = d.Height
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			resolveRows(t, in.Data(), out.Data(), d, y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}

// resolveRows applies the trilinear table lookup to rows [y0, y1).
// Each 8-bit RGB triple addresses a fractional cell of the cube; the
// eight surrounding lattice points blend into the output color. Alpha
// passes through untouched.
func resolveRows(t *Table, src, dst []byte, d pixel.Descriptor, y0, y1 int) {
	ri, gi, bi, ai := d.Format.Offsets()
	n := t.Size
	scale := float32(n-1) / 255.0

	for y := y0; y < y1; y++ {
		row := y * d.Width * 4
		for x := 0; x < d.Width; x++ {
			p := row + x*4

			fr := float32(src[p+ri]) * scale
			fg := float32(src[p+gi]) * scale
			fb := float32(src[p+bi]) * scale

			r0, g0, b0 := int(fr), int(fg), int(fb)
			r1, g1, b1 := r0+1, g0+1, b0+1
			if r1 >= n {
				r1 = n - 1
			}
			if g1 >= n {
				g1 = n - 1
			}
			if b1 >= n {
				b1 = n - 1
			}
			dr := fr - float32(r0)
			dg := fg - float32(g0)
			db := fb - float32(b0)

			c00 := lerp3(t.sample(r0, g0, b0), t.sample(r1, g0, b0), dr)
			c10 := lerp3(t.sample(r0, g1, b0), t.sample(r1, g1, b0), dr)
			c01 := lerp3(t.sample(r0, g0, b1), t.sample(r1, g0, b1), dr)
			c11 := lerp3(t.sample(r0, g1, b1), t.sample(r1, g1, b1), dr)
			c0 := lerp3(c00, c10, dg)
			c1 := lerp3(c01, c11, dg)
			c := lerp3(c0, c1, db)

			dst[p+ri] = toByte(c[0])
			dst[p+gi] = toByte(c[1])
			dst[p+bi] = toByte(c[2])
			dst[p+ai] = src[p+ai]
		}
	}
}

func lerp3(a, b [3]float32, f float32) [3]float32 {
	return [3]float32{
		a[0] + (b[0]-a[0])*f,
		a[1] + (b[1]-a[1])*f,
		a[2] + (b[2]-a[2])*f,
	}
}

func toByte(v float32) byte {
	s := v*255 + 0.5
	if s <= 0 {
		return 0
	}
	if s >= 255 {
		return 255
	}
	return byte(s)
}
