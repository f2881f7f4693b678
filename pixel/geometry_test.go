package pixel

import (
	"bytes"
	"testing"
)

// patternBuffer fills a W×H buffer where pixel (x, y) carries
// (R=x, G=y, B=index, A=255) so tests can assert exact placements.
func patternBuffer(t *testing.T, w, h int) *Buffer {
	t.Helper()
	buf := NewBuffer(Descriptor{Width: w, Height: h, Format: RGBA})
	if buf == nil {
		t.Fatalf("allocation failed for %dx%d", w, h)
	}
	d := buf.Data()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			d[i+0] = byte(x)
			d[i+1] = byte(y)
			d[i+2] = byte(y*w + x)
			d[i+3] = 255
		}
	}
	return buf
}

func pixelAt(b *Buffer, x, y int) [4]byte {
	i := (y*b.Descriptor().Width + x) * 4
	var px [4]byte
	copy(px[:], b.Data()[i:i+4])
	return px
}

// TestRotate90_Placement verifies the clockwise quarter turn: the top
// row of the source becomes the right column of the result.
func TestRotate90_Placement(t *testing.T) {
	src := patternBuffer(t, 3, 2) // 3 wide, 2 tall
	out := Rotate(src, Rotate90)

	od := out.Descriptor()
	if od.Width != 2 || od.Height != 3 {
		t.Fatalf("expected 2x3 output, got %s", od)
	}

	// Source (0,0) must land at (H-1, 0) = (1, 0).
	if got, want := pixelAt(out, 1, 0), pixelAt(src, 0, 0); got != want {
		t.Errorf("(0,0) misplaced: got %v want %v", got, want)
	}
	// Source (2,1) (bottom-right) must land at (0, 2).
	if got, want := pixelAt(out, 0, 2), pixelAt(src, 2, 1); got != want {
		t.Errorf("(2,1) misplaced: got %v want %v", got, want)
	}

	t.Log("✅ Rotate90 places pixels clockwise")
}

// TestRotate180_Placement verifies the half turn maps corners to
// opposite corners without swapping dimensions.
func TestRotate180_Placement(t *testing.T) {
	src := patternBuffer(t, 3, 2)
	out := Rotate(src, Rotate180)

	if out.Descriptor() != src.Descriptor() {
		t.Fatalf("Rotate180 must keep dimensions, got %s", out.Descriptor())
	}
	if got, want := pixelAt(out, 2, 1), pixelAt(src, 0, 0); got != want {
		t.Errorf("(0,0) misplaced: got %v want %v", got, want)
	}
	if got, want := pixelAt(out, 0, 0), pixelAt(src, 2, 1); got != want {
		t.Errorf("(2,1) misplaced: got %v want %v", got, want)
	}
}

// TestRotate_FourQuarterTurnsRestore verifies four clockwise quarter
// turns reproduce the original image byte for byte.
func TestRotate_FourQuarterTurnsRestore(t *testing.T) {
	src := patternBuffer(t, 5, 3)
	cur := src
	for i := 0; i < 4; i++ {
		cur = Rotate(cur, Rotate90)
		if cur == nil {
			t.Fatalf("rotation %d failed", i+1)
		}
	}
	if !bytes.Equal(cur.Data(), src.Data()) {
		t.Error("four quarter turns did not restore the original")
	} else {
		t.Log("✅ Rotation round-trip is lossless")
	}
}

// TestRotate270_MatchesThreeQuarterTurns verifies the counter-clockwise
// quarter turn equals three clockwise turns.
func TestRotate270_MatchesThreeQuarterTurns(t *testing.T) {
	src := patternBuffer(t, 4, 3)
	direct := Rotate(src, Rotate270)
	stepped := Rotate(Rotate(Rotate(src, Rotate90), Rotate90), Rotate90)
	if !bytes.Equal(direct.Data(), stepped.Data()) {
		t.Error("Rotate270 disagrees with three Rotate90 turns")
	}
}

// TestMirror_FlipsRows verifies horizontal mirroring per row and that
// mirroring twice restores the original.
func TestMirror_FlipsRows(t *testing.T) {
	src := patternBuffer(t, 3, 2)
	out := Mirror(src)

	if got, want := pixelAt(out, 0, 0), pixelAt(src, 2, 0); got != want {
		t.Errorf("left/right not swapped: got %v want %v", got, want)
	}
	if got, want := pixelAt(out, 1, 1), pixelAt(src, 1, 1); got != want {
		t.Errorf("center column moved: got %v want %v", got, want)
	}
	if !bytes.Equal(Mirror(out).Data(), src.Data()) {
		t.Error("double mirror did not restore the original")
	}

	t.Log("✅ Mirror flips rows and is self-inverse")
}

// TestRotate_CopiesOnRotate0 verifies Rotate0 still detaches the
// result from the source buffer.
func TestRotate_CopiesOnRotate0(t *testing.T) {
	src := patternBuffer(t, 2, 2)
	out := Rotate(src, Rotate0)
	src.Data()[0] ^= 0xFF
	if out.Data()[0] == src.Data()[0] {
		t.Error("Rotate0 returned a view of the source, expected a copy")
	}
}
