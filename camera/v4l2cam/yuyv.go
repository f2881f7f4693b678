package v4l2cam

import "fmt"

// yuyvToRGBA expands packed YUYV (YUY2) into RGBA. Each 4-byte group
// Y0 U Y1 V carries two pixels sharing one chroma sample; conversion
// is integer BT.601 limited-range, the form webcams actually emit.
func yuyvToRGBA(src, dst []byte, width, height int) error {
	need := width * height * 2
	if len(src) < need {
		return fmt.Errorf("v4l2cam: yuyv frame is %d bytes, need %d for %dx%d", len(src), need, width, height)
	}
	if len(dst) < width*height*4 {
		return fmt.Errorf("v4l2cam: rgba target is %d bytes, need %d", len(dst), width*height*4)
	}

	si, di := 0, 0
	for p := 0; p < width*height; p += 2 {
		y0 := int(src[si])
		u := int(src[si+1])
		y1 := int(src[si+2])
		v := int(src[si+3])
		si += 4

		d := u - 128
		e := v - 128
		writeYUV(dst[di:di+4], y0, d, e)
		writeYUV(dst[di+4:di+8], y1, d, e)
		di += 8
	}
	return nil
}

func writeYUV(px []byte, y, d, e int) {
	c := 298 * (y - 16)
	px[0] = clampByte((c + 409*e + 128) >> 8)
	px[1] = clampByte((c - 100*d - 208*e + 128) >> 8)
	px[2] = clampByte((c + 516*d + 128) >> 8)
	px[3] = 0xFF
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
