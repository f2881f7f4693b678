package core

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/visiona/lumen/pixel"
)

// stillJPEGQuality is deliberately higher than the preview stream:
// a still is the keeper.
const stillJPEGQuality = 95

// writeStill encodes a corrected capture to path, picking the codec
// from the extension (.png default, .jpg/.jpeg for JPEG). Returns
// the encoded size in bytes.
func writeStill(path string, buf *pixel.Buffer) (int64, error) {
	desc := buf.Descriptor()
	img := &image.RGBA{
		Pix:    buf.Data(),
		Stride: desc.Width * 4,
		Rect:   image.Rect(0, 0, desc.Width, desc.Height),
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: stillJPEGQuality})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}

	fi, statErr := f.Stat()
	if cerr := f.Close(); cerr != nil {
		return 0, fmt.Errorf("close %s: %w", path, cerr)
	}
	if statErr != nil {
		return 0, nil
	}
	return fi.Size(), nil
}
