package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// Stripe is one vertical band of a StripedImage.
type Stripe struct {
	Color color.Color
	Width int
}

// SolidImage returns a w×h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	return StripedImage(h, Stripe{Color: c, Width: w})
}

// StripedImage lays out vertical stripes left to right. Pixel counts per color
// are Width×h, which makes dominance order predictable.
func StripedImage(h int, stripes ...Stripe) *image.NRGBA {
	w := 0
	for _, s := range stripes {
		w += s.Width
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	x := 0
	for _, s := range stripes {
		for dx := 0; dx < s.Width; dx++ {
			for y := 0; y < h; y++ {
				img.Set(x+dx, y, s.Color)
			}
		}
		x += s.Width
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WritePNG encodes img to path and returns the path.
func WritePNG(t testing.TB, path string, img image.Image) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, EncodePNG(t, img), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
