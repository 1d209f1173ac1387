package palette

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/boxes-ltd/imaging"
	_ "golang.org/x/image/webp"

	"cavacolor/internal/artwork"
)

const (
	// DefaultMaxSamples bounds the pixels fed to quantization.
	DefaultMaxSamples = 10000
	opaqueThreshold   = 128
)

// Extractor computes fixed-size palettes. It holds no mutable state and is
// safe for concurrent use.
type Extractor struct {
	maxSamples int
	fallback   Color
}

// NewExtractor returns an extractor sampling at most maxSamples pixels and
// using fallback for images without opaque pixels.
func NewExtractor(maxSamples int, fallback Color) *Extractor {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Extractor{maxSamples: maxSamples, fallback: fallback}
}

// Extract decodes the artwork bytes and returns exactly n colors.
func (e *Extractor) Extract(img *artwork.Image, n int) (Palette, error) {
	if img == nil {
		return Palette{}, fmt.Errorf("extract palette: %w: no image", artwork.ErrUndecodable)
	}
	decoded, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return Palette{}, fmt.Errorf("extract palette: %w: %v", artwork.ErrUndecodable, err)
	}
	return e.ExtractImage(decoded, n)
}

// ExtractImage quantizes an already decoded image into exactly n colors.
func (e *Extractor) ExtractImage(img image.Image, n int) (Palette, error) {
	if n < 1 {
		return Palette{}, fmt.Errorf("extract palette: size must be at least 1, got %d", n)
	}
	samples := e.sample(img)
	if len(samples) == 0 {
		return Uniform(e.fallback, n), nil
	}
	return fromBoxes(medianCut(samples, n), len(samples), n), nil
}

// sample downsamples into a square box whose area does not exceed maxSamples
// and returns the opaque pixels in row-major order.
func (e *Extractor) sample(img image.Image) []Color {
	side := int(math.Sqrt(float64(e.maxSamples)))
	if side < 1 {
		side = 1
	}
	small := imaging.Fit(img, side, side, imaging.NearestNeighbor)

	bounds := small.Bounds()
	out := make([]Color, 0, bounds.Dx()*bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		row := small.Pix[y*small.Stride : y*small.Stride+bounds.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			if row[x+3] < opaqueThreshold {
				continue
			}
			out = append(out, Color{R: row[x], G: row[x+1], B: row[x+2]})
		}
	}
	return out
}

type box struct {
	pixels []Color
}

// span returns the widest channel (0=R, 1=G, 2=B) and its value range.
func (b box) span() (int, int) {
	lo := [3]uint8{255, 255, 255}
	hi := [3]uint8{}
	for _, p := range b.pixels {
		for ch, v := range [3]uint8{p.R, p.G, p.B} {
			if v < lo[ch] {
				lo[ch] = v
			}
			if v > hi[ch] {
				hi[ch] = v
			}
		}
	}
	channel, width := 0, -1
	for ch := 0; ch < 3; ch++ {
		if w := int(hi[ch]) - int(lo[ch]); w > width {
			channel, width = ch, w
		}
	}
	return channel, width
}

func (b box) mean() Color {
	var r, g, bl uint64
	for _, p := range b.pixels {
		r += uint64(p.R)
		g += uint64(p.G)
		bl += uint64(p.B)
	}
	n := uint64(len(b.pixels))
	return Color{
		R: uint8((r + n/2) / n),
		G: uint8((g + n/2) / n),
		B: uint8((bl + n/2) / n),
	}
}

func channelValue(c Color, ch int) uint8 {
	switch ch {
	case 0:
		return c.R
	case 1:
		return c.G
	default:
		return c.B
	}
}

// medianCut splits the sample set into at most n boxes. Each round splits the
// box with the widest channel range near its median; ties go to the earlier box.
func medianCut(samples []Color, n int) []box {
	boxes := []box{{pixels: samples}}
	for len(boxes) < n {
		target, channel, best := -1, 0, 0
		for i, b := range boxes {
			if len(b.pixels) < 2 {
				continue
			}
			ch, width := b.span()
			if width > best {
				target, channel, best = i, ch, width
			}
		}
		if target < 0 {
			break
		}

		pixels := boxes[target].pixels
		sort.SliceStable(pixels, func(i, j int) bool {
			vi, vj := channelValue(pixels[i], channel), channelValue(pixels[j], channel)
			if vi != vj {
				return vi < vj
			}
			return pixels[i].packed() < pixels[j].packed()
		})
		cut := splitIndex(pixels, channel)
		boxes[target] = box{pixels: pixels[:cut]}
		boxes = append(boxes, box{pixels: pixels[cut:]})
	}
	return boxes
}

// splitIndex returns the cut nearest the median that keeps pixels sharing a
// channel value in the same box. pixels must be sorted on channel and span
// more than one value.
func splitIndex(pixels []Color, channel int) int {
	mid := len(pixels) / 2
	v := channelValue(pixels[mid], channel)
	lo := sort.Search(len(pixels), func(i int) bool { return channelValue(pixels[i], channel) >= v })
	hi := sort.Search(len(pixels), func(i int) bool { return channelValue(pixels[i], channel) > v })
	switch {
	case lo == 0:
		return hi
	case hi == len(pixels):
		return lo
	case mid-lo <= hi-mid:
		return lo
	default:
		return hi
	}
}

// fromBoxes orders clusters by pixel count, then packed RGB, and pads to n
// with the most dominant color.
func fromBoxes(boxes []box, total, n int) Palette {
	type cluster struct {
		color Color
		count int
	}
	clusters := make([]cluster, 0, len(boxes))
	for _, b := range boxes {
		clusters = append(clusters, cluster{color: b.mean(), count: len(b.pixels)})
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].count != clusters[j].count {
			return clusters[i].count > clusters[j].count
		}
		return clusters[i].color.packed() < clusters[j].color.packed()
	})

	p := Palette{Colors: make([]Color, n), Weights: make([]float64, n)}
	for i := 0; i < n; i++ {
		if i < len(clusters) {
			p.Colors[i] = clusters[i].color
			p.Weights[i] = float64(clusters[i].count) / float64(total)
			continue
		}
		p.Colors[i] = clusters[0].color
	}
	return p
}
