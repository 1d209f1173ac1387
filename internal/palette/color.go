package palette

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Color is an opaque 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string { return c.Hex() }

// RGBA converts to the image/color representation.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// Brightness returns the HSP perceived brightness in [0, 255].
func (c Color) Brightness() float64 {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return math.Sqrt(0.299*r*r + 0.587*g*g + 0.114*b*b)
}

func (c Color) packed() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// ParseHex accepts #rrggbb, rrggbb, #rgb, or rgb.
func ParseHex(value string) (Color, error) {
	s := strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return Color{}, fmt.Errorf("invalid hex color %q", value)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q", value)
	}
	return Color{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}
