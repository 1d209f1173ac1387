package palette

import (
	"sort"
	"strings"
)

// Palette is an ordered set of colors, most dominant first. Weights holds each
// entry's share of the sampled pixels; padded entries weigh zero.
type Palette struct {
	Colors  []Color
	Weights []float64
}

// Len returns the number of colors.
func (p Palette) Len() int { return len(p.Colors) }

// Hexes renders every color as #rrggbb.
func (p Palette) Hexes() []string {
	out := make([]string, len(p.Colors))
	for i, c := range p.Colors {
		out[i] = c.Hex()
	}
	return out
}

func (p Palette) String() string {
	return strings.Join(p.Hexes(), " ")
}

// SortedByBrightness returns a copy ordered darkest first. Equal brightness
// keeps the dominance order.
func (p Palette) SortedByBrightness() Palette {
	idx := make([]int, len(p.Colors))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return p.Colors[idx[a]].Brightness() < p.Colors[idx[b]].Brightness()
	})
	out := Palette{Colors: make([]Color, len(idx)), Weights: make([]float64, len(idx))}
	for i, j := range idx {
		out.Colors[i] = p.Colors[j]
		if j < len(p.Weights) {
			out.Weights[i] = p.Weights[j]
		}
	}
	return out
}

// Uniform returns n copies of c.
func Uniform(c Color, n int) Palette {
	p := Palette{Colors: make([]Color, n), Weights: make([]float64, n)}
	for i := range p.Colors {
		p.Colors[i] = c
	}
	if n > 0 {
		p.Weights[0] = 1
	}
	return p
}
