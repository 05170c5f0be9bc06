package render

import (
	"fmt"
	"math"
)

type rgb struct{ r, g, b float64 }

func (c rgb) hex() string {
	clamp := func(v float64) int { return int(math.Round(math.Max(0, math.Min(255, v)))) }
	return fmt.Sprintf("#%02x%02x%02x", clamp(c.r), clamp(c.g), clamp(c.b))
}

// viridisStops samples the viridis colormap at 0, 0.1, ..., 1.
var viridisStops = []rgb{
	{0x44, 0x01, 0x54},
	{0x48, 0x24, 0x75},
	{0x41, 0x44, 0x87},
	{0x35, 0x5f, 0x8d},
	{0x2a, 0x78, 0x8e},
	{0x21, 0x91, 0x8c},
	{0x22, 0xa8, 0x84},
	{0x44, 0xbf, 0x70},
	{0x7a, 0xd1, 0x51},
	{0xbd, 0xdf, 0x26},
	{0xfd, 0xe7, 0x25},
}

// Viridis returns the viridis colour at t, clamped to [0,1].
func Viridis(t float64) string {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	pos := t * float64(len(viridisStops)-1)
	i := int(math.Floor(pos))
	if i >= len(viridisStops)-1 {
		return viridisStops[len(viridisStops)-1].hex()
	}
	f := pos - float64(i)
	a, b := viridisStops[i], viridisStops[i+1]
	return rgb{
		r: a.r + (b.r-a.r)*f,
		g: a.g + (b.g-a.g)*f,
		b: a.b + (b.b-a.b)*f,
	}.hex()
}

// Normalize maps v linearly from [lo,hi] to [0,1]; a degenerate range maps to 0.
func Normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// set1 is the ColorBrewer Set1 qualitative palette.
var set1 = []string{
	"#e41a1c", "#377eb8", "#4daf4a", "#984ea3", "#ff7f00",
	"#ffff33", "#a65628", "#f781bf", "#999999",
}

// Set1 spreads n categories evenly across the Set1 palette and returns the
// colour of category i.
func Set1(i, n int) string {
	if n <= 1 {
		return set1[0]
	}
	t := float64(i) / float64(n-1)
	idx := int(t * float64(len(set1)))
	if idx >= len(set1) {
		idx = len(set1) - 1
	}
	return set1[idx]
}
