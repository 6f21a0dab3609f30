// Package colormap maps scalar values to RGBA colors.
//
// All functions are pure: the extent and any rescaling parameters are passed
// explicitly on every call. Values outside the extent, NaN values and
// degenerate extents are clamped, never reported as errors.
package colormap

import (
	"image/color"
	"math"

	"github.com/mazznoer/colorgrad"
	"golang.org/x/exp/constraints"
)

// RGBA is a color with 8 bit channels, laid out as stored in color buffers.
type RGBA [4]uint8

const (
	// LogAlphaMin and LogAlphaMax bound the alpha of log scaled colors.
	LogAlphaMin = 20
	LogAlphaMax = 255
	// LogAlphaRamp is the part of the normalized log domain over which the
	// alpha grows from LogAlphaMin to LogAlphaMax.
	LogAlphaRamp = 0.3
	// DefaultAlphaMax is the alpha ceiling of Alpha when none is configured.
	DefaultAlphaMax = 255
)

// DefaultLogExtent is the probability density domain of log scaled colors.
var DefaultLogExtent = Span(1e-6, 1e-2)

var (
	viridis = colorgrad.Viridis()
	inferno = colorgrad.Inferno()
)

// Extent is a running (min, max) of observed values. MinPositive is the
// smallest value above zero, used as the floor of log scales.
type Extent struct {
	Min         float64
	Max         float64
	MinPositive float64
}

// NewExtent returns an empty extent ready for Observe.
func NewExtent() Extent {
	return Extent{Min: math.Inf(1), Max: math.Inf(-1), MinPositive: math.Inf(1)}
}

// Span returns the extent covering [min, max].
func Span(min, max float64) Extent {
	e := NewExtent()
	e.Observe(min)
	e.Observe(max)
	return e
}

// Of scans values for their extent.
func Of[T constraints.Float](values []T) Extent {
	e := NewExtent()
	for _, v := range values {
		e.Observe(float64(v))
	}
	return e
}

// Observe widens the extent to include v. NaN values are ignored.
func (e *Extent) Observe(v float64) {
	if math.IsNaN(v) {
		return
	}
	if v < e.Min {
		e.Min = v
	}
	if v > e.Max {
		e.Max = v
	}
	if v > 0 && v < e.MinPositive {
		e.MinPositive = v
	}
}

// Empty reports whether no value was observed.
func (e Extent) Empty() bool {
	return e.Min > e.Max
}

// Degenerate reports whether the extent cannot normalize values: it is empty
// or holds a single value.
func (e Extent) Degenerate() bool {
	return !(e.Max > e.Min)
}

// Normalize maps v linearly onto [0, 1] relative to the extent. The result is
// not clamped. Degenerate extents map everything to 0.
func (e Extent) Normalize(v float64) float64 {
	if e.Degenerate() || math.IsNaN(v) {
		return 0
	}
	return (v - e.Min) / (e.Max - e.Min)
}

// LogNormalize maps v onto [0, 1] on a natural log scale. Non positive
// values map to 0, as do all values of a degenerate extent. An extent
// reaching down to zero or below is floored at its smallest positive value,
// or at the floor of DefaultLogExtent when that leaves nothing to span.
func (e Extent) LogNormalize(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	lo, hi := e.Min, e.Max
	if lo <= 0 {
		lo = e.MinPositive
		if !(hi > lo) {
			lo = DefaultLogExtent.Min
		}
	}
	if !(lo > 0) || math.IsInf(lo, 0) || !(hi > lo) {
		return 0
	}
	return math.Log(v/lo) / math.Log(hi/lo)
}

func clamp01(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

func channel(v float64, min, max float64) uint8 {
	if math.IsNaN(v) || v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return uint8(math.Round(v))
}

func sample(g colorgrad.Gradient, t float64) RGBA {
	var c color.Color = g.At(clamp01(t))
	r, gr, b, _ := c.RGBA()
	return RGBA{uint8(r >> 8), uint8(gr >> 8), uint8(b >> 8), 255}
}

// Viridis returns the opaque viridis color of a normalized value.
func Viridis(t float64) RGBA {
	return sample(viridis, t)
}

// InfernoAt returns the opaque inferno color of a normalized value.
func InfernoAt(t float64) RGBA {
	return sample(inferno, t)
}

// Linear colors v with viridis over the extent at full opacity.
func Linear(v float64, ext Extent) RGBA {
	return Viridis(ext.Normalize(v))
}

// Alpha colors v with viridis over the whole extent while the alpha grows
// linearly across the sub range [low, high] of the extent, from 0 to
// alphaMax. Values below the sub range are transparent. An empty sub range
// (low == high) gives every value half of alphaMax; a degenerate extent
// gives the neutral transparent floor.
func Alpha(v float64, ext Extent, rescale [2]float64, alphaMax float64) RGBA {
	c := Viridis(ext.Normalize(v))
	if ext.Degenerate() {
		c[3] = 0
		return c
	}
	low, high := rescale[0], rescale[1]
	diff := ext.Max - ext.Min
	from := ext.Min + diff*low
	to := ext.Max - diff*(1-high)
	if to == from {
		c[3] = channel(alphaMax/2, 0, alphaMax)
		return c
	}
	c[3] = channel((v-from)/(to-from)*alphaMax, 0, alphaMax)
	return c
}

// Log colors heavy tailed densities: v is normalized on a natural log scale
// over the extent, colored with viridis, and its alpha ramps from
// LogAlphaMin to LogAlphaMax over the first LogAlphaRamp of the log domain.
func Log(v float64, ext Extent) RGBA {
	t := ext.LogNormalize(v)
	c := Viridis(t)
	a := LogAlphaMin + t/LogAlphaRamp*(LogAlphaMax-LogAlphaMin)
	c[3] = channel(a, LogAlphaMin, LogAlphaMax)
	return c
}

// Inferno colors environmental fields linearly over their own extent.
func Inferno(v float64, ext Extent) RGBA {
	return InfernoAt(ext.Normalize(v))
}

// Tick is one stop of a legend.
type Tick struct {
	Color RGBA
	Value float64
}

// Legend samples n evenly spaced stops over [0, 1].
func Legend(interp func(float64) RGBA, n int) []Tick {
	if n < 2 {
		n = 2
	}
	res := make([]Tick, n)
	for i := range res {
		v := float64(i) / float64(n-1)
		res[i] = Tick{Color: interp(v), Value: v}
	}
	return res
}

// Hex formats the color as #rrggbb.
func (c RGBA) Hex() string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i := 0; i < 3; i++ {
		b[1+2*i] = digits[c[i]>>4]
		b[2+2*i] = digits[c[i]&0xf]
	}
	return string(b)
}
