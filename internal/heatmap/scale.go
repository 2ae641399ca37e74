package heatmap

import (
	"image/color"
	"math"
)

// Palette is a linear RGB ramp; From is drawn at the domain start (max value).
type Palette struct {
	From, To color.RGBA
}

var (
	// RatingPalette: highest rating is cool, lowest is hot.
	RatingPalette = Palette{
		From: color.RGBA{R: 177, G: 214, B: 255, A: 255},
		To:   color.RGBA{R: 126, G: 0, B: 0, A: 255},
	}
	// ViolationPalette: most violations is hot, none is cool.
	ViolationPalette = Palette{
		From: color.RGBA{R: 126, G: 0, B: 0, A: 255},
		To:   color.RGBA{R: 177, G: 214, B: 255, A: 255},
	}

	NoDataFill      = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 255}
	DefaultStroke   = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 255}
	HighlightStroke = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// ColorScale maps values over the inverted domain [Max, 0] onto a palette.
type ColorScale struct {
	Max     float64
	Palette Palette
}

// NewColorScale builds the scale for m. An empty map gets Max = 1.
func NewColorScale(m MetricMap, p Palette) ColorScale {
	return ColorScale{Max: m.Max(), Palette: p}
}

// Domain returns the scale domain in declaration order.
func (s ColorScale) Domain() [2]float64 {
	return [2]float64{s.Max, 0}
}

// T returns the interpolation parameter for v, clamped to [0, 1].
func (s ColorScale) T(v float64) float64 {
	d0, d1 := s.Max, 0.0
	if d0 == d1 || math.IsNaN(v) {
		return 0
	}
	t := (v - d0) / (d1 - d0)
	return math.Max(0, math.Min(1, t))
}

// Color returns the fill for v.
func (s ColorScale) Color(v float64) color.RGBA {
	return lerpRGB(s.Palette.From, s.Palette.To, s.T(v))
}

func lerpRGB(a, b color.RGBA, t float64) color.RGBA {
	ch := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + t*(float64(y)-float64(x))))
	}
	return color.RGBA{R: ch(a.R, b.R), G: ch(a.G, b.G), B: ch(a.B, b.B), A: 255}
}
