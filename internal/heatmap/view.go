package heatmap

import (
	"math"
	"time"

	"github.com/woozymasta/zipheat/internal/geo"
)

// Zoom limits and steps of the map controls.
const (
	MinScale           = 1.0
	MaxScale           = 8.0
	ZoomInStep         = 1.2
	ZoomOutStep        = 0.8
	TransitionDuration = 250 * time.Millisecond
)

// Transform is a translate+scale applied after projection: screen = K*p + (X, Y).
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the unzoomed transform.
var Identity = Transform{K: 1}

// Apply maps a projected point to the screen.
func (t Transform) Apply(p geo.Point) geo.Point {
	return geo.Point{X: p.X*t.K + t.X, Y: p.Y*t.K + t.Y}
}

// Invert maps a screen point back to projected space.
func (t Transform) Invert(p geo.Point) geo.Point {
	return geo.Point{X: (p.X - t.X) / t.K, Y: (p.Y - t.Y) / t.K}
}

// scaleAbout rescales t by factor keeping center fixed on screen.
func (t Transform) scaleAbout(factor float64, center geo.Point) Transform {
	k := math.Max(MinScale, math.Min(MaxScale, t.K*factor))
	p := t.Invert(center)
	return Transform{X: center.X - p.X*k, Y: center.Y - p.Y*k, K: k}
}

// Hover is the region under the pointer and the pointer position.
type Hover struct {
	Zip     string
	Pointer geo.Point
}

// ViewState is the interaction state of the map. It never touches data.
type ViewState struct {
	Mode         Mode
	HighlightZip string
	Hover        *Hover

	from, to Transform
	start    time.Time
	duration time.Duration
}

// NewViewState returns an unzoomed view in mode m.
func NewViewState(m Mode) ViewState {
	return ViewState{Mode: m, from: Identity, to: Identity}
}

// Target is the transform the view settles on once any transition ends.
func (v ViewState) Target() Transform {
	return v.to
}

// Animating reports whether a zoom transition is still running at now.
func (v ViewState) Animating(now time.Time) bool {
	return v.duration > 0 && now.Before(v.start.Add(v.duration))
}

// Transform returns the transform at now, easing between zoom steps.
func (v ViewState) Transform(now time.Time) Transform {
	if !v.Animating(now) {
		return v.to
	}
	t := easeCubicInOut(float64(now.Sub(v.start)) / float64(v.duration))
	return Transform{
		X: v.from.X + (v.to.X-v.from.X)*t,
		Y: v.from.Y + (v.to.Y-v.from.Y)*t,
		K: v.from.K + (v.to.K-v.from.K)*t,
	}
}

// ScaleBy zooms the target by factor about center, animating from the current transform.
func (v *ViewState) ScaleBy(factor float64, center geo.Point, now time.Time) {
	v.animateTo(v.to.scaleAbout(factor, center), now)
}

// ResetZoom animates back to the identity transform.
func (v *ViewState) ResetZoom(now time.Time) {
	v.animateTo(Identity, now)
}

func (v *ViewState) animateTo(target Transform, now time.Time) {
	v.from = v.Transform(now)
	v.to = target
	v.start = now
	v.duration = TransitionDuration
}

func easeCubicInOut(t float64) float64 {
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}
