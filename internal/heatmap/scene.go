package heatmap

import (
	"image/color"
	"math"
	"strconv"
	"time"

	"github.com/woozymasta/zipheat/internal/geo"
)

// Stroke widths of region outlines.
const (
	DefaultStrokeWidth   = 0.7
	HighlightStrokeWidth = 3.0
	HoverStrokeWidth     = 2.0
)

// TooltipOffset is the distance from the pointer to the tooltip's corner.
var TooltipOffset = geo.Point{X: 15, Y: -30}

// NoDataText is the tooltip value of a region without a metric entry.
const NoDataText = "no data"

// Stroke is an outline color and width.
type Stroke struct {
	Color color.RGBA
	Width float64
}

// Shape is one drawn region. Polygons are in projected canvas space;
// the scene transform still has to be applied.
type Shape struct {
	Zip      string
	Polygons []geo.Polygon
	Fill     color.RGBA
	Value    float64
	HasData  bool
	Stroke   Stroke
}

// Tooltip is the hover box contents and its top-left position.
type Tooltip struct {
	Zip   string
	Label string
	Value string
	X, Y  float64
}

// Lines returns the tooltip text, one entry per line.
func (t Tooltip) Lines() []string {
	return []string{"Zipcode: " + t.Zip, t.Label + ": " + t.Value}
}

// Scene is everything needed to draw the map once.
type Scene struct {
	Width, Height int
	Mode          Mode
	Transform     Transform
	Domain        [2]float64
	Shapes        []Shape
	Tooltip       *Tooltip
	// Loading is set while geometry or membership is still in flight.
	Loading bool
	// Err replaces the whole map when set.
	Err string
}

// ErrorScene is the scene shown after a terminal failure.
func ErrorScene(width, height int, err error) *Scene {
	return &Scene{Width: width, Height: height, Err: "Error: " + err.Error()}
}

// Renderer holds the canvas geometry of the map.
type Renderer struct {
	Width, Height int
	Margin        float64
}

// DefaultRenderer is the 800x550 canvas with a 20px margin.
var DefaultRenderer = Renderer{Width: 800, Height: 550, Margin: 20}

// Center is the fixed point of zoom steps.
func (r Renderer) Center() geo.Point {
	return geo.Point{X: float64(r.Width) / 2, Y: float64(r.Height) / 2}
}

// LayoutRegion is a region already projected onto the canvas.
type LayoutRegion struct {
	Zip      string
	Polygons []geo.Polygon
	Bounds   geo.Bounds
}

// Layout is the projected filtered collection. It only changes when the
// filtered collection does.
type Layout struct {
	Projection geo.Projection
	Regions    []LayoutRegion
}

// Project fits rc into the canvas minus the margin and projects every region.
func (r Renderer) Project(rc geo.RegionCollection) Layout {
	proj := geo.FitExtent(rc.Bounds(),
		r.Margin, r.Margin,
		float64(r.Width)-r.Margin, float64(r.Height)-r.Margin)

	out := Layout{Projection: proj, Regions: make([]LayoutRegion, 0, len(rc))}
	for _, region := range rc {
		lr := LayoutRegion{Zip: region.Zip, Polygons: proj.ProjectPolygons(region.Polygons)}
		for _, p := range lr.Polygons {
			for _, ring := range p {
				for _, pt := range ring {
					lr.Bounds.Extend(pt)
				}
			}
		}
		out.Regions = append(out.Regions, lr)
	}
	return out
}

// RegionAt returns the ZIP of the topmost region under the screen point.
func (l Layout) RegionAt(screen geo.Point, t Transform) (string, bool) {
	p := t.Invert(screen)
	for i := len(l.Regions) - 1; i >= 0; i-- {
		lr := l.Regions[i]
		if lr.Bounds.Contains(p) && geo.ContainsPoint(lr.Polygons, p) {
			return lr.Zip, true
		}
	}
	return "", false
}

// StrokeFor returns the outline of zip under the current view.
// A hovered region widens but never drops below its highlighted width.
func StrokeFor(zip string, view ViewState) Stroke {
	s := Stroke{Color: DefaultStroke, Width: DefaultStrokeWidth}
	if view.HighlightZip != "" && zip == view.HighlightZip {
		s = Stroke{Color: HighlightStroke, Width: HighlightStrokeWidth}
	}
	if view.Hover != nil && view.Hover.Zip == zip {
		s.Width = math.Max(HoverStrokeWidth, s.Width)
	}
	return s
}

// FormatValue prints a metric the way the tooltip shows it.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Draw builds the scene from the layout, the metric map and the view.
func (r Renderer) Draw(layout Layout, metrics MetricMap, view ViewState, now time.Time) *Scene {
	scale := NewColorScale(metrics, view.Mode.Palette())

	scene := &Scene{
		Width:     r.Width,
		Height:    r.Height,
		Mode:      view.Mode,
		Transform: view.Transform(now),
		Domain:    scale.Domain(),
		Shapes:    make([]Shape, 0, len(layout.Regions)),
	}

	for _, lr := range layout.Regions {
		sh := Shape{
			Zip:      lr.Zip,
			Polygons: lr.Polygons,
			Fill:     NoDataFill,
			Stroke:   StrokeFor(lr.Zip, view),
		}
		if v, ok := metrics[lr.Zip]; ok {
			sh.Value, sh.HasData = v, true
			sh.Fill = scale.Color(v)
		}
		scene.Shapes = append(scene.Shapes, sh)
	}

	if view.Hover != nil {
		tip := &Tooltip{
			Zip:   view.Hover.Zip,
			Label: view.Mode.Label(),
			Value: NoDataText,
			X:     view.Hover.Pointer.X + TooltipOffset.X,
			Y:     view.Hover.Pointer.Y + TooltipOffset.Y,
		}
		if v, ok := metrics[view.Hover.Zip]; ok {
			tip.Value = FormatValue(v)
		}
		scene.Tooltip = tip
	}

	return scene
}
