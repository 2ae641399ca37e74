package heatmap

import (
	"testing"

	"github.com/woozymasta/zipheat/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(lon, lat, size float64) []geo.Polygon {
	return []geo.Polygon{{geo.Ring{
		{X: lon, Y: lat}, {X: lon + size, Y: lat}, {X: lon + size, Y: lat + size},
		{X: lon, Y: lat + size}, {X: lon, Y: lat},
	}}}
}

func testRegions() geo.RegionCollection {
	rc := geo.RegionCollection{
		{Zip: "90001", Polygons: square(-118.3, 33.9, 0.1)},
		{Zip: "90002", Polygons: square(-118.2, 33.9, 0.1)},
		{Zip: "90003", Polygons: square(-118.1, 33.9, 0.1)},
	}
	for i := range rc {
		for _, p := range rc[i].Polygons {
			for _, pt := range p[0] {
				rc[i].Bounds.Extend(pt)
			}
		}
	}
	return rc
}

func shapeByZip(t *testing.T, sc *Scene, zip string) Shape {
	t.Helper()
	for _, sh := range sc.Shapes {
		if sh.Zip == zip {
			return sh
		}
	}
	require.Failf(t, "shape not found", "zip %s", zip)
	return Shape{}
}

func TestDraw_MissingEntryIsNeutral(t *testing.T) {
	layout := DefaultRenderer.Project(testRegions())
	view := NewViewState(ModeViolation)
	view.Hover = &Hover{Zip: "90002", Pointer: geo.Point{X: 100, Y: 100}}

	sc := DefaultRenderer.Draw(layout, MetricMap{"90001": 5}, view, epoch)
	require.Len(t, sc.Shapes, 3)

	assert.Equal(t, ViolationPalette.From, shapeByZip(t, sc, "90001").Fill)
	assert.Equal(t, NoDataFill, shapeByZip(t, sc, "90002").Fill)
	assert.False(t, shapeByZip(t, sc, "90002").HasData)

	require.NotNil(t, sc.Tooltip)
	assert.Equal(t, "90002", sc.Tooltip.Zip)
	assert.Equal(t, NoDataText, sc.Tooltip.Value)
	assert.Equal(t, []string{"Zipcode: 90002", "Violations: no data"}, sc.Tooltip.Lines())
	assert.Equal(t, 115.0, sc.Tooltip.X)
	assert.Equal(t, 70.0, sc.Tooltip.Y)
}

func TestDraw_NoDataFillInEveryMode(t *testing.T) {
	layout := DefaultRenderer.Project(testRegions())
	for _, mode := range []Mode{ModeRating, ModeViolation} {
		sc := DefaultRenderer.Draw(layout, MetricMap{}, NewViewState(mode), epoch)
		assert.Equal(t, [2]float64{1, 0}, sc.Domain)
		for _, sh := range sc.Shapes {
			assert.Equal(t, NoDataFill, sh.Fill, "mode %s zip %s", mode, sh.Zip)
		}
		assert.Nil(t, sc.Tooltip)
	}
}

func TestDraw_TooltipValue(t *testing.T) {
	layout := DefaultRenderer.Project(testRegions())
	view := NewViewState(ModeRating)
	view.Hover = &Hover{Zip: "90001"}

	sc := DefaultRenderer.Draw(layout, MetricMap{"90001": 4.25}, view, epoch)
	assert.Equal(t, []string{"Zipcode: 90001", "Average Rating: 4.25"}, sc.Tooltip.Lines())
}

func TestStrokeFor_HighlightAndHover(t *testing.T) {
	view := NewViewState(ModeRating)
	view.HighlightZip = "90003"
	view.Hover = &Hover{Zip: "90001"}

	assert.Equal(t, HoverStrokeWidth, StrokeFor("90001", view).Width)
	assert.Equal(t, DefaultStroke, StrokeFor("90001", view).Color)
	assert.Equal(t, Stroke{Color: HighlightStroke, Width: HighlightStrokeWidth}, StrokeFor("90003", view))
	assert.Equal(t, DefaultStrokeWidth, StrokeFor("90002", view).Width)

	view.Hover = nil
	assert.Equal(t, DefaultStrokeWidth, StrokeFor("90001", view).Width)
	assert.Equal(t, HighlightStrokeWidth, StrokeFor("90003", view).Width)
}

func TestStrokeFor_HoverOnHighlighted(t *testing.T) {
	view := NewViewState(ModeRating)
	view.HighlightZip = "90003"
	view.Hover = &Hover{Zip: "90003"}
	assert.Equal(t, HighlightStrokeWidth, StrokeFor("90003", view).Width)

	view.Hover = nil
	assert.Equal(t, HighlightStrokeWidth, StrokeFor("90003", view).Width)
}

func TestLayout_RegionAt(t *testing.T) {
	layout := DefaultRenderer.Project(testRegions())
	mid := layout.Regions[1].Bounds
	pt := geo.Point{X: (mid.Min.X + mid.Max.X) / 2, Y: (mid.Min.Y + mid.Max.Y) / 2}

	zip, ok := layout.RegionAt(pt, Identity)
	require.True(t, ok)
	assert.Equal(t, "90002", zip)

	_, ok = layout.RegionAt(geo.Point{X: 1, Y: 1}, Identity)
	assert.False(t, ok)

	zoomed := Identity.scaleAbout(2, DefaultRenderer.Center())
	zip, ok = layout.RegionAt(zoomed.Apply(pt), zoomed)
	require.True(t, ok)
	assert.Equal(t, "90002", zip)
}
