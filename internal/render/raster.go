package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/woozymasta/zipheat/internal/geo"
	"github.com/woozymasta/zipheat/internal/heatmap"

	"github.com/chai2010/webp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Raster media types.
const (
	PNGMime  = "image/png"
	WebPMime = "image/webp"
)

var (
	tooltipBackground = color.NRGBA{A: 178}
	tooltipText       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	errorText         = color.RGBA{R: 255, A: 255}
)

// PNG rasterizes the scene as PNG.
func PNG(w io.Writer, sc *heatmap.Scene) error {
	return png.Encode(w, Rasterize(sc))
}

// WebP rasterizes the scene as lossy WebP at the given quality (1..100).
func WebP(w io.Writer, sc *heatmap.Scene, quality float32) error {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	if err := webp.Encode(w, Rasterize(sc), &webp.Options{Lossless: false, Quality: quality}); err != nil {
		return fmt.Errorf("encode webp: %w", err)
	}
	return nil
}

// Rasterize draws the scene onto a transparent RGBA canvas.
func Rasterize(sc *heatmap.Scene) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, sc.Width, sc.Height))

	if sc.Err != "" {
		drawText(img, sc.Err, 20, 30, errorText)
		return img
	}

	clip := canvasRing(sc.Width, sc.Height)
	z := vector.NewRasterizer(sc.Width, sc.Height)

	for _, sh := range sc.Shapes {
		rings := screenRings(sh.Polygons, sc.Transform)

		z.Reset(sc.Width, sc.Height)
		for _, ring := range rings {
			addRing(z, clipRing(ring, clip))
		}
		z.Draw(img, img.Bounds(), image.NewUniform(sh.Fill), image.Point{})

		z.Reset(sc.Width, sc.Height)
		half := sh.Stroke.Width * sc.Transform.K / 2
		for _, ring := range rings {
			for i := 1; i < len(ring); i++ {
				addRing(z, clipRing(segmentQuad(ring[i-1], ring[i], half), clip))
			}
			// Thin strokes have no visible notches at corners.
			if half < minJoinRadius {
				continue
			}
			for _, pt := range ring {
				addRing(z, clipRing(roundJoin(pt, half), clip))
			}
		}
		z.Draw(img, img.Bounds(), image.NewUniform(sh.Stroke.Color), image.Point{})
	}

	if sc.Tooltip != nil {
		drawTooltip(img, *sc.Tooltip)
	}

	return img
}

func screenRings(polys []geo.Polygon, t heatmap.Transform) []geo.Ring {
	var out []geo.Ring
	for _, p := range polys {
		for _, ring := range p {
			r := make(geo.Ring, len(ring))
			for i, pt := range ring {
				r[i] = t.Apply(pt)
			}
			out = append(out, r)
		}
	}
	return out
}

func addRing(z *vector.Rasterizer, ring geo.Ring) {
	if len(ring) < 3 {
		return
	}
	z.MoveTo(float32(ring[0].X), float32(ring[0].Y))
	for _, pt := range ring[1:] {
		z.LineTo(float32(pt.X), float32(pt.Y))
	}
	z.ClosePath()
}

// segmentQuad returns the rectangle covering segment a-b at half-width h.
func segmentQuad(a, b geo.Point, h float64) geo.Ring {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return nil
	}
	nx, ny := -dy/l*h, dx/l*h
	return geo.Ring{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	}
}

// minJoinRadius is the stroke half-width from which vertices get round joins.
const minJoinRadius = 1.0

const joinSegments = 16

// roundJoin returns a disc of radius r around p wound like segmentQuad, so
// overlapping parts add up instead of cancelling.
func roundJoin(p geo.Point, r float64) geo.Ring {
	ring := make(geo.Ring, joinSegments)
	for i := range ring {
		a := -2 * math.Pi * float64(i) / joinSegments
		ring[i] = geo.Point{X: p.X + r*math.Cos(a), Y: p.Y + r*math.Sin(a)}
	}
	return ring
}

func canvasRing(w, h int) [4]geo.Point {
	return [4]geo.Point{{X: 0, Y: 0}, {X: float64(w), Y: 0}, {X: float64(w), Y: float64(h)}, {X: 0, Y: float64(h)}}
}

// clipRing clips ring to the canvas rectangle (Sutherland-Hodgman).
// The rasterizer only accepts points inside its bounds.
func clipRing(ring geo.Ring, rect [4]geo.Point) geo.Ring {
	out := ring
	for i := 0; i < 4 && len(out) > 0; i++ {
		a, b := rect[i], rect[(i+1)%4]
		in := out
		out = make(geo.Ring, 0, len(in)+2)
		for j := range in {
			cur, prev := in[j], in[(j+len(in)-1)%len(in)]
			curIn, prevIn := inside(cur, a, b), inside(prev, a, b)
			switch {
			case curIn && prevIn:
				out = append(out, cur)
			case curIn:
				out = append(out, intersect(prev, cur, a, b), cur)
			case prevIn:
				out = append(out, intersect(prev, cur, a, b))
			}
		}
	}
	return out
}

func inside(p, a, b geo.Point) bool {
	return (b.X-a.X)*(p.Y-a.Y)-(b.Y-a.Y)*(p.X-a.X) >= 0
}

func intersect(p, q, a, b geo.Point) geo.Point {
	a1, b1 := q.Y-p.Y, p.X-q.X
	c1 := a1*p.X + b1*p.Y
	a2, b2 := b.Y-a.Y, a.X-b.X
	c2 := a2*a.X + b2*a.Y
	det := a1*b2 - a2*b1
	if det == 0 {
		return q
	}
	return geo.Point{X: (b2*c1 - b1*c2) / det, Y: (a1*c2 - a2*c1) / det}
}

func drawTooltip(img *image.RGBA, tip heatmap.Tooltip) {
	face := basicfont.Face7x13
	lines := tip.Lines()
	lineHeight := face.Metrics().Height.Ceil() + 2

	width := 0
	for _, l := range lines {
		if w := font.MeasureString(face, l).Ceil(); w > width {
			width = w
		}
	}

	x, y := int(math.Round(tip.X)), int(math.Round(tip.Y))
	box := image.Rect(x, y, x+width+16, y+lineHeight*len(lines)+8)
	draw.Draw(img, box, image.NewUniform(tooltipBackground), image.Point{}, draw.Over)

	ascent := face.Metrics().Ascent.Ceil()
	for i, l := range lines {
		drawText(img, l, x+8, y+4+ascent+i*lineHeight, tooltipText)
	}
}

func drawText(img *image.RGBA, text string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
