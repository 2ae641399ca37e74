package geo

import "math"

// MaxLat is the latitude limit of the Web Mercator projection.
const MaxLat = 85.05112878

// Mercator converts lon/lat degrees into unit Mercator coordinates.
// Y grows southward so the result maps directly onto screen space.
func Mercator(lon, lat float64) (x, y float64) {
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	lambda := lon * (math.Pi / 180.0)
	phi := lat * (math.Pi / 180.0)

	return lambda, -math.Log(math.Tan(math.Pi*0.25 + phi*0.5))
}

// Projection maps lon/lat onto the canvas: screen = K*mercator + T.
type Projection struct {
	K, TX, TY float64
}

// FitExtent returns the Mercator projection that fits b, given in lon/lat,
// centered inside the box [x0,y0]-[x1,y1].
func FitExtent(b Bounds, x0, y0, x1, y1 float64) Projection {
	if b.Empty() {
		return Projection{K: 1, TX: (x0 + x1) / 2, TY: (y0 + y1) / 2}
	}

	// Mercator y is monotonic in latitude, so the corners bound the projection.
	mx0, my1 := Mercator(b.Min.X, b.Min.Y)
	mx1, my0 := Mercator(b.Max.X, b.Max.Y)

	w, h := x1-x0, y1-y0
	dx, dy := mx1-mx0, my1-my0

	var k float64
	switch {
	case dx > 0 && dy > 0:
		k = math.Min(w/dx, h/dy)
	case dx > 0:
		k = w / dx
	case dy > 0:
		k = h / dy
	default:
		k = 1
	}

	return Projection{
		K:  k,
		TX: x0 + (w-k*(mx0+mx1))/2,
		TY: y0 + (h-k*(my0+my1))/2,
	}
}

// Project maps a lon/lat point onto the canvas.
func (p Projection) Project(pt Point) Point {
	x, y := Mercator(pt.X, pt.Y)
	return Point{X: p.K*x + p.TX, Y: p.K*y + p.TY}
}

// ProjectPolygons maps every ring of polys onto the canvas.
func (p Projection) ProjectPolygons(polys []Polygon) []Polygon {
	out := make([]Polygon, len(polys))
	for i, poly := range polys {
		out[i] = make(Polygon, len(poly))
		for j, ring := range poly {
			r := make(Ring, len(ring))
			for k, pt := range ring {
				r[k] = p.Project(pt)
			}
			out[i][j] = r
		}
	}
	return out
}
