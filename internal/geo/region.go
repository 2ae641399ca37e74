package geo

import (
	"fmt"
	"math"
)

// DefaultZipProperty is the feature property holding the ZIP code in census ZCTA files.
const DefaultZipProperty = "ZCTA5CE10"

// Point is a 2D coordinate: lon/lat before projection, pixels after.
type Point struct {
	X, Y float64
}

// Ring is a closed sequence of points.
type Ring []Point

// Polygon is a list of rings; the first is the outer ring, the rest are holes.
type Polygon []Ring

// Bounds is an axis aligned box. The zero value is empty.
type Bounds struct {
	Min, Max Point
	valid    bool
}

// Extend grows b to include p.
func (b *Bounds) Extend(p Point) {
	if !b.valid {
		b.Min, b.Max, b.valid = p, p, true
		return
	}
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
}

// Union grows b to include o.
func (b *Bounds) Union(o Bounds) {
	if !o.valid {
		return
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
}

// Empty reports whether no point was ever added.
func (b Bounds) Empty() bool { return !b.valid }

// Contains reports whether p is inside the box, edges included.
func (b Bounds) Contains(p Point) bool {
	return b.valid && p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Region is one ZIP-tagged choropleth unit.
type Region struct {
	Zip      string
	Polygons []Polygon
	Bounds   Bounds
	Feature  GeoJSONFeature
}

// RegionCollection is an ordered list of regions.
type RegionCollection []Region

// RegionsFromFeatures builds regions from a feature collection, reading the ZIP
// from the zipKey property. The result is never nil, even when empty.
func RegionsFromFeatures(fc GeoJSONFeatureCollection, zipKey string) (RegionCollection, error) {
	if zipKey == "" {
		zipKey = DefaultZipProperty
	}

	out := make(RegionCollection, 0, len(fc.Features))
	for i, f := range fc.Features {
		polys, err := f.Geometry.Polygons()
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}

		r := Region{
			Zip:      CanonicalZip(f.Properties[zipKey]),
			Polygons: polys,
			Feature:  f,
		}
		for _, p := range polys {
			for _, ring := range p {
				for _, pt := range ring {
					r.Bounds.Extend(pt)
				}
			}
		}
		out = append(out, r)
	}

	return out, nil
}

// Bounds returns the extent of every region in the collection.
func (rc RegionCollection) Bounds() Bounds {
	var b Bounds
	for _, r := range rc {
		b.Union(r.Bounds)
	}
	return b
}

// FeatureCollection rebuilds GeoJSON from the regions, preserving order.
func (rc RegionCollection) FeatureCollection() GeoJSONFeatureCollection {
	fc := GeoJSONFeatureCollection{Type: "FeatureCollection", Features: make([]GeoJSONFeature, 0, len(rc))}
	for _, r := range rc {
		fc.Features = append(fc.Features, r.Feature)
	}
	return fc
}

// Filter keeps the regions whose ZIP is in members, in their original order.
// It reports false, without joining, until both inputs are available:
// a nil collection means geometry is not loaded and an empty set means
// membership is not loaded.
func Filter(all RegionCollection, members MembershipSet) (RegionCollection, bool) {
	if all == nil || len(members) == 0 {
		return nil, false
	}

	out := make(RegionCollection, 0, len(members))
	for _, r := range all {
		if r.Zip != "" && members.Has(r.Zip) {
			out = append(out, r)
		}
	}
	return out, true
}
