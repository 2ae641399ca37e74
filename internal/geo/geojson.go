// Package geo handles geographic data structures, ZIP regions and coordinate projection.
package geo

import (
	"fmt"
	"strings"
)

// GeoJSONFeatureCollection represents a collection of geographic features.
// It follows the standard GeoJSON structure.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type" yaml:"type"`
	Features []GeoJSONFeature `json:"features" yaml:"features"`
}

// GeoJSONFeature represents a single geographic feature with geometry and properties.
type GeoJSONFeature struct {
	Properties map[string]interface{} `json:"properties" yaml:"properties"`
	Type       string                 `json:"type" yaml:"type"`
	Geometry   *GeoJSONGeometry       `json:"geometry" yaml:"geometry"`
}

// GeoJSONGeometry represents the geometry of a feature.
// Coordinates are kept in their decoded generic form so the same value
// round-trips through both JSON and YAML.
type GeoJSONGeometry struct {
	Type        string      `json:"type" yaml:"type"`
	Coordinates interface{} `json:"coordinates" yaml:"coordinates"`
}

// Polygons converts Polygon and MultiPolygon geometry into rings of points.
// A null geometry has no polygons. Any other geometry type is rejected.
func (g *GeoJSONGeometry) Polygons() ([]Polygon, error) {
	if g == nil {
		return nil, nil
	}

	switch strings.ToLower(g.Type) {
	case "polygon":
		p, err := toPolygon(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return []Polygon{p}, nil

	case "multipolygon":
		arr, ok := g.Coordinates.([]interface{})
		if !ok {
			return nil, fmt.Errorf("multipolygon coordinates: expected array")
		}
		out := make([]Polygon, 0, len(arr))
		for i, raw := range arr {
			p, err := toPolygon(raw)
			if err != nil {
				return nil, fmt.Errorf("multipolygon part %d: %w", i, err)
			}
			out = append(out, p)
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
}

func toPolygon(v interface{}) (Polygon, error) {
	rings, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("polygon coordinates: expected array of rings")
	}

	poly := make(Polygon, 0, len(rings))
	for i, rawRing := range rings {
		pts, ok := rawRing.([]interface{})
		if !ok {
			return nil, fmt.Errorf("ring %d: expected array of positions", i)
		}

		ring := make(Ring, 0, len(pts))
		for j, rawPt := range pts {
			pos, ok := rawPt.([]interface{})
			if !ok || len(pos) < 2 {
				return nil, fmt.Errorf("ring %d position %d: expected [lon, lat]", i, j)
			}
			lon, ok1 := toFloat(pos[0])
			lat, ok2 := toFloat(pos[1])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("ring %d position %d: non-numeric coordinate", i, j)
			}
			ring = append(ring, Point{X: lon, Y: lat})
		}
		poly = append(poly, ring)
	}

	return poly, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
