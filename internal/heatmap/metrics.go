package heatmap

import (
	"math"

	"github.com/woozymasta/zipheat/internal/geo"
	"github.com/woozymasta/zipheat/internal/source"
)

// MetricMap maps a canonical ZIP to the value that drives its fill.
type MetricMap map[string]float64

// Max returns the largest value, or 1 when the map holds no usable value.
func (m MetricMap) Max() float64 {
	maxVal, found := 0.0, false
	for _, v := range m {
		if math.IsNaN(v) {
			continue
		}
		if !found || v > maxVal {
			maxVal, found = v, true
		}
	}
	if !found {
		return 1
	}
	return maxVal
}

// RatingsToMetricMap reduces rating rows keyed by area. Rows without a rating
// are left out so the region renders as no data. Later rows win.
func RatingsToMetricMap(rows []source.RatingRecord) MetricMap {
	out := make(MetricMap, len(rows))
	for _, r := range rows {
		zip := geo.CanonicalZip(r.Area)
		if zip == "" || r.Rating == nil {
			continue
		}
		out[zip] = *r.Rating
	}
	return out
}

// ViolationsToMetricMap reduces violation rows keyed by ZIP, skipping rows
// whose zipCode is missing or falsy.
func ViolationsToMetricMap(rows []source.ViolationRecord) MetricMap {
	out := make(MetricMap, len(rows))
	for _, r := range rows {
		if falsy(r.ZipCode) || r.Violation == nil {
			continue
		}
		zip := geo.CanonicalZip(r.ZipCode)
		if zip == "" {
			continue
		}
		out[zip] = *r.Violation
	}
	return out
}

func falsy(v interface{}) bool {
	switch z := v.(type) {
	case nil:
		return true
	case string:
		return z == ""
	case bool:
		return !z
	case float64:
		return z == 0 || math.IsNaN(z)
	}
	return false
}
