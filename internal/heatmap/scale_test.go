package heatmap

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorScale_EmptyMapDomain(t *testing.T) {
	s := NewColorScale(MetricMap{}, RatingPalette)
	assert.Equal(t, [2]float64{1, 0}, s.Domain())
	assert.False(t, math.IsNaN(s.Max))
}

func TestColorScale_DomainIsInverted(t *testing.T) {
	s := NewColorScale(MetricMap{"90001": 2, "90002": 5}, RatingPalette)
	assert.Equal(t, [2]float64{5, 0}, s.Domain())
	assert.Equal(t, 0.0, s.T(5))
	assert.Equal(t, 1.0, s.T(0))
	assert.Equal(t, 0.5, s.T(2.5))
}

func TestColorScale_RatingPalette(t *testing.T) {
	s := NewColorScale(MetricMap{"a": 5}, RatingPalette)

	assert.Equal(t, color.RGBA{R: 177, G: 214, B: 255, A: 255}, s.Color(5), "best rating is cool")
	assert.Equal(t, color.RGBA{R: 126, G: 0, B: 0, A: 255}, s.Color(0), "worst rating is hot")
	assert.Equal(t, color.RGBA{R: 152, G: 107, B: 128, A: 255}, s.Color(2.5))
}

func TestColorScale_ViolationPalette(t *testing.T) {
	s := NewColorScale(MetricMap{"a": 10}, ViolationPalette)

	assert.Equal(t, color.RGBA{R: 126, G: 0, B: 0, A: 255}, s.Color(10), "most violations is hot")
	assert.Equal(t, color.RGBA{R: 177, G: 214, B: 255, A: 255}, s.Color(0))
}

func TestColorScale_ClampsOutOfDomain(t *testing.T) {
	s := NewColorScale(MetricMap{"a": 4}, RatingPalette)
	assert.Equal(t, s.Color(0), s.Color(-3))
	assert.Equal(t, s.Color(4), s.Color(40))
}

func TestColorScale_DegenerateDomain(t *testing.T) {
	s := NewColorScale(MetricMap{"a": 0, "b": 0}, ViolationPalette)
	assert.Equal(t, [2]float64{0, 0}, s.Domain())
	assert.Equal(t, 0.0, s.T(0))
	assert.Equal(t, ViolationPalette.From, s.Color(0))
}
