// Package heatmap joins ZIP geometry with county membership and per-ZIP
// metrics, and turns the result into a drawable choropleth scene.
package heatmap

import (
	"fmt"
	"strings"
)

// Mode selects which metric colors the map.
type Mode string

const (
	ModeRating    Mode = "rating"
	ModeViolation Mode = "violation"
)

// ParseMode accepts the mode names used by the dashboard controls.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rating", "ratings":
		return ModeRating, nil
	case "violation", "violations", "zipcode":
		return ModeViolation, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Palette returns the color ramp endpoints for the mode.
func (m Mode) Palette() Palette {
	if m == ModeViolation {
		return ViolationPalette
	}
	return RatingPalette
}

// Label is the value caption shown in the tooltip.
func (m Mode) Label() string {
	if m == ModeViolation {
		return "Violations"
	}
	return "Average Rating"
}
