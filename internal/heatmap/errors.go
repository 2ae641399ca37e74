package heatmap

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed component.
var ErrClosed = errors.New("heatmap component closed")

// Stage names the step that failed.
type Stage string

const (
	StageGeometry   Stage = "geometry"
	StageMembership Stage = "membership"
	StageMetrics    Stage = "metrics"
	StageRender     Stage = "render"
)

// LoadError is the terminal failure of a component.
type LoadError struct {
	Stage Stage
	Mode  Mode
	Err   error
}

func (e *LoadError) Error() string {
	switch e.Stage {
	case StageGeometry:
		return fmt.Sprintf("GeoJSON load failed: %v", e.Err)
	case StageMembership:
		return fmt.Sprintf("county zipcode load failed: %v", e.Err)
	case StageMetrics:
		if e.Mode == ModeViolation {
			return fmt.Sprintf("Zipcode data load failed: %v", e.Err)
		}
		return fmt.Sprintf("Ratings data load failed: %v", e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
