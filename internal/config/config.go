// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/woozymasta/zipheat/internal/geo"
	"github.com/woozymasta/zipheat/internal/heatmap"
	"github.com/woozymasta/zipheat/internal/source"

	"gopkg.in/yaml.v3"
)

// Defaults of the Los Angeles County dashboard.
const (
	DefaultGeometry    = "data/ca_california_zip_codes_geo.min.json"
	DefaultMembership  = "data/la_county_zip_codes.json"
	DefaultAPIBase     = "http://localhost:8000"
	DefaultRatings     = "/ratings/map"
	DefaultViolations  = "/heatmap/zipcode"
	DefaultWebPQuality = 85
)

// Config represents the root configuration file structure.
type Config struct {
	Sources      Sources       `yaml:"sources"`
	Canvas       Canvas        `yaml:"canvas,omitempty"`
	ZipProperty  string        `yaml:"zip_property,omitempty"`
	Mode         string        `yaml:"mode,omitempty"`
	FetchTimeout time.Duration `yaml:"fetch_timeout,omitempty"`
	WebPQuality  float32       `yaml:"webp_quality,omitempty"`
}

// Sources names the four datasets. Relative metric paths are joined to APIBase.
type Sources struct {
	Geometry   string `yaml:"geometry,omitempty"`
	Membership string `yaml:"membership,omitempty"`
	APIBase    string `yaml:"api_base,omitempty"`
	Ratings    string `yaml:"ratings,omitempty"`
	Violations string `yaml:"violations,omitempty"`
}

// Canvas is the output size and fit margin of the map.
type Canvas struct {
	Width  int     `yaml:"width,omitempty"`
	Height int     `yaml:"height,omitempty"`
	Margin float64 `yaml:"margin,omitempty"`
}

// Load reads and parses the YAML configuration file from the specified path
// and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.Normalize()
	return cfg
}

// Normalize fills unset fields with defaults and validates the result.
func (c *Config) Normalize() error {
	if c.Sources.Geometry == "" {
		c.Sources.Geometry = DefaultGeometry
	}
	if c.Sources.Membership == "" {
		c.Sources.Membership = DefaultMembership
	}
	if c.Sources.APIBase == "" {
		c.Sources.APIBase = DefaultAPIBase
	}
	if c.Sources.Ratings == "" {
		c.Sources.Ratings = DefaultRatings
	}
	if c.Sources.Violations == "" {
		c.Sources.Violations = DefaultViolations
	}
	if c.ZipProperty == "" {
		c.ZipProperty = geo.DefaultZipProperty
	}
	if c.Mode == "" {
		c.Mode = string(heatmap.ModeRating)
	}
	if c.WebPQuality <= 0 {
		c.WebPQuality = DefaultWebPQuality
	}
	if c.Canvas.Width == 0 && c.Canvas.Height == 0 {
		c.Canvas = Canvas{
			Width:  heatmap.DefaultRenderer.Width,
			Height: heatmap.DefaultRenderer.Height,
			Margin: heatmap.DefaultRenderer.Margin,
		}
	}

	if _, err := heatmap.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return errors.New("canvas width and height must be > 0")
	}
	if c.Canvas.Margin < 0 || 2*c.Canvas.Margin >= float64(min(c.Canvas.Width, c.Canvas.Height)) {
		return errors.New("canvas margin must leave room for the map")
	}
	if c.FetchTimeout < 0 {
		return errors.New("fetch_timeout must not be negative")
	}
	if c.WebPQuality > 100 {
		return errors.New("webp_quality must be within 1..100")
	}
	return nil
}

// Locations resolves the dataset locations for the source client.
func (c *Config) Locations() source.Locations {
	return source.Locations{
		Geometry:   c.Sources.Geometry,
		Membership: c.Sources.Membership,
		Ratings:    joinAPI(c.Sources.APIBase, c.Sources.Ratings),
		Violations: joinAPI(c.Sources.APIBase, c.Sources.Violations),
	}
}

// Renderer returns the canvas as a heatmap renderer.
func (c *Config) Renderer() heatmap.Renderer {
	return heatmap.Renderer{Width: c.Canvas.Width, Height: c.Canvas.Height, Margin: c.Canvas.Margin}
}

// InitialMode returns the parsed start-up mode.
func (c *Config) InitialMode() heatmap.Mode {
	m, err := heatmap.ParseMode(c.Mode)
	if err != nil {
		return heatmap.ModeRating
	}
	return m
}

func joinAPI(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
