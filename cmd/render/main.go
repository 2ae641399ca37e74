package main

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/woozymasta/zipheat/internal/config"
	"github.com/woozymasta/zipheat/internal/heatmap"
	"github.com/woozymasta/zipheat/internal/logger"
	"github.com/woozymasta/zipheat/internal/observability"
	"github.com/woozymasta/zipheat/internal/render"
	"github.com/woozymasta/zipheat/internal/source"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string        `short:"c" long:"config"    env:"CONFIG_FILE" description:"Path to configuration file, built-in defaults if empty"`
	APIBase    string        `short:"b" long:"api-base"  env:"API_BASE"    description:"Inspection API base URL, overrides the config file"`
	Mode       string        `short:"m" long:"mode"                        description:"Metric to display (rating or violation)"`
	Highlight  string        `short:"H" long:"highlight"                   description:"ZIP code to highlight"`
	Zoom       int           `short:"z" long:"zoom"                        description:"Zoom steps, negative zooms out"`
	Format     string        `short:"f" long:"format"                      description:"Output format" choice:"svg" choice:"png" choice:"webp" default:"svg"`
	Output     string        `short:"o" long:"out"                         description:"Output file path. Writes to stdout if empty"`
	Timeout    time.Duration `short:"t" long:"timeout"                     description:"How long to wait for the data" default:"30s"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
	}
	if opts.APIBase != "" {
		cfg.Sources.APIBase = opts.APIBase
	}

	mode := cfg.InitialMode()
	if opts.Mode != "" {
		m, err := heatmap.ParseMode(opts.Mode)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid mode")
		}
		mode = m
	}

	// Transitions finish instantly on a fake clock that is advanced after each step.
	clock := clockwork.NewFakeClock()
	c := heatmap.New(source.NewClient(cfg.Locations(), cfg.FetchTimeout), heatmap.Options{
		Renderer:    cfg.Renderer(),
		ZipProperty: cfg.ZipProperty,
		Mode:        mode,
		Clock:       clock,
		Metrics:     observability.NewMetricsForTesting(),
	})
	c.Mount()
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	if err := c.WaitReady(ctx, 50*time.Millisecond); err != nil {
		log.Warn().Err(err).Msg("Data not ready, rendering current state")
	}

	if opts.Highlight != "" {
		if err := c.SetHighlight(opts.Highlight); err != nil {
			log.Fatal().Err(err).Msg("Failed to set highlight")
		}
	}
	step := c.ZoomIn
	n := opts.Zoom
	if n < 0 {
		step, n = c.ZoomOut, -n
	}
	for range n {
		if err := step(); err != nil {
			log.Fatal().Err(err).Msg("Failed to zoom")
		}
		clock.Advance(heatmap.TransitionDuration)
	}

	sc, err := c.Scene()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build scene")
	}

	var buf bytes.Buffer
	switch opts.Format {
	case "png":
		err = render.PNG(&buf, sc)
	case "webp":
		err = render.WebP(&buf, sc, cfg.WebPQuality)
	default:
		var out []byte
		out, err = render.SVG(sc)
		buf.Write(out)
	}
	if err != nil {
		log.Fatal().Err(err).Str("format", opts.Format).Msg("Failed to encode heatmap")
	}

	if opts.Output == "" {
		_, _ = os.Stdout.Write(buf.Bytes())
		return
	}
	if err := os.WriteFile(opts.Output, buf.Bytes(), 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}

	log.Info().
		Str("out", opts.Output).
		Str("format", opts.Format).
		Str("mode", string(mode)).
		Int("shapes", len(sc.Shapes)).
		Msg("Heatmap rendered")
}
