package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/woozymasta/zipheat/internal/config"
	"github.com/woozymasta/zipheat/internal/geo"
	"github.com/woozymasta/zipheat/internal/source"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Geometry    string        `short:"g" long:"geometry"     env:"GEOMETRY_SOURCE"   description:"Statewide ZIP GeoJSON (path or URL)" default:"data/ca_california_zip_codes_geo.min.json"`
	Membership  string        `short:"m" long:"membership"   env:"MEMBERSHIP_SOURCE" description:"County ZIP list (path or URL)" default:"data/la_county_zip_codes.json"`
	ZipProperty string        `short:"k" long:"zip-property"                         description:"Feature property holding the ZIP" default:"ZCTA5CE10"`
	Output      string        `short:"o" long:"out"                                  description:"Output file path. Writes to stdout if empty"`
	Format      string        `short:"f" long:"format"                               description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Timeout     time.Duration `short:"t" long:"timeout"                              description:"Fetch timeout, none if 0"`
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

	cfg := config.Default()
	cfg.Sources.Geometry = opts.Geometry
	cfg.Sources.Membership = opts.Membership
	client := source.NewClient(cfg.Locations(), opts.Timeout)

	ctx := context.Background()
	fc, err := client.Geometry(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading geometry: %v\n", err)
		os.Exit(1)
	}
	raw, err := client.Membership(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading membership: %v\n", err)
		os.Exit(1)
	}

	all, err := geo.RegionsFromFeatures(fc, opts.ZipProperty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading geometry: %v\n", err)
		os.Exit(1)
	}
	filtered, ok := geo.Filter(all, geo.NewMembershipSet(raw))
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: membership list has no usable ZIP codes")
		os.Exit(1)
	}

	// marshal
	out := filtered.FeatureCollection()
	var outputData []byte
	if opts.Format == "yaml" {
		outputData, err = yaml.Marshal(out)
	} else {
		outputData, err = json.MarshalIndent(out, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, outputData, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Kept %d of %d regions in %s (format: %s)\n", len(filtered), len(all), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}
