package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/zipheat/internal/config"
	"github.com/woozymasta/zipheat/internal/heatmap"
	"github.com/woozymasta/zipheat/internal/logger"
	"github.com/woozymasta/zipheat/internal/observability"
	"github.com/woozymasta/zipheat/internal/server"
	"github.com/woozymasta/zipheat/internal/source"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile   string        `short:"c" long:"config"        env:"CONFIG_FILE"    description:"Path to configuration file, built-in defaults if empty"`
	Addr         string        `short:"a" long:"addr"          env:"LISTEN_ADDRESS" description:"Address to listen on" default:"0.0.0.0"`
	Port         int           `short:"p" long:"port"          env:"LISTEN_PORT"    description:"Port to listen on"    default:"8080"`
	APIBase      string        `short:"b" long:"api-base"      env:"API_BASE"       description:"Inspection API base URL, overrides the config file"`
	FetchTimeout time.Duration `short:"t" long:"fetch-timeout" env:"FETCH_TIMEOUT"  description:"Timeout of a single dataset fetch, none if 0"`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
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
	if opts.FetchTimeout > 0 {
		cfg.FetchTimeout = opts.FetchTimeout
	}

	metrics := observability.NewMetrics()
	client := source.NewClient(cfg.Locations(), cfg.FetchTimeout)

	mount := func() *heatmap.Component {
		c := heatmap.New(client, heatmap.Options{
			Renderer:    cfg.Renderer(),
			ZipProperty: cfg.ZipProperty,
			Mode:        cfg.InitialMode(),
			Metrics:     metrics,
		})
		c.Mount()
		return c
	}

	srvCtx := server.NewServerContext(cfg, metrics, mount)
	defer srvCtx.Close()

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           server.RequestLogger(srvCtx.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().
		Str("addr", listenAddr).
		Str("mode", cfg.Mode).
		Str("api_base", cfg.Sources.APIBase).
		Msg("Web server started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Web server stopped")
}
