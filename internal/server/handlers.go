// Package server handles HTTP requests and middleware.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/zipheat/internal/heatmap"
	"github.com/woozymasta/zipheat/internal/render"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Routes registers every handler on a new mux.
func (s *ServerContext) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.HandleIndex)
	for _, format := range []string{"svg", "png", "webp"} {
		mux.HandleFunc("GET /api/heatmap."+format, s.HandleHeatmap(format))
	}
	mux.HandleFunc("GET /api/regions", s.HandleRegions)
	mux.HandleFunc("GET /api/metrics", s.HandleMetricMap)
	mux.HandleFunc("GET /api/state", s.HandleState)
	mux.HandleFunc("POST /api/mode", s.HandleMode)
	mux.HandleFunc("POST /api/highlight", s.HandleHighlight)
	mux.HandleFunc("POST /api/zoom/{action}", s.HandleZoom)
	mux.HandleFunc("POST /api/hover", s.HandleHover)
	mux.HandleFunc("POST /api/pointer", s.HandlePointer)
	mux.HandleFunc("POST /api/leave", s.HandleLeave)
	mux.HandleFunc("POST /api/remount", s.HandleRemount)
	mux.HandleFunc("GET /healthz", s.HandleHealth)
	mux.HandleFunc("GET /readyz", s.HandleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// HandleIndex serves the dashboard page.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	etag := s.indexETag
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleHeatmap returns a handler rendering the current scene as svg, png or webp.
func (s *ServerContext) HandleHeatmap(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveHeatmap(w, r, format)
	}
}

func (s *ServerContext) serveHeatmap(w http.ResponseWriter, r *http.Request, format string) {
	sc, err := s.Component().Scene()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	var (
		buf  bytes.Buffer
		mime string
	)
	switch format {
	case "svg":
		var out []byte
		out, err = render.SVG(sc)
		buf.Write(out)
		mime = render.SVGMime
	case "png":
		err = render.PNG(&buf, sc)
		mime = render.PNGMime
	case "webp":
		err = render.WebP(&buf, sc, s.Config.WebPQuality)
		mime = render.WebPMime
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		s.Metrics.RenderErrors.Inc()
		log.Error().Err(err).Str("format", format).Msg("Failed to encode heatmap")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.Metrics.Renders.WithLabelValues(format).Inc()

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// HandleRegions serves the filtered county regions as GeoJSON.
func (s *ServerContext) HandleRegions(w http.ResponseWriter, _ *http.Request) {
	regions, ok, err := s.Component().Regions()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if !ok {
		writeError(w, http.StatusServiceUnavailable, heatmap.ErrNotReady)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	_ = json.NewEncoder(w).Encode(regions.FeatureCollection())
}

// HandleMetricMap serves the ZIP metric map of the live mode.
func (s *ServerContext) HandleMetricMap(w http.ResponseWriter, _ *http.Request) {
	m, mode, ok, err := s.Component().Metrics()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":   mode,
		"loaded": ok,
		"values": m,
	})
}

// HandleState serves the component status.
func (s *ServerContext) HandleState(w http.ResponseWriter, _ *http.Request) {
	s.writeState(w, s.Component())
}

// HandleMode switches the displayed metric.
func (s *ServerContext) HandleMode(w http.ResponseWriter, r *http.Request) {
	mode, err := heatmap.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.apply(w, func(c *heatmap.Component) error { return c.SetMode(mode) })
}

// HandleHighlight sets or clears the highlighted ZIP.
func (s *ServerContext) HandleHighlight(w http.ResponseWriter, r *http.Request) {
	zip := r.URL.Query().Get("zip")
	s.apply(w, func(c *heatmap.Component) error { return c.SetHighlight(zip) })
}

// HandleZoom applies one of the zoom controls.
func (s *ServerContext) HandleZoom(w http.ResponseWriter, r *http.Request) {
	var op func(c *heatmap.Component) error
	switch r.PathValue("action") {
	case "in":
		op = (*heatmap.Component).ZoomIn
	case "out":
		op = (*heatmap.Component).ZoomOut
	case "reset":
		op = (*heatmap.Component).ResetZoom
	default:
		http.NotFound(w, r)
		return
	}
	s.apply(w, op)
}

// HandleHover hovers a drawn ZIP at a pointer position. ZIPs outside the
// county map are answered with 404.
func (s *ServerContext) HandleHover(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zip := q.Get("zip")
	if strings.TrimSpace(zip) == "" {
		writeError(w, http.StatusBadRequest, errors.New("zip is required"))
		return
	}
	x, y, err := pointer(q.Get("x"), q.Get("y"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c := s.Component()
	if err := c.Hover(zip, x, y); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, heatmap.ErrUnknownRegion) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	s.writeState(w, c)
}

// HandlePointer hovers whatever region is under a canvas point.
func (s *ServerContext) HandlePointer(w http.ResponseWriter, r *http.Request) {
	x, y, err := pointer(r.URL.Query().Get("x"), r.URL.Query().Get("y"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.apply(w, func(c *heatmap.Component) error {
		_, err := c.PointerAt(x, y)
		return err
	})
}

// HandleLeave ends the hover.
func (s *ServerContext) HandleLeave(w http.ResponseWriter, _ *http.Request) {
	s.apply(w, (*heatmap.Component).Leave)
}

// HandleRemount replaces the component, clearing a terminal error.
func (s *ServerContext) HandleRemount(w http.ResponseWriter, _ *http.Request) {
	s.writeState(w, s.Remount())
}

// HandleHealth reports liveness.
func (s *ServerContext) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleReady reports whether the county regions are joined.
func (s *ServerContext) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.Component().CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *ServerContext) apply(w http.ResponseWriter, op func(c *heatmap.Component) error) {
	c := s.Component()
	if err := op(c); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeState(w, c)
}

func (s *ServerContext) writeState(w http.ResponseWriter, c *heatmap.Component) {
	st, err := c.Status()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func pointer(xs, ys string) (float64, float64, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x %q", xs)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y %q", ys)
	}
	return x, y, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}
