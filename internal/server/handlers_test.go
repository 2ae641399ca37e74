package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/woozymasta/zipheat/internal/config"
	"github.com/woozymasta/zipheat/internal/geo"
	"github.com/woozymasta/zipheat/internal/heatmap"
	"github.com/woozymasta/zipheat/internal/observability"
	"github.com/woozymasta/zipheat/internal/render"
	"github.com/woozymasta/zipheat/internal/source"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geometryJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"ZCTA5CE10":"90001"},"geometry":{"type":"Polygon","coordinates":[[[-118.3,33.9],[-118.2,33.9],[-118.2,34.0],[-118.3,34.0],[-118.3,33.9]]]}},
{"type":"Feature","properties":{"ZCTA5CE10":"90002"},"geometry":{"type":"Polygon","coordinates":[[[-118.2,33.9],[-118.1,33.9],[-118.1,34.0],[-118.2,34.0],[-118.2,33.9]]]}},
{"type":"Feature","properties":{"ZCTA5CE10":"93501"},"geometry":{"type":"Polygon","coordinates":[[[-118.1,33.9],[-118.0,33.9],[-118.0,34.0],[-118.1,34.0],[-118.1,33.9]]]}}
]}`

func upstream(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/geo.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(geometryJSON))
	})
	mux.HandleFunc("/members.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[90001, "90002"]`))
	})
	mux.HandleFunc("/ratings/map", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ratingsData":[{"area":"90001","rating":4.5},{"area":"90002","rating":2}]}`))
	})
	mux.HandleFunc("/heatmap/zipcode", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"zipCode":"90001","violation":12}]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) (*ServerContext, http.Handler) {
	t.Helper()

	up := upstream(t)
	cfg := config.Default()
	cfg.Sources.Geometry = up.URL + "/geo.json"
	cfg.Sources.Membership = up.URL + "/members.json"
	cfg.Sources.APIBase = up.URL

	metrics := observability.NewMetricsForTesting()
	client := source.NewClient(cfg.Locations(), 5*time.Second)
	mount := func() *heatmap.Component {
		c := heatmap.New(client, heatmap.Options{
			Renderer: cfg.Renderer(),
			Mode:     cfg.InitialMode(),
			Metrics:  metrics,
		})
		c.Mount()
		return c
	}

	s := NewServerContext(cfg, metrics, mount)
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Component().WaitReady(ctx, 5*time.Millisecond))

	return s, s.Routes()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func state(t *testing.T, rec *httptest.ResponseRecorder) heatmap.Status {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st heatmap.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func TestHandleHeatmap_SVG(t *testing.T) {
	s, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/heatmap.svg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, render.SVGMime, rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "<svg")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.Renders.WithLabelValues("svg")))
}

func TestHandleHeatmap_PNG(t *testing.T) {
	s, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/heatmap.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, render.PNGMime, rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, s.Config.Canvas.Width, img.Bounds().Dx())
	assert.Equal(t, s.Config.Canvas.Height, img.Bounds().Dy())
}

func TestHandleHeatmap_UnknownFormat(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/heatmap.gif")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRegions(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/regions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc geo.GeoJSONFeatureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "90001", fc.Features[0].Properties[geo.DefaultZipProperty])
	assert.Equal(t, "90002", fc.Features[1].Properties[geo.DefaultZipProperty])
}

func TestHandleMetricMap(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Mode   string             `json:"mode"`
		Loaded bool               `json:"loaded"`
		Values map[string]float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rating", body.Mode)
	assert.True(t, body.Loaded)
	assert.Equal(t, map[string]float64{"90001": 4.5, "90002": 2}, body.Values)
}

func TestHandleMode(t *testing.T) {
	s, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/mode?mode=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	st := state(t, do(t, h, http.MethodPost, "/api/mode?mode=violation"))
	assert.Equal(t, heatmap.ModeViolation, st.Mode)

	require.Eventually(t, func() bool {
		m, _, ok, err := s.Component().Metrics()
		return err == nil && ok && m["90001"] == 12
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHandleZoom(t *testing.T) {
	_, h := newTestServer(t)

	st := state(t, do(t, h, http.MethodPost, "/api/zoom/in"))
	assert.InDelta(t, 1.2, st.Target.K, 1e-9)

	st = state(t, do(t, h, http.MethodPost, "/api/zoom/reset"))
	assert.InDelta(t, 1.0, st.Target.K, 1e-9)

	st = state(t, do(t, h, http.MethodPost, "/api/zoom/out"))
	assert.InDelta(t, 1.0, st.Target.K, 1e-9, "scale never drops below 1")

	rec := do(t, h, http.MethodPost, "/api/zoom/sideways")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHighlightAndHover(t *testing.T) {
	_, h := newTestServer(t)

	st := state(t, do(t, h, http.MethodPost, "/api/highlight?zip=90001"))
	assert.Equal(t, "90001", st.HighlightZip)

	rec := do(t, h, http.MethodPost, "/api/hover?x=10&y=10")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/hover?zip=90002&x=abc&y=10")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/hover?zip=93501&x=100&y=120")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	st = state(t, do(t, h, http.MethodPost, "/api/hover?zip=90002&x=100&y=120"))
	assert.Equal(t, "90002", st.HoverZip)

	st = state(t, do(t, h, http.MethodPost, "/api/leave"))
	assert.Empty(t, st.HoverZip)
	assert.Equal(t, "90001", st.HighlightZip)
}

func TestHandlePointer(t *testing.T) {
	_, h := newTestServer(t)

	// Two adjacent squares fill the canvas width; the left one is 90001.
	st := state(t, do(t, h, http.MethodPost, "/api/pointer?x=200&y=275"))
	assert.Equal(t, "90001", st.HoverZip)

	st = state(t, do(t, h, http.MethodPost, "/api/pointer?x=1&y=1"))
	assert.Empty(t, st.HoverZip)
}

func TestHandleRemount(t *testing.T) {
	s, h := newTestServer(t)

	before := s.Component()
	_ = do(t, h, http.MethodPost, "/api/zoom/in")

	st := state(t, do(t, h, http.MethodPost, "/api/remount"))
	assert.InDelta(t, 1.0, st.Target.K, 1e-9)
	assert.NotSame(t, before, s.Component())

	_, err := before.Status()
	assert.ErrorIs(t, err, heatmap.ErrClosed)
}

func TestHandleHealthAndReady(t *testing.T) {
	_, h := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz").Code)
}

func TestHandleReady_NotReady(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.Geometry = "/does/not/exist.json"
	metrics := observability.NewMetricsForTesting()

	s := NewServerContext(cfg, metrics, func() *heatmap.Component {
		c := heatmap.New(source.NewClient(cfg.Locations(), time.Second), heatmap.Options{Metrics: metrics})
		c.Mount()
		return c
	})
	t.Cleanup(s.Close)

	require.Eventually(t, func() bool {
		return do(t, s.Routes(), http.MethodGet, "/readyz").Code == http.StatusServiceUnavailable
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHandleIndex(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/heatmap.svg")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	cached := httptest.NewRecorder()
	h.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)
}

func TestRequestLogger_KeepsStatus(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := do(t, h, http.MethodGet, "/pot")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
