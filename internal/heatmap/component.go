package heatmap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/woozymasta/zipheat/internal/geo"
	"github.com/woozymasta/zipheat/internal/observability"
	"github.com/woozymasta/zipheat/internal/source"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Source provides the four datasets of the map.
type Source interface {
	Geometry(ctx context.Context) (geo.GeoJSONFeatureCollection, error)
	Membership(ctx context.Context) ([]interface{}, error)
	Ratings(ctx context.Context) ([]source.RatingRecord, error)
	Violations(ctx context.Context) ([]source.ViolationRecord, error)
}

// Options configures a Component. Zero fields take defaults.
type Options struct {
	Renderer    Renderer
	ZipProperty string
	Mode        Mode
	Clock       clockwork.Clock
	Metrics     *observability.Metrics
}

// Component is one mounted heatmap. All state is owned by a single event loop
// goroutine; user operations and fetch completions run there one at a time.
type Component struct {
	src     Source
	opts    Options
	clock   clockwork.Clock
	metrics *observability.Metrics

	// render stages, replaceable in tests
	project func(geo.RegionCollection) Layout
	draw    func(Layout, MetricMap, ViewState, time.Time) *Scene

	events    chan func(*state)
	closed    chan struct{}
	mountOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	ctx       context.Context

	st *state
}

type versions struct {
	regions, members int
}

type sceneKey struct {
	data      versions
	metrics   int
	view      int
	transform Transform
}

type state struct {
	regions    geo.RegionCollection
	members    geo.MembershipSet
	dataVer    versions
	metrics    MetricMap
	metricMode Mode
	metricsVer int
	metricsOK  bool
	requestSeq uint64

	view    ViewState
	viewVer int

	err *LoadError

	filtered memo[versions, filterResult]
	layout   memo[versions, Layout]
	scene    memo[sceneKey, *Scene]
}

type filterResult struct {
	regions geo.RegionCollection
	ok      bool
}

// New creates a component. It does nothing until Mount.
func New(src Source, opts Options) *Component {
	if opts.Renderer.Width <= 0 || opts.Renderer.Height <= 0 {
		opts.Renderer = DefaultRenderer
	}
	if opts.ZipProperty == "" {
		opts.ZipProperty = geo.DefaultZipProperty
	}
	if opts.Mode == "" {
		opts.Mode = ModeRating
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Component{
		src:     src,
		opts:    opts,
		clock:   opts.Clock,
		metrics: opts.Metrics,
		project: opts.Renderer.Project,
		draw:    opts.Renderer.Draw,
		events:  make(chan func(*state)),
		closed:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		st:      &state{view: NewViewState(opts.Mode)},
	}
}

// Mount starts the event loop and the geometry, membership and metric loads.
// Calls after the first are no-ops.
func (c *Component) Mount() {
	c.mountOnce.Do(c.mount)
}

func (c *Component) mount() {
	go c.run()

	log.Debug().
		Str("mode", string(c.opts.Mode)).
		Int("width", c.opts.Renderer.Width).
		Int("height", c.opts.Renderer.Height).
		Msg("Mounting heatmap")

	go c.loadGeometry()
	go c.loadMembership()
	_ = c.do(func(s *state) { c.requestMetrics(s) })
}

// Close stops the loop and cancels in-flight fetches. It is safe to call twice.
func (c *Component) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.closed)
	})
}

func (c *Component) run() {
	for {
		select {
		case fn := <-c.events:
			fn(c.st)
		case <-c.closed:
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (c *Component) do(fn func(*state)) error {
	done := make(chan struct{})
	select {
	case c.events <- func(s *state) { fn(s); close(done) }:
	case <-c.closed:
		return ErrClosed
	}

	select {
	case <-done:
	case <-c.closed:
		return ErrClosed
	}

	// Close may have raced with fn; report it consistently.
	select {
	case <-c.closed:
		return ErrClosed
	default:
		return nil
	}
}

// post queues fn on the loop without waiting.
func (c *Component) post(fn func(*state)) {
	select {
	case c.events <- fn:
	case <-c.closed:
	}
}

func (c *Component) fail(s *state, e *LoadError) {
	if s.err != nil {
		return
	}
	s.err = e
	log.Error().Err(e.Err).Str("stage", string(e.Stage)).Msg("Heatmap entered error state")
}

func (c *Component) loadGeometry() {
	start := c.clock.Now()
	fc, err := c.src.Geometry(c.ctx)
	var regions geo.RegionCollection
	if err == nil {
		regions, err = geo.RegionsFromFeatures(fc, c.opts.ZipProperty)
	}
	c.observeFetch(StageGeometry, start, err)

	c.post(func(s *state) {
		if err != nil {
			c.fail(s, &LoadError{Stage: StageGeometry, Err: err})
			return
		}
		s.regions = regions
		s.dataVer.regions++
		log.Info().Int("regions", len(regions)).Msg("Geometry loaded")
	})
}

func (c *Component) loadMembership() {
	start := c.clock.Now()
	values, err := c.src.Membership(c.ctx)
	c.observeFetch(StageMembership, start, err)

	c.post(func(s *state) {
		if err != nil {
			c.fail(s, &LoadError{Stage: StageMembership, Err: err})
			return
		}
		s.members = geo.NewMembershipSet(values)
		s.dataVer.members++
		log.Info().Int("zipcodes", len(s.members)).Msg("County membership loaded")
	})
}

// requestMetrics issues a fetch tagged with the live mode and a new sequence
// number. Must run on the loop.
func (c *Component) requestMetrics(s *state) {
	s.requestSeq++
	seq, mode := s.requestSeq, s.view.Mode

	go func() {
		start := c.clock.Now()
		m, err := c.fetchMetrics(mode)
		c.observeFetch(StageMetrics, start, err)

		c.post(func(s *state) {
			if seq != s.requestSeq || mode != s.view.Mode {
				c.metrics.StaleMetrics.Inc()
				log.Debug().
					Str("mode", string(mode)).
					Str("live_mode", string(s.view.Mode)).
					Uint64("seq", seq).
					Msg("Discarding stale metric response")
				return
			}
			if err != nil {
				c.fail(s, &LoadError{Stage: StageMetrics, Mode: mode, Err: err})
				return
			}
			s.metrics, s.metricMode, s.metricsOK = m, mode, true
			s.metricsVer++
			c.metrics.MetricEntries.Set(float64(len(m)))
			log.Info().Str("mode", string(mode)).Int("entries", len(m)).Msg("Metric data loaded")
		})
	}()
}

func (c *Component) fetchMetrics(mode Mode) (MetricMap, error) {
	if mode == ModeViolation {
		rows, err := c.src.Violations(c.ctx)
		if err != nil {
			return nil, err
		}
		return ViolationsToMetricMap(rows), nil
	}

	rows, err := c.src.Ratings(c.ctx)
	if err != nil {
		return nil, err
	}
	return RatingsToMetricMap(rows), nil
}

func (c *Component) observeFetch(stage Stage, start time.Time, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	c.metrics.FetchDuration.WithLabelValues(string(stage)).Observe(c.clock.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchErrors.WithLabelValues(string(stage)).Inc()
	}
}

func (c *Component) filter(s *state) filterResult {
	return s.filtered.get(s.dataVer, func() filterResult {
		rc, ok := geo.Filter(s.regions, s.members)
		if ok {
			c.metrics.RegionsInScope.Set(float64(len(rc)))
			log.Debug().Int("regions", len(rc)).Int("of", len(s.regions)).Msg("Regions filtered")
		}
		return filterResult{regions: rc, ok: ok}
	})
}

func (c *Component) layoutOf(s *state) (Layout, bool) {
	f := c.filter(s)
	if !f.ok {
		return Layout{}, false
	}
	return s.layout.get(s.dataVer, func() Layout {
		return c.project(f.regions)
	}), true
}

// liveMetrics returns the metric map for the live mode, or an empty map while
// the fetch for the live mode is still pending.
func (s *state) liveMetrics() MetricMap {
	if !s.metricsOK || s.metricMode != s.view.Mode {
		return MetricMap{}
	}
	return s.metrics
}

func (c *Component) scene(s *state) *Scene {
	r := c.opts.Renderer
	if s.err != nil {
		return ErrorScene(r.Width, r.Height, s.err)
	}

	var sc *Scene
	err := c.guard(func() {
		layout, ok := c.layoutOf(s)
		if !ok {
			sc = &Scene{Width: r.Width, Height: r.Height, Mode: s.view.Mode, Loading: true}
			return
		}

		now := c.clock.Now()
		key := sceneKey{data: s.dataVer, metrics: s.metricsVer, view: s.viewVer, transform: s.view.Transform(now)}
		sc = s.scene.get(key, func() *Scene {
			return c.draw(layout, s.liveMetrics(), s.view, now)
		})
	})
	if err != nil {
		c.renderFailed(s, err)
		return ErrorScene(r.Width, r.Height, s.err)
	}
	return sc
}

// guard runs a render stage, turning a panic into an error so the loop survives.
func (c *Component) guard(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	fn()
	return nil
}

func (c *Component) renderFailed(s *state, err error) {
	c.metrics.RenderErrors.Inc()
	c.fail(s, &LoadError{Stage: StageRender, Err: err})
}

// Scene renders the current state.
func (c *Component) Scene() (*Scene, error) {
	var sc *Scene
	err := c.do(func(s *state) { sc = c.scene(s) })
	return sc, err
}

func (c *Component) mutateView(fn func(s *state)) error {
	return c.do(func(s *state) {
		fn(s)
		s.viewVer++
	})
}

// SetMode switches the displayed metric and reloads it. Setting the live mode again is a no-op.
func (c *Component) SetMode(m Mode) error {
	return c.do(func(s *state) {
		if s.view.Mode == m {
			return
		}
		s.view.Mode = m
		s.viewVer++
		log.Debug().Str("mode", string(m)).Msg("Mode changed")
		c.requestMetrics(s)
	})
}

// SetHighlight sets the persistently emphasized ZIP. An empty zip clears it.
func (c *Component) SetHighlight(zip string) error {
	return c.mutateView(func(s *state) {
		s.view.HighlightZip = geo.CanonicalZip(zip)
	})
}

// ZoomIn scales the view up one step.
func (c *Component) ZoomIn() error {
	return c.mutateView(func(s *state) {
		s.view.ScaleBy(ZoomInStep, c.opts.Renderer.Center(), c.clock.Now())
	})
}

// ZoomOut scales the view down one step.
func (c *Component) ZoomOut() error {
	return c.mutateView(func(s *state) {
		s.view.ScaleBy(ZoomOutStep, c.opts.Renderer.Center(), c.clock.Now())
	})
}

// ResetZoom returns to the identity transform.
func (c *Component) ResetZoom() error {
	return c.mutateView(func(s *state) {
		s.view.ResetZoom(c.clock.Now())
	})
}

// ErrUnknownRegion is returned by Hover for a ZIP that is not drawn.
var ErrUnknownRegion = errors.New("zip is not on the map")

// Hover marks zip as under the pointer at (x, y). Only drawn regions can be
// hovered.
func (c *Component) Hover(zip string, x, y float64) error {
	zip = geo.CanonicalZip(zip)
	var found bool
	err := c.do(func(s *state) {
		f := c.filter(s)
		if !f.ok || s.err != nil {
			return
		}
		for _, r := range f.regions {
			if r.Zip == zip {
				found = true
				break
			}
		}
		if found {
			s.view.Hover = &Hover{Zip: zip, Pointer: geo.Point{X: x, Y: y}}
			s.viewVer++
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, zip)
	}
	return nil
}

// MovePointer moves the tooltip while a region is hovered.
func (c *Component) MovePointer(x, y float64) error {
	return c.mutateView(func(s *state) {
		if s.view.Hover != nil {
			h := *s.view.Hover
			h.Pointer = geo.Point{X: x, Y: y}
			s.view.Hover = &h
		}
	})
}

// Leave ends the hover and hides the tooltip.
func (c *Component) Leave() error {
	return c.mutateView(func(s *state) {
		s.view.Hover = nil
	})
}

// PointerAt hit-tests a canvas point and hovers the region under it,
// or leaves when the point misses every region. It returns the hovered ZIP.
func (c *Component) PointerAt(x, y float64) (string, error) {
	var zip string
	err := c.mutateView(func(s *state) {
		var (
			layout Layout
			ok     bool
		)
		if perr := c.guard(func() { layout, ok = c.layoutOf(s) }); perr != nil {
			c.renderFailed(s, perr)
		}
		if !ok || s.err != nil {
			s.view.Hover = nil
			return
		}
		pt := geo.Point{X: x, Y: y}
		hit, found := layout.RegionAt(pt, s.view.Transform(c.clock.Now()))
		if !found {
			s.view.Hover = nil
			return
		}
		zip = hit
		s.view.Hover = &Hover{Zip: hit, Pointer: pt}
	})
	return zip, err
}

// Regions returns the filtered collection and whether the join has run.
func (c *Component) Regions() (geo.RegionCollection, bool, error) {
	var f filterResult
	err := c.do(func(s *state) { f = c.filter(s) })
	return f.regions, f.ok, err
}

// Metrics returns a copy of the metric map of the live mode and whether it has loaded.
func (c *Component) Metrics() (MetricMap, Mode, bool, error) {
	var (
		out  MetricMap
		mode Mode
		ok   bool
	)
	err := c.do(func(s *state) {
		mode = s.view.Mode
		ok = s.metricsOK && s.metricMode == s.view.Mode
		live := s.liveMetrics()
		out = make(MetricMap, len(live))
		for k, v := range live {
			out[k] = v
		}
	})
	return out, mode, ok, err
}

// Status is a read-only summary of the component.
type Status struct {
	Mode          Mode      `json:"mode"`
	HighlightZip  string    `json:"highlight_zip,omitempty"`
	HoverZip      string    `json:"hover_zip,omitempty"`
	Transform     Transform `json:"transform"`
	Target        Transform `json:"target"`
	Animating     bool      `json:"animating"`
	GeometryReady bool      `json:"geometry_ready"`
	MembersReady  bool      `json:"membership_ready"`
	MetricsReady  bool      `json:"metrics_ready"`
	Regions       int       `json:"regions"`
	Error         string    `json:"error,omitempty"`
}

// Status reports the current view and load state.
func (c *Component) Status() (Status, error) {
	var st Status
	err := c.do(func(s *state) {
		now := c.clock.Now()
		st = Status{
			Mode:          s.view.Mode,
			HighlightZip:  s.view.HighlightZip,
			Transform:     s.view.Transform(now),
			Target:        s.view.Target(),
			Animating:     s.view.Animating(now),
			GeometryReady: s.regions != nil,
			MembersReady:  len(s.members) > 0,
			MetricsReady:  s.metricsOK && s.metricMode == s.view.Mode,
		}
		if s.view.Hover != nil {
			st.HoverZip = s.view.Hover.Zip
		}
		if f := c.filter(s); f.ok {
			st.Regions = len(f.regions)
		}
		if s.err != nil {
			st.Error = s.err.Error()
		}
	})
	return st, err
}

// ErrNotReady is reported by CheckReadiness until the join has run.
var ErrNotReady = errors.New("geometry or membership not loaded")

// CheckReadiness returns nil once the filtered collection is available and no
// terminal error occurred.
func (c *Component) CheckReadiness(ctx context.Context) error {
	var err error
	done := make(chan error, 1)
	go func() {
		done <- c.do(func(s *state) {
			switch {
			case s.err != nil:
				err = s.err
			case !c.filter(s).ok:
				err = ErrNotReady
			}
		})
	}()

	select {
	case e := <-done:
		if e != nil {
			return e
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitReady blocks until the join and the live mode's metrics are available,
// the component fails, or ctx ends. Polling uses wall time, not the
// component clock.
func (c *Component) WaitReady(ctx context.Context, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		st, err := c.Status()
		if err != nil {
			return err
		}
		if st.Error != "" {
			return errors.New(st.Error)
		}
		if st.GeometryReady && st.MembersReady && st.MetricsReady {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
