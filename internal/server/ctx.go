package server

import (
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/woozymasta/zipheat/assets"
	"github.com/woozymasta/zipheat/internal/config"
	"github.com/woozymasta/zipheat/internal/heatmap"
	"github.com/woozymasta/zipheat/internal/observability"

	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

// MountFunc creates and mounts a fresh heatmap component.
type MountFunc func() *heatmap.Component

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config    *config.Config
	Metrics   *observability.Metrics
	IndexHTML []byte

	indexETag string
	mount     MountFunc
	mu        sync.RWMutex
	component *heatmap.Component
}

// NewServerContext mounts the first component and prepares the index page.
func NewServerContext(cfg *config.Config, metrics *observability.Metrics, mount MountFunc) *ServerContext {
	log.Info().
		Str("geometry", cfg.Sources.Geometry).
		Str("membership", cfg.Sources.Membership).
		Str("mode", cfg.Mode).
		Msg("Initializing server context")

	index := minifyIndex(assets.Index)

	return &ServerContext{
		Config:    cfg,
		Metrics:   metrics,
		IndexHTML: index,
		indexETag: fmt.Sprintf(`"%x-%08x"`, len(index), crc32.ChecksumIEEE(index)),
		mount:     mount,
		component: mount(),
	}
}

// Component returns the mounted component.
func (s *ServerContext) Component() *heatmap.Component {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.component
}

// Remount replaces the component with a fresh one, dropping any error state.
func (s *ServerContext) Remount() *heatmap.Component {
	next := s.mount()

	s.mu.Lock()
	prev := s.component
	s.component = next
	s.mu.Unlock()

	prev.Close()
	log.Info().Msg("Heatmap remounted")
	return next
}

// Close stops the mounted component.
func (s *ServerContext) Close() {
	s.Component().Close()
}

func minifyIndex(raw []byte) []byte {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("application/javascript", js.Minify)

	out, err := m.Bytes("text/html", raw)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to minify index page, serving as is")
		return raw
	}
	return out
}
