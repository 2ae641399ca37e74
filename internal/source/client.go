// Package source fetches the heatmap's four upstream datasets.
package source

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/woozymasta/zipheat/internal/geo"

	"github.com/rs/zerolog/log"
)

// Locations names where each dataset lives. Geometry and membership are
// static resources and may be local paths; the metric endpoints are URLs.
type Locations struct {
	Geometry   string
	Membership string
	Ratings    string
	Violations string
}

// Client fetches datasets over HTTP or from disk.
type Client struct {
	httpClient *http.Client
	loc        Locations
}

// NewClient creates a client. A zero timeout means requests never time out.
func NewClient(loc Locations, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
			},
			Timeout: timeout,
		},
		loc: loc,
	}
}

// NewClientWithHTTP creates a client around an existing http.Client.
func NewClientWithHTTP(loc Locations, hc *http.Client) *Client {
	return &Client{httpClient: hc, loc: loc}
}

// Geometry downloads the statewide ZIP FeatureCollection.
func (c *Client) Geometry(ctx context.Context) (geo.GeoJSONFeatureCollection, error) {
	var fc geo.GeoJSONFeatureCollection
	if err := c.decode(ctx, c.loc.Geometry, &fc); err != nil {
		return geo.GeoJSONFeatureCollection{}, err
	}
	return fc, nil
}

// Membership downloads the county ZIP whitelist. Values are returned as decoded
// so numbers and strings are canonicalized by the caller.
func (c *Client) Membership(ctx context.Context) ([]interface{}, error) {
	var values []interface{}
	if err := c.decode(ctx, c.loc.Membership, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *Client) decode(ctx context.Context, location string, v interface{}) error {
	body, err := c.open(ctx, location)
	if err != nil {
		return err
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = body.Close() }()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", location, err)
	}
	return nil
}

// open returns the body of a remote URL or a local file.
func (c *Client) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if location == "" {
		return nil, fmt.Errorf("no location configured")
	}

	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		log.Debug().Str("path", location).Msg("Reading local resource")
		return os.Open(location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", location, resp.StatusCode)
	}

	log.Trace().Str("url", location).Msg("Fetched remote resource")
	return resp.Body, nil
}
