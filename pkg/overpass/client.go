// Package overpass is a minimal client for the OpenStreetMap Overpass API,
// used as the fallback line source when authoritative geometry is too
// sparse. The public endpoints throttle per caller, so the client enforces
// a minimum inter-request delay and rotates to an alternate endpoint when a
// fetch fails.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Way is one OSM way: its name tag and geometry.
type Way struct {
	Name string
	Line *geom.LineString
}

// BBox is a south,west,north,east bounding box as Overpass expects it.
type BBox struct {
	South, West, North, East float64
}

func (b BBox) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.South, b.West, b.North, b.East)
}

// Around builds a bounding box centered on a point with the given half-width
// in degrees.
func Around(lat, lon, radiusDeg float64) BBox {
	return BBox{South: lat - radiusDeg, West: lon - radiusDeg, North: lat + radiusDeg, East: lon + radiusDeg}
}

// Client queries Overpass for tagged line features.
type Client interface {
	// WaysByName fetches ways of the given feature class whose name matches
	// the regex-escaped name inside the bounding box.
	WaysByName(ctx context.Context, class, name string, bbox BBox) ([]Way, error)
	// NamedWays fetches all named ways of the given feature class inside the
	// bounding box. Used by corridor rescue, where name mismatches across
	// sources make filtering by name useless.
	NamedWays(ctx context.Context, class string, bbox BBox) ([]Way, error)
}

// Option configures the client.
type Option func(*client)

// WithEndpoints overrides the endpoint rotation list.
func WithEndpoints(endpoints ...string) Option {
	return func(c *client) { c.endpoints = endpoints }
}

// WithMinDelay sets the minimum delay between requests.
func WithMinDelay(d time.Duration) Option {
	return func(c *client) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

type client struct {
	endpoints []string
	limiter   *rate.Limiter
	http      *http.Client
}

// NewClient creates an Overpass client with the public endpoint rotation and
// a 12-second minimum inter-request delay.
func NewClient(opts ...Option) Client {
	c := &client{
		endpoints: []string{
			"https://overpass-api.de/api/interpreter",
			"https://overpass.kumi.systems/api/interpreter",
		},
		limiter: rate.NewLimiter(rate.Every(12*time.Second), 1),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type overpassResponse struct {
	Elements []struct {
		Type     string            `json:"type"`
		Tags     map[string]string `json:"tags"`
		Geometry []struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"geometry"`
	} `json:"elements"`
}

// WaysByName implements Client. The name is matched as a literal: regex
// metacharacters are escaped before interpolation into the ~ filter.
func (c *client) WaysByName(ctx context.Context, class, name string, bbox BBox) ([]Way, error) {
	query := fmt.Sprintf(`[out:json][timeout:60];
(
  way["name"~%q][%q](%s);
);
out geom;`, regexp.QuoteMeta(name), class, bbox)
	return c.run(ctx, query)
}

// NamedWays implements Client.
func (c *client) NamedWays(ctx context.Context, class string, bbox BBox) ([]Way, error) {
	query := fmt.Sprintf(`[out:json][timeout:60];
(
  way["name"][%q](%s);
);
out geom;`, class, bbox)
	return c.run(ctx, query)
}

// run executes a query, trying each endpoint in turn. One alternate attempt
// follows a transient failure before the fetch is reported failed.
func (c *client) run(ctx context.Context, query string) ([]Way, error) {
	var lastErr error
	for _, endpoint := range c.endpoints {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "overpass: rate limiter wait")
		}
		ways, err := c.fetch(ctx, endpoint, query)
		if err == nil {
			return ways, nil
		}
		lastErr = err
		zap.L().Warn("overpass endpoint failed, rotating",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
	}
	return nil, eris.Wrap(lastErr, "overpass: all endpoints failed")
}

func (c *client) fetch(ctx context.Context, endpoint, query string) ([]Way, error) {
	body := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("overpass: status %d from %s", resp.StatusCode, endpoint)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read body")
	}
	var parsed overpassResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, eris.Wrap(err, "overpass: parse response")
	}

	var ways []Way
	for _, el := range parsed.Elements {
		if el.Type != "way" || len(el.Geometry) < 2 {
			continue
		}
		flat := make([]float64, 0, len(el.Geometry)*2)
		for _, pt := range el.Geometry {
			flat = append(flat, pt.Lon, pt.Lat)
		}
		ways = append(ways, Way{
			Name: el.Tags["name"],
			Line: geom.NewLineStringFlat(geom.XY, flat),
		})
	}
	return ways, nil
}
