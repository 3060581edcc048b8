// Package arcgis is a client for ArcGIS REST feature services, covering the
// Toronto layers the polygon builder needs: road centrelines, waterlines,
// zoning parcels, and property parcels. Queries combine an attribute WHERE
// clause with an optional spatial envelope; geometry comes back as
// independent paths or rings, never flattened.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/perimeter-cli/internal/resilience"
)

// Layer attribute fields used in WHERE clauses.
const (
	FieldRoadName      = "LINEAR_NAME_FULL"
	FieldWaterlineName = "WATERLINE_NAME"
	FieldExceptionNo   = "ZN_EXCPTN_NO"
	FieldZoneType      = "ZN_ZONE"
)

// Envelope is a geographic bounding box in WGS84.
type Envelope struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Around builds an envelope centered on a point with the given half-width in
// degrees.
func Around(lat, lon, radiusDeg float64) Envelope {
	return Envelope{
		MinLon: lon - radiusDeg,
		MinLat: lat - radiusDeg,
		MaxLon: lon + radiusDeg,
		MaxLat: lat + radiusDeg,
	}
}

func (e Envelope) param() string {
	return fmt.Sprintf("%f,%f,%f,%f", e.MinLon, e.MinLat, e.MaxLon, e.MaxLat)
}

// LineFeature is one polyline feature: attributes plus its independent paths.
type LineFeature struct {
	Name  string
	Paths []*geom.LineString
}

// PolygonFeature is one polygon feature: attributes plus exterior/hole rings.
// Rings[0] is the exterior; the rest are holes.
type PolygonFeature struct {
	Attributes map[string]any
	Rings      [][]geom.Coord
}

// Client queries the ArcGIS feature services.
type Client interface {
	// RoadCentrelines fetches road centreline paths matching a name.
	RoadCentrelines(ctx context.Context, name string, env Envelope) ([]LineFeature, error)
	// RoadNamesLike returns distinct road names containing the fragment.
	RoadNamesLike(ctx context.Context, fragment string, env Envelope) ([]string, error)
	// RoadsInEnvelope fetches all road centrelines inside the envelope.
	RoadsInEnvelope(ctx context.Context, env Envelope) ([]LineFeature, error)
	// Waterlines fetches waterline paths matching a name.
	Waterlines(ctx context.Context, name string, env Envelope) ([]LineFeature, error)
	// ZoningParcels fetches zoning parcels carrying an exception number,
	// optionally filtered by zone type.
	ZoningParcels(ctx context.Context, exceptionNo int, zoneType string, env Envelope) ([]PolygonFeature, error)
	// PropertyParcels fetches property parcels fronting a named road.
	PropertyParcels(ctx context.Context, roadName string, env Envelope) ([]PolygonFeature, error)
	// PropertyParcelsAll fetches every property parcel inside the envelope.
	PropertyParcelsAll(ctx context.Context, env Envelope) ([]PolygonFeature, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the service base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

// WithLayerPaths overrides the per-layer query paths.
func WithLayerPaths(road, water, zoning, property string) Option {
	return func(c *client) {
		c.roadPath = road
		c.waterPath = water
		c.zoningPath = zoning
		c.propertyPath = property
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *client) { c.http.Timeout = d }
}

type client struct {
	baseURL      string
	roadPath     string
	waterPath    string
	zoningPath   string
	propertyPath string
	http         *http.Client
}

// NewClient creates an ArcGIS client with Toronto defaults.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:      "https://gis.toronto.ca/arcgis/rest/services",
		roadPath:     "/cot_geospatial2/FeatureServer/2/query",
		waterPath:    "/cot_geospatial3/FeatureServer/15/query",
		zoningPath:   "/cot_geospatial11/FeatureServer/3/query",
		propertyPath: "/cot_geospatial27/FeatureServer/36/query",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rawFeature mirrors the ArcGIS JSON feature envelope.
type rawFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   struct {
		Paths [][][]float64 `json:"paths"`
		Rings [][][]float64 `json:"rings"`
	} `json:"geometry"`
}

type queryResponse struct {
	Features []rawFeature `json:"features"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// query runs a WHERE + optional envelope query against one layer path.
func (c *client) query(ctx context.Context, path, where, outFields string, env *Envelope, withGeometry bool) ([]rawFeature, error) {
	params := url.Values{
		"where":          {where},
		"outFields":      {outFields},
		"returnGeometry": {"false"},
		"f":              {"json"},
	}
	if withGeometry {
		params.Set("returnGeometry", "true")
		params.Set("outSR", "4326")
	}
	if env != nil {
		params.Set("geometry", env.param())
		params.Set("geometryType", "esriGeometryEnvelope")
		params.Set("inSR", "4326")
		params.Set("spatialRel", "esriSpatialRelIntersects")
	}

	reqURL := c.baseURL + path + "?" + params.Encode()

	return resilience.Retry(ctx, resilience.Policy{Label: "arcgis query"},
		func(ctx context.Context) ([]rawFeature, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "arcgis: build request")
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return nil, eris.Wrap(err, "arcgis: request")
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusOK {
				return nil, &resilience.StatusError{Code: resp.StatusCode, URL: reqURL}
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, eris.Wrap(err, "arcgis: read body")
			}
			var qr queryResponse
			if err := json.Unmarshal(body, &qr); err != nil {
				return nil, eris.Wrap(err, "arcgis: parse response")
			}
			if qr.Error != nil {
				return nil, eris.Errorf("arcgis: service error [%d] %s", qr.Error.Code, qr.Error.Message)
			}
			return qr.Features, nil
		})
}

// quote escapes a value for use inside an ArcGIS WHERE string literal.
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func lineFeatures(features []rawFeature, nameField string) []LineFeature {
	out := make([]LineFeature, 0, len(features))
	for _, f := range features {
		lf := LineFeature{}
		if n, ok := f.Attributes[nameField].(string); ok {
			lf.Name = n
		}
		for _, path := range f.Geometry.Paths {
			if len(path) < 2 {
				continue
			}
			flat := make([]float64, 0, len(path)*2)
			for _, c := range path {
				if len(c) >= 2 {
					flat = append(flat, c[0], c[1])
				}
			}
			lf.Paths = append(lf.Paths, geom.NewLineStringFlat(geom.XY, flat))
		}
		out = append(out, lf)
	}
	return out
}

func polygonFeatures(features []rawFeature) []PolygonFeature {
	out := make([]PolygonFeature, 0, len(features))
	for _, f := range features {
		pf := PolygonFeature{Attributes: f.Attributes}
		for _, ring := range f.Geometry.Rings {
			coords := make([]geom.Coord, 0, len(ring))
			for _, c := range ring {
				if len(c) >= 2 {
					coords = append(coords, geom.Coord{c[0], c[1]})
				}
			}
			if len(coords) >= 4 {
				pf.Rings = append(pf.Rings, coords)
			}
		}
		out = append(out, pf)
	}
	return out
}

// RoadCentrelines implements Client.
func (c *client) RoadCentrelines(ctx context.Context, name string, env Envelope) ([]LineFeature, error) {
	where := FieldRoadName + " = " + quote(name)
	features, err := c.query(ctx, c.roadPath, where, FieldRoadName, &env, true)
	if err != nil {
		return nil, err
	}
	return lineFeatures(features, FieldRoadName), nil
}

// RoadNamesLike implements Client.
func (c *client) RoadNamesLike(ctx context.Context, fragment string, env Envelope) ([]string, error) {
	where := "UPPER(" + FieldRoadName + ") LIKE " + quote("%"+strings.ToUpper(fragment)+"%")
	features, err := c.query(ctx, c.roadPath, where, FieldRoadName, &env, false)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, f := range features {
		if n, ok := f.Attributes[FieldRoadName].(string); ok && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names, nil
}

// RoadsInEnvelope implements Client.
func (c *client) RoadsInEnvelope(ctx context.Context, env Envelope) ([]LineFeature, error) {
	features, err := c.query(ctx, c.roadPath, "1=1", FieldRoadName, &env, true)
	if err != nil {
		return nil, err
	}
	return lineFeatures(features, FieldRoadName), nil
}

// Waterlines implements Client.
func (c *client) Waterlines(ctx context.Context, name string, env Envelope) ([]LineFeature, error) {
	where := FieldWaterlineName + " = " + quote(name)
	features, err := c.query(ctx, c.waterPath, where, FieldWaterlineName, &env, true)
	if err != nil {
		return nil, err
	}
	return lineFeatures(features, FieldWaterlineName), nil
}

// ZoningParcels implements Client.
func (c *client) ZoningParcels(ctx context.Context, exceptionNo int, zoneType string, env Envelope) ([]PolygonFeature, error) {
	where := fmt.Sprintf("%s = %d", FieldExceptionNo, exceptionNo)
	if zoneType != "" {
		// Exception numbers are reused across zone types city-wide.
		where += " AND " + FieldZoneType + " = " + quote(zoneType)
	}
	features, err := c.query(ctx, c.zoningPath, where, "ZN_ZONE,ZN_STRING,ZN_EXCPTN_NO", &env, true)
	if err != nil {
		return nil, err
	}
	return polygonFeatures(features), nil
}

// PropertyParcels implements Client.
func (c *client) PropertyParcels(ctx context.Context, roadName string, env Envelope) ([]PolygonFeature, error) {
	where := FieldRoadName + " = " + quote(roadName)
	features, err := c.query(ctx, c.propertyPath, where, "ADDRESS_NUMBER,"+FieldRoadName, &env, true)
	if err != nil {
		return nil, err
	}
	return polygonFeatures(features), nil
}

// PropertyParcelsAll implements Client.
func (c *client) PropertyParcelsAll(ctx context.Context, env Envelope) ([]PolygonFeature, error) {
	features, err := c.query(ctx, c.propertyPath, "1=1", FieldRoadName, &env, true)
	if err != nil {
		return nil, err
	}
	return polygonFeatures(features), nil
}
