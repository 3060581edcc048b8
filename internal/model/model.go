// Package model defines the community perimeter input schema and the
// intermediate artifacts produced while constructing a polygon from it.
package model

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// FeatureType classifies the physical feature backing a boundary.
type FeatureType string

// Known feature types.
const (
	FeatureStreet   FeatureType = "street"
	FeatureWaterway FeatureType = "waterway"
	FeatureRailway  FeatureType = "railway"
)

// CompassSide declares which side of the community a boundary occupies
// relative to the reference point. Compound values cover boundaries that
// wrap a corner, e.g. a creek bounding both the west and south edges.
type CompassSide string

// Simple and compound compass sides accepted in input.
const (
	SideNorth        CompassSide = "north"
	SideSouth        CompassSide = "south"
	SideEast         CompassSide = "east"
	SideWest         CompassSide = "west"
	SideWestAndSouth CompassSide = "west_and_south"
	SideSouthAndWest CompassSide = "south_and_west"
	SideNorthAndEast CompassSide = "north_and_east"
	SideEastAndNorth CompassSide = "east_and_north"
)

// Axes returns the one or two simple sides a CompassSide is composed of.
func (s CompassSide) Axes() []CompassSide {
	switch s {
	case SideWestAndSouth, SideSouthAndWest:
		return []CompassSide{SideWest, SideSouth}
	case SideNorthAndEast, SideEastAndNorth:
		return []CompassSide{SideNorth, SideEast}
	default:
		return []CompassSide{s}
	}
}

// Compound reports whether the side wraps two compass axes.
func (s CompassSide) Compound() bool { return len(s.Axes()) == 2 }

// BoundaryDescriptor is one declared edge of the community perimeter.
// The ordered sequence of descriptors, read cyclically, is the perimeter
// walk order: descriptor i and i+1 (mod N) share a corner.
type BoundaryDescriptor struct {
	DisplayName string      `json:"feature_name"`
	FeatureType FeatureType `json:"feature_type"`
	CompassSide CompassSide `json:"compass_direction"`
	GISHint     string      `json:"gis_hint,omitempty"`
}

// ReferencePoint locates a point inside the community, either directly or
// via an address to be geocoded.
type ReferencePoint struct {
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
}

// HasCoords reports whether explicit coordinates were supplied.
func (r ReferencePoint) HasCoords() bool { return r.Lat != 0 || r.Lon != 0 }

// ZoningKey identifies a site-specific zoning exception used by the
// independent parcel-union construction.
type ZoningKey struct {
	ExceptionNumber int    `json:"exception_number"`
	ZoneType        string `json:"zone_type"`
}

// CommunityInput is the structured perimeter description consumed by the
// pipeline. Description is an opaque display string and is never parsed.
type CommunityInput struct {
	Name        string               `json:"community_name"`
	Description string               `json:"description,omitempty"`
	Reference   ReferencePoint       `json:"reference_point"`
	Boundaries  []BoundaryDescriptor `json:"boundaries"`
	Zoning      *ZoningKey           `json:"zoning_exception,omitempty"`
}

// LoadCommunityInput reads and validates a community description JSON file.
func LoadCommunityInput(path string) (*CommunityInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read input %s", path)
	}
	var in CommunityInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, eris.Wrapf(err, "model: parse input %s", path)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Validate checks structural invariants of the input.
func (c *CommunityInput) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return eris.New("model: community_name is required")
	}
	if len(c.Boundaries) < 2 {
		return eris.Errorf("model: need at least 2 boundaries, got %d", len(c.Boundaries))
	}
	if !c.Reference.HasCoords() && strings.TrimSpace(c.Reference.Address) == "" {
		return eris.New("model: reference_point needs lat/lon or an address")
	}
	for i, b := range c.Boundaries {
		if strings.TrimSpace(b.DisplayName) == "" {
			return eris.Errorf("model: boundary %d has no feature_name", i)
		}
		switch b.FeatureType {
		case FeatureStreet, FeatureWaterway, FeatureRailway:
		default:
			return eris.Errorf("model: boundary %q has unknown feature_type %q", b.DisplayName, b.FeatureType)
		}
		sides := b.CompassSide.Axes()
		for _, s := range sides {
			switch s {
			case SideNorth, SideSouth, SideEast, SideWest:
			default:
				return eris.Errorf("model: boundary %q has unknown compass_direction %q", b.DisplayName, b.CompassSide)
			}
		}
	}
	return nil
}

// ResolutionStrategy tags how a colloquial name was resolved.
type ResolutionStrategy string

// Resolution strategies, in descending confidence order.
const (
	ResolveExact        ResolutionStrategy = "exact"
	ResolveFuzzy        ResolutionStrategy = "fuzzy"
	ResolveIntersection ResolutionStrategy = "intersection"
)

// ResolvedName maps a colloquial feature name to the identifiers used by the
// authoritative line source. Candidates are ordered by confidence. The
// colloquial name is retained and preferred for any later geocoding call.
type ResolvedName struct {
	Colloquial string
	Official   []string
	Strategy   ResolutionStrategy
}

// Primary returns the highest-confidence official identifier.
func (r ResolvedName) Primary() string {
	if len(r.Official) == 0 {
		return r.Colloquial
	}
	return r.Official[0]
}

// GeometrySource tags where line geometry came from.
type GeometrySource string

// Line geometry sources.
const (
	SourceAuthoritative GeometrySource = "arcgis"
	SourceFallback      GeometrySource = "overpass"
)

// LineGeometry is a set of disjoint polylines for one boundary. Merging and
// filtering produce new values; the polyline set itself is never flattened
// into a single coordinate run.
type LineGeometry struct {
	Lines  []*geom.LineString
	Source GeometrySource
}

// Empty reports whether the geometry holds no usable polylines.
func (g LineGeometry) Empty() bool { return len(g.Lines) == 0 }

// CornerStrategy tags how a corner between two adjacent boundaries was found.
type CornerStrategy string

// Corner-finding strategies, in descending confidence order.
const (
	CornerGeocodeBoth     CornerStrategy = "geocoded-confirmed-by-both"
	CornerGeocodeOne      CornerStrategy = "geocoded-confirmed-by-one"
	CornerIntersection    CornerStrategy = "geometric-intersection"
	CornerExtrapolated    CornerStrategy = "extrapolated"
	CornerNearestApproach CornerStrategy = "nearest-approach"
)

// Corner is the point shared by two perimeter-adjacent boundaries. SnapDist
// holds the residual distance in meters from the corner to each boundary's
// geometry where the strategy produced one.
type Corner struct {
	Point    geom.Coord
	Strategy CornerStrategy
	SnapDist [2]float64
}

// ClippedArc is the portion of one boundary between its two corners. The
// coordinate sequence begins and ends exactly at the corner coordinates.
// Straightened is set when detour correction replaced the source geometry.
type ClippedArc struct {
	Coords       []geom.Coord
	Straightened bool
	Corrected    bool
}

// PolygonResult is a constructed polygon with its validation outcome.
// RefInside is checked, never assumed; callers surface a false value
// prominently rather than discarding the polygon.
type PolygonResult struct {
	Polygon   *geom.Polygon
	AreaKm2   float64
	RefInside bool
}
