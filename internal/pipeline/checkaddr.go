package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/perimeter-cli/internal/builder"
	"github.com/sells-group/perimeter-cli/internal/geomutil"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/internal/resolver"
	"github.com/sells-group/perimeter-cli/pkg/arcgis"
)

// Verdict classifies an address against a community description.
type Verdict string

// Verdicts. BOUNDARY_DISCREPANCY means the two construction approaches
// disagree about the address, which usually indicates the community
// description and the zoning exception cover different areas.
const (
	VerdictInside       Verdict = "INSIDE"
	VerdictOutside      Verdict = "OUTSIDE"
	VerdictDiscrepancy  Verdict = "BOUNDARY_DISCREPANCY"
	VerdictInconclusive Verdict = "INCONCLUSIVE"
)

// signal is one approach's opinion about an address.
type signal int

const (
	signalUnknown signal = iota
	signalInside
	signalOutside
)

// AddressCheck is the result of validating one address.
type AddressCheck struct {
	Address string   `json:"address"`
	Lat     float64  `json:"lat"`
	Lon     float64  `json:"lon"`
	Located string   `json:"located_via"`
	Verdict Verdict  `json:"verdict"`
	Notes   []string `json:"notes,omitempty"`
}

// CheckAddress decides whether an address belongs to the described
// community. The boundary-lines polygon and the zoning union vote
// independently; when the polygon cannot be built, per-boundary side checks
// stand in for it.
func (p *Pipeline) CheckAddress(ctx context.Context, in *model.CommunityInput, address string) (*AddressCheck, error) {
	check := &AddressCheck{Address: address}

	out, runErr := p.Run(ctx, in, ApproachBoth)
	if runErr != nil {
		check.Notes = append(check.Notes, fmt.Sprintf("construction incomplete: %v", runErr))
	}

	pt, via, err := p.locateAddress(ctx, address, out.Ref)
	if err != nil {
		return nil, err
	}
	check.Lat, check.Lon, check.Located = pt[1], pt[0], via

	lines := signalUnknown
	switch {
	case out.Lines != nil:
		lines = boolSignal(polygonContains(out.Lines.Polygon, pt))
	case len(out.Edges) > 0:
		lines = sideChecks(out.Edges, pt, check)
	}

	zoningSig := signalUnknown
	if out.Zoning != nil {
		zoningSig = boolSignal(multiContains(out.Zoning.Geom, pt))
	}

	check.Verdict = verdict(lines, zoningSig)
	return check, nil
}

// locateAddress prefers the property-parcel layer: the centroid of the
// address's own parcel beats a geocoder hit by a lot near boundaries. The
// geocoder cascade is the fallback.
func (p *Pipeline) locateAddress(ctx context.Context, address string, ref model.ReferencePoint) (geom.Coord, string, error) {
	if number, street, ok := splitCivic(address); ok && ref.HasCoords() {
		env := arcgis.Around(ref.Lat, ref.Lon, 2*p.cfg.Builder.SearchRadiusDeg)
		parcels, err := p.gis.PropertyParcels(ctx, resolver.Normalize(street), env)
		if err != nil {
			zap.L().Debug("pipeline: property parcel lookup failed", zap.Error(err))
		}
		for _, parcel := range parcels {
			if parcelNumber(parcel) != number || len(parcel.Rings) == 0 {
				continue
			}
			return geomutil.MeanCoord(parcel.Rings[0]), "property_parcel", nil
		}
	}

	r, err := p.geo.Address(ctx, address)
	if err != nil {
		return nil, "", eris.Wrapf(err, "pipeline: locate %q", address)
	}
	if !r.Matched {
		return nil, "", eris.Errorf("pipeline: address %q did not geocode", address)
	}
	return geom.Coord{r.Lon, r.Lat}, r.Source, nil
}

// splitCivic pulls a leading street number off an address line.
func splitCivic(address string) (number int, street string, ok bool) {
	fields := strings.Fields(address)
	if len(fields) < 2 {
		return 0, "", false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", false
	}
	street = strings.TrimRight(strings.Join(fields[1:], " "), ",")
	if i := strings.Index(street, ","); i >= 0 {
		street = street[:i]
	}
	return n, street, true
}

func parcelNumber(p arcgis.PolygonFeature) int {
	v, ok := p.Attributes["ADDRESS_NUMBER"]
	if !ok {
		return -1
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return -1
		}
		return i
	default:
		return -1
	}
}

// sideChecks votes with each boundary individually when no closed polygon
// exists: the address must sit on the community side of every boundary. A
// boundary declared north has the community to its south, and so on;
// compound sides accept either axis.
func sideChecks(edges []builder.Edge, pt geom.Coord, check *AddressCheck) signal {
	result := signalInside
	for _, e := range edges {
		nearest, _ := geomutil.SnapDistanceMeters(e.Geometry.Lines, pt)
		if onCommunitySide(pt, nearest, e.Descriptor.CompassSide) {
			continue
		}
		check.Notes = append(check.Notes, fmt.Sprintf(
			"address is on the wrong side of %q (declared %s)",
			e.Descriptor.DisplayName, e.Descriptor.CompassSide))
		result = signalOutside
	}
	return result
}

func onCommunitySide(pt, boundaryPt geom.Coord, declared model.CompassSide) bool {
	for _, axis := range declared.Axes() {
		switch axis {
		case model.SideNorth:
			if pt[1] < boundaryPt[1] {
				return true
			}
		case model.SideSouth:
			if pt[1] > boundaryPt[1] {
				return true
			}
		case model.SideEast:
			if pt[0] < boundaryPt[0] {
				return true
			}
		case model.SideWest:
			if pt[0] > boundaryPt[0] {
				return true
			}
		}
	}
	return false
}

func boolSignal(inside bool) signal {
	if inside {
		return signalInside
	}
	return signalOutside
}

func verdict(lines, zoning signal) Verdict {
	switch {
	case lines == signalUnknown && zoning == signalUnknown:
		return VerdictInconclusive
	case lines == signalUnknown:
		return map[signal]Verdict{signalInside: VerdictInside, signalOutside: VerdictOutside}[zoning]
	case zoning == signalUnknown:
		return map[signal]Verdict{signalInside: VerdictInside, signalOutside: VerdictOutside}[lines]
	case lines == zoning:
		return map[signal]Verdict{signalInside: VerdictInside, signalOutside: VerdictOutside}[lines]
	default:
		return VerdictDiscrepancy
	}
}

// polygonContains tests the exterior ring minus holes.
func polygonContains(poly *geom.Polygon, pt geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	ring := ringCoords(poly.LinearRing(0))
	if !geomutil.PointInRing(pt, ring) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if geomutil.PointInRing(pt, ringCoords(poly.LinearRing(i))) {
			return false
		}
	}
	return true
}

func ringCoords(r *geom.LinearRing) []geom.Coord {
	coords := make([]geom.Coord, 0, r.NumCoords())
	for i := 0; i < r.NumCoords(); i++ {
		coords = append(coords, r.Coord(i))
	}
	return coords
}

// multiContains tests clipping-library multi-part output.
func multiContains(g [][][][]float64, pt geom.Coord) bool {
	for _, poly := range g {
		if len(poly) == 0 {
			continue
		}
		if !geomutil.PointInRing(pt, rawRing(poly[0])) {
			continue
		}
		inHole := false
		for _, hole := range poly[1:] {
			if geomutil.PointInRing(pt, rawRing(hole)) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

func rawRing(ring [][]float64) []geom.Coord {
	coords := make([]geom.Coord, 0, len(ring))
	for _, p := range ring {
		coords = append(coords, geom.Coord{p[0], p[1]})
	}
	return coords
}
