package builder

import (
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/perimeter-cli/internal/geomutil"
	"github.com/sells-group/perimeter-cli/internal/model"
)

// ErrRingInvalid reports a self-intersecting or degenerate assembled ring.
var ErrRingInvalid = errors.New("builder: assembled ring is invalid")

// coincidenceTolDeg bounds how far apart two force-snapped corner copies may
// drift before assembly refuses to treat them as the same point.
const coincidenceTolDeg = 1e-9

// AssembleRing concatenates clipped arcs in perimeter order into a closed
// ring and validates the result. Arc i must run from corner i to corner i+1;
// the shared corner appears once in the output. Reference-point containment
// is checked and reported, never assumed: a false value flags the input, not
// the algorithm, so the polygon is still returned.
func AssembleRing(edges []Edge, arcs []*model.ClippedArc, ref model.ReferencePoint) (*model.PolygonResult, error) {
	if len(arcs) < 2 {
		return nil, eris.Wrapf(ErrRingInvalid, "builder: %d arcs cannot close a ring", len(arcs))
	}

	var ring []geom.Coord
	for i, arc := range arcs {
		if len(arc.Coords) < 2 {
			return nil, eris.Wrapf(ErrRingInvalid, "builder: boundary %q produced an empty arc",
				edges[i].Descriptor.DisplayName)
		}
		if i > 0 {
			prev := ring[len(ring)-1]
			if geomutil.Distance(prev, arc.Coords[0]) > coincidenceTolDeg {
				return nil, eris.Wrapf(ErrRingInvalid,
					"builder: arc for %q does not start at the corner shared with %q",
					edges[i].Descriptor.DisplayName, edges[i-1].Descriptor.DisplayName)
			}
			ring = append(ring, arc.Coords[1:]...)
			continue
		}
		ring = append(ring, arc.Coords...)
	}

	// Close: the final arc ends at corner 0.
	if geomutil.Distance(ring[len(ring)-1], ring[0]) > coincidenceTolDeg {
		return nil, eris.Wrapf(ErrRingInvalid,
			"builder: arc for %q does not close back to %q",
			edges[len(edges)-1].Descriptor.DisplayName, edges[0].Descriptor.DisplayName)
	}
	ring[len(ring)-1] = geom.Coord{ring[0][0], ring[0][1]}

	if !geomutil.IsRingSimple(ring) {
		return nil, eris.Wrap(ErrRingInvalid, "builder: ring self-intersects")
	}
	area := geomutil.RingArea(ring)
	if area <= 0 {
		return nil, eris.Wrap(ErrRingInvalid, "builder: ring has zero area")
	}

	refInside := true
	if ref.HasCoords() {
		refInside = geomutil.PointInRing(geom.Coord{ref.Lon, ref.Lat}, ring)
		if !refInside {
			zap.L().Warn("builder: reference point falls outside the assembled polygon, input is suspect")
		}
	}

	adviseCompassOctants(edges, arcs, ref)

	return &model.PolygonResult{
		Polygon:   geomutil.RingPolygon(ring),
		AreaKm2:   geomutil.AreaKm2(area),
		RefInside: refInside,
	}, nil
}

// adviseCompassOctants checks each assembled arc's bearing from the
// reference point against the declared compass side and logs disagreements.
// Advisory only: declared sides describe intent and curved boundaries often
// sweep across octants legitimately.
func adviseCompassOctants(edges []Edge, arcs []*model.ClippedArc, ref model.ReferencePoint) {
	if !ref.HasCoords() {
		return
	}
	for i, arc := range arcs {
		mid := arc.Coords[len(arc.Coords)/2]
		dx := mid[0] - ref.Lon
		dy := mid[1] - ref.Lat
		if ok := onDeclaredOctant(dx, dy, edges[i].Descriptor.CompassSide); !ok {
			zap.L().Warn("builder: arc midpoint disagrees with declared compass side",
				zap.String("boundary", edges[i].Descriptor.DisplayName),
				zap.String("declared", string(edges[i].Descriptor.CompassSide)),
				zap.Float64("bearing_deg", math.Atan2(dy, dx)*180/math.Pi),
			)
		}
	}
}

func onDeclaredOctant(dx, dy float64, side model.CompassSide) bool {
	for _, axis := range side.Axes() {
		switch axis {
		case model.SideNorth:
			if dy > 0 {
				return true
			}
		case model.SideSouth:
			if dy < 0 {
				return true
			}
		case model.SideEast:
			if dx > 0 {
				return true
			}
		case model.SideWest:
			if dx < 0 {
				return true
			}
		}
	}
	return false
}
