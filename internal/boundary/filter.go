package boundary

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/perimeter-cli/internal/geomutil"
	"github.com/sells-group/perimeter-cli/internal/model"
)

// ErrNothingOnSide reports that compass filtering discarded every component.
var ErrNothingOnSide = errors.New("boundary: no geometry on the declared side")

// onDeclaredSide reports whether a centroid lies on the declared side of the
// reference point. Compound sides accept either axis.
func onDeclaredSide(c geom.Coord, side model.CompassSide, ref model.ReferencePoint) bool {
	for _, axis := range side.Axes() {
		switch axis {
		case model.SideNorth:
			if c[1] > ref.Lat {
				return true
			}
		case model.SideSouth:
			if c[1] < ref.Lat {
				return true
			}
		case model.SideEast:
			if c[0] > ref.Lon {
				return true
			}
		case model.SideWest:
			if c[0] < ref.Lon {
				return true
			}
		}
	}
	return false
}

// FilterCompass keeps the components of a boundary's geometry that lie on
// its declared compass side within the selection radius, then returns the
// longest survivor as the working geometry. Every discard is logged with the
// reason; a silent discard here would make misdeclared input undiagnosable.
func FilterCompass(g model.LineGeometry, b model.BoundaryDescriptor, ref model.ReferencePoint, selectRadiusM float64) (model.LineGeometry, error) {
	refPt := geom.Coord{ref.Lon, ref.Lat}

	var best *geom.LineString
	var bestLen float64
	for _, ls := range g.Lines {
		centroid := geomutil.Centroid(ls)
		if !onDeclaredSide(centroid, b.CompassSide, ref) {
			zap.L().Debug("boundary: component discarded, wrong compass side",
				zap.String("boundary", b.DisplayName),
				zap.String("declared", string(b.CompassSide)),
				zap.Float64("centroid_lat", centroid[1]),
				zap.Float64("centroid_lon", centroid[0]),
			)
			continue
		}

		_, dist := geomutil.SnapDistanceMeters([]*geom.LineString{ls}, refPt)
		if dist > selectRadiusM {
			zap.L().Debug("boundary: component discarded, beyond selection radius",
				zap.String("boundary", b.DisplayName),
				zap.Float64("distance_m", dist),
				zap.Float64("radius_m", selectRadiusM),
			)
			continue
		}

		length := geomutil.LengthMeters(ls)
		if length > bestLen {
			if best != nil {
				zap.L().Debug("boundary: shorter component superseded",
					zap.String("boundary", b.DisplayName),
					zap.Float64("length_m", bestLen),
				)
			}
			best, bestLen = ls, length
		} else {
			zap.L().Debug("boundary: shorter component discarded",
				zap.String("boundary", b.DisplayName),
				zap.Float64("length_m", length),
			)
		}
	}

	if best == nil {
		return model.LineGeometry{}, eris.Wrapf(ErrNothingOnSide,
			"boundary: %q declared %s", b.DisplayName, b.CompassSide)
	}
	return model.LineGeometry{Lines: []*geom.LineString{best}, Source: g.Source}, nil
}
