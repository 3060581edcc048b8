package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// KML writes the polygon as a single-placemark KML document, enough for a
// quick look in Google Earth.
func KML(path, community string, poly *geom.Polygon) error {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<kml xmlns="http://www.opengis.net/kml/2.2"><Document>` + "\n")
	fmt.Fprintf(&b, "<Placemark><name>%s</name><Polygon>\n", xmlEscape(community))

	for i := 0; i < poly.NumLinearRings(); i++ {
		ring := poly.LinearRing(i)
		if i == 0 {
			b.WriteString("<outerBoundaryIs><LinearRing><coordinates>")
		} else {
			b.WriteString("<innerBoundaryIs><LinearRing><coordinates>")
		}
		for j := 0; j < ring.NumCoords(); j++ {
			c := ring.Coord(j)
			fmt.Fprintf(&b, "%f,%f,0 ", c[0], c[1])
		}
		if i == 0 {
			b.WriteString("</coordinates></LinearRing></outerBoundaryIs>\n")
		} else {
			b.WriteString("</coordinates></LinearRing></innerBoundaryIs>\n")
		}
	}

	b.WriteString("</Polygon></Placemark>\n</Document></kml>\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
