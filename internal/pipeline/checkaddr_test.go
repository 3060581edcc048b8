package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/perimeter-cli/pkg/arcgis"
	"github.com/sells-group/perimeter-cli/pkg/geocode"
)

func (f *fakeGIS) PropertyParcels(_ context.Context, name string, _ arcgis.Envelope) ([]arcgis.PolygonFeature, error) {
	return f.properties[name], nil
}

func TestCheckAddress_InsideByBothApproaches(t *testing.T) {
	gis, in := squareCommunity()
	geo := geocode.NewCascade("Toronto, ON", &fixedGeocoder{lat: 0.004, lon: 0.004})
	p := New(testConfig(), gis, &fakeOSM{}, geo)

	got, err := p.CheckAddress(context.Background(), in, "somewhere in the middle")
	require.NoError(t, err)
	assert.Equal(t, VerdictInside, got.Verdict)
}

func TestCheckAddress_OutsideByBothApproaches(t *testing.T) {
	gis, in := squareCommunity()
	geo := geocode.NewCascade("Toronto, ON", &fixedGeocoder{lat: 0.03, lon: 0.03})
	p := New(testConfig(), gis, &fakeOSM{}, geo)

	got, err := p.CheckAddress(context.Background(), in, "somewhere far away")
	require.NoError(t, err)
	assert.Equal(t, VerdictOutside, got.Verdict)
}

func TestCheckAddress_ApproachesDisagree(t *testing.T) {
	gis, in := squareCommunity()
	// Zoning parcel covers only the western half of the square, so a point
	// in the eastern half is inside the lines polygon but outside zoning.
	gis.parcels = []arcgis.PolygonFeature{
		{Rings: [][]geom.Coord{{
			{0, 0}, {0.005, 0}, {0.005, 0.01}, {0, 0.01}, {0, 0},
		}}},
	}
	geo := geocode.NewCascade("Toronto, ON", &fixedGeocoder{lat: 0.005, lon: 0.008})
	p := New(testConfig(), gis, &fakeOSM{}, geo)

	got, err := p.CheckAddress(context.Background(), in, "eastern half")
	require.NoError(t, err)
	assert.Equal(t, VerdictDiscrepancy, got.Verdict)
}

func TestCheckAddress_PrefersPropertyParcelCentroid(t *testing.T) {
	gis, in := squareCommunity()
	gis.properties = map[string][]arcgis.PolygonFeature{
		"Alpha St": {{
			Attributes: map[string]interface{}{"ADDRESS_NUMBER": float64(123)},
			Rings: [][]geom.Coord{{
				{0.003, 0.001}, {0.005, 0.001}, {0.005, 0.003}, {0.003, 0.003}, {0.003, 0.001},
			}},
		}},
	}
	// The geocoder would place the address outside; the parcel is inside.
	geo := geocode.NewCascade("Toronto, ON", &fixedGeocoder{lat: 0.05, lon: 0.05})
	p := New(testConfig(), gis, &fakeOSM{}, geo)

	got, err := p.CheckAddress(context.Background(), in, "123 Alpha Street")
	require.NoError(t, err)
	assert.Equal(t, "property_parcel", got.Located)
	assert.Equal(t, VerdictInside, got.Verdict)
}

func TestSplitCivic(t *testing.T) {
	n, street, ok := splitCivic("123 Alpha Street, Toronto, ON")
	require.True(t, ok)
	assert.Equal(t, 123, n)
	assert.Equal(t, "Alpha Street", street)

	_, _, ok = splitCivic("Alpha Street")
	assert.False(t, ok)
}

func TestVerdict(t *testing.T) {
	assert.Equal(t, VerdictInconclusive, verdict(signalUnknown, signalUnknown))
	assert.Equal(t, VerdictInside, verdict(signalInside, signalUnknown))
	assert.Equal(t, VerdictOutside, verdict(signalUnknown, signalOutside))
	assert.Equal(t, VerdictInside, verdict(signalInside, signalInside))
	assert.Equal(t, VerdictOutside, verdict(signalOutside, signalOutside))
	assert.Equal(t, VerdictDiscrepancy, verdict(signalInside, signalOutside))
}
