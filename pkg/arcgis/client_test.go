package arcgis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoadCentrelines_ParsesPaths(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"features": [
				{
					"attributes": {"LINEAR_NAME_FULL": "Royal York Rd"},
					"geometry": {"paths": [
						[[-79.51, 43.64], [-79.51, 43.65]],
						[[-79.51, 43.66], [-79.51, 43.67], [-79.51, 43.68]]
					]}
				}
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLayerPaths("/road", "/water", "/zoning", "/property"))
	features, err := c.RoadCentrelines(context.Background(), "Royal York Rd", Around(43.65, -79.51, 0.02))
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "Royal York Rd", features[0].Name)
	require.Len(t, features[0].Paths, 2)
	assert.Equal(t, 2, features[0].Paths[0].NumCoords())
	assert.Equal(t, 3, features[0].Paths[1].NumCoords())

	assert.Equal(t, "LINEAR_NAME_FULL = 'Royal York Rd'", gotQuery["where"][0])
	assert.Equal(t, "esriGeometryEnvelope", gotQuery["geometryType"][0])
	assert.Equal(t, "true", gotQuery["returnGeometry"][0])
}

func TestZoningParcels_WhereClauseAndRings(t *testing.T) {
	var gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("where")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"features": [
				{
					"attributes": {"ZN_ZONE": "RD", "ZN_EXCPTN_NO": 42},
					"geometry": {"rings": [
						[[-79.51, 43.64], [-79.50, 43.64], [-79.50, 43.65], [-79.51, 43.64]]
					]}
				}
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLayerPaths("/road", "/water", "/zoning", "/property"))
	parcels, err := c.ZoningParcels(context.Background(), 42, "RD", Around(43.645, -79.505, 0.015))
	require.NoError(t, err)
	require.Len(t, parcels, 1)
	require.Len(t, parcels[0].Rings, 1)
	assert.Len(t, parcels[0].Rings[0], 4)
	assert.Equal(t, "ZN_EXCPTN_NO = 42 AND ZN_ZONE = 'RD'", gotWhere)
}

func TestQuery_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"error": {"code": 400, "message": "Invalid query"}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLayerPaths("/road", "/water", "/zoning", "/property"))
	_, err := c.RoadCentrelines(context.Background(), "Nope", Around(0, 0, 0.01))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid query")
}

func TestQuery_RetriesOn503(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"features": []}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLayerPaths("/road", "/water", "/zoning", "/property"))
	names, err := c.RoadNamesLike(context.Background(), "york", Around(43.65, -79.51, 0.02))
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, 2, calls)
}

func TestQuote_EscapesSingleQuotes(t *testing.T) {
	assert.Equal(t, "'O''Connor Dr'", quote("O'Connor Dr"))
}
