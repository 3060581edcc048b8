package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatim_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "perimeter-cli-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "Queen St W & Spadina Ave, Toronto, ON", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		fmt.Fprint(w, `[{"lat":"43.6487","lon":"-79.3962","display_name":"Queen Street West at Spadina Avenue, Toronto"}]`)
	}))
	defer srv.Close()

	p := NewNominatim("perimeter-cli-test", WithNominatimURL(srv.URL), WithNominatimRPS(1000))
	r, err := p.Geocode(context.Background(), "Queen St W & Spadina Ave, Toronto, ON")
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.InDelta(t, 43.6487, r.Lat, 1e-6)
	assert.InDelta(t, -79.3962, r.Lon, 1e-6)
	assert.Equal(t, "nominatim", r.Source)
}

func TestNominatim_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	p := NewNominatim("test", WithNominatimURL(srv.URL), WithNominatimRPS(1000))
	r, err := p.Geocode(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.False(t, r.Matched)
}

func TestNominatim_RetriesServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[{"lat":"43.7","lon":"-79.4","display_name":"somewhere"}]`)
	}))
	defer srv.Close()

	p := NewNominatim("test", WithNominatimURL(srv.URL), WithNominatimRPS(1000))
	r, err := p.Geocode(context.Background(), "somewhere")
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, 2, calls)
}

func TestGoogle_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "101 Main St, Toronto, ON", r.URL.Query().Get("address"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"status":"OK","results":[{"formatted_address":"101 Main St, Toronto, ON, Canada","geometry":{"location":{"lat":43.685,"lng":-79.301}}}]}`)
	}))
	defer srv.Close()

	p := NewGoogle("test-key", WithGoogleURL(srv.URL))
	r, err := p.Geocode(context.Background(), "101 Main St, Toronto, ON")
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.InDelta(t, 43.685, r.Lat, 1e-6)
	assert.InDelta(t, -79.301, r.Lon, 1e-6)
	assert.Equal(t, "google", r.Source)
}

func TestGoogle_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ZERO_RESULTS","results":[]}`)
	}))
	defer srv.Close()

	p := NewGoogle("test-key", WithGoogleURL(srv.URL))
	r, err := p.Geocode(context.Background(), "xyz")
	require.NoError(t, err)
	assert.False(t, r.Matched)
}

func TestGoogle_UnavailableWithoutKey(t *testing.T) {
	assert.False(t, NewGoogle("").Available())
	assert.True(t, NewGoogle("k").Available())
}

type stubProvider struct {
	name    string
	results map[string]*Result
	err     error
	queries []string
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return true }

func (s *stubProvider) Geocode(_ context.Context, q string) (*Result, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.results[q]; ok {
		return r, nil
	}
	return &Result{Matched: false}, nil
}

func TestCascade_AddressFallsThrough(t *testing.T) {
	first := &stubProvider{name: "first", err: fmt.Errorf("down")}
	second := &stubProvider{name: "second", results: map[string]*Result{
		"10 Elm St": {Lat: 43.7, Lon: -79.4, Matched: true, Source: "second"},
	}}

	c := NewCascade("Toronto, ON", first, second)
	r, err := c.Address(context.Background(), "10 Elm St")
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "second", r.Source)
}

func TestCascade_IntersectionReturnsAllCandidates(t *testing.T) {
	p := &stubProvider{name: "stub", results: map[string]*Result{
		"Elm St & Oak Ave, Toronto, ON": {Lat: 43.70, Lon: -79.40, Matched: true},
		"Oak Ave & Elm St, Toronto, ON": {Lat: 43.71, Lon: -79.41, Matched: true},
	}}

	c := NewCascade("Toronto, ON", p)
	out := c.Intersection(context.Background(), "Elm St", "Oak Ave")
	require.Len(t, out, 2)
	assert.Contains(t, p.queries, "Elm St at Oak Ave, Toronto, ON")
}
