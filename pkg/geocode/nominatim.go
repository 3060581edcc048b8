package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/perimeter-cli/internal/resilience"
)

// NominatimProvider geocodes via the OpenStreetMap Nominatim API. Free, no
// key, limited to one request per second per the usage policy.
type NominatimProvider struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NominatimOption configures the provider.
type NominatimOption func(*NominatimProvider)

// WithNominatimURL overrides the API base URL (for testing).
func WithNominatimURL(u string) NominatimOption {
	return func(p *NominatimProvider) { p.baseURL = u }
}

// WithNominatimHTTPClient sets a custom HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) { p.http = hc }
}

// WithNominatimRPS sets the request rate limit.
func WithNominatimRPS(rps float64) NominatimOption {
	return func(p *NominatimProvider) { p.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewNominatim creates a Nominatim provider.
func NewNominatim(userAgent string, opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:   "https://nominatim.openstreetmap.org/search",
		userAgent: userAgent,
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return true }

type nominatimHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	reqURL := p.baseURL + "?" + params.Encode()

	return resilience.Retry(ctx, resilience.Policy{Attempts: 2, Label: "nominatim"},
		func(ctx context.Context) (*Result, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "geocode: nominatim build request")
			}
			req.Header.Set("User-Agent", p.userAgent)

			resp, err := p.http.Do(req)
			if err != nil {
				return nil, eris.Wrap(err, "geocode: nominatim request")
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusOK {
				return nil, &resilience.StatusError{Code: resp.StatusCode, URL: p.baseURL}
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, eris.Wrap(err, "geocode: nominatim read body")
			}

			var hits []nominatimHit
			if err := json.Unmarshal(body, &hits); err != nil {
				return nil, eris.Wrap(err, "geocode: nominatim parse response")
			}
			if len(hits) == 0 {
				return &Result{Matched: false, Source: "nominatim"}, nil
			}

			lat, err := strconv.ParseFloat(hits[0].Lat, 64)
			if err != nil {
				return nil, eris.Wrap(err, "geocode: nominatim parse lat")
			}
			lon, err := strconv.ParseFloat(hits[0].Lon, 64)
			if err != nil {
				return nil, eris.Wrap(err, "geocode: nominatim parse lon")
			}
			return &Result{
				Lat:         lat,
				Lon:         lon,
				DisplayName: hits[0].DisplayName,
				Source:      "nominatim",
				Matched:     true,
			}, nil
		})
}
