package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// GoogleProvider geocodes via the Google Maps Geocoding API. Unavailable
// unless an API key is configured.
type GoogleProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// GoogleOption configures the provider.
type GoogleOption func(*GoogleProvider)

// WithGoogleURL overrides the API base URL (for testing).
func WithGoogleURL(u string) GoogleOption {
	return func(p *GoogleProvider) { p.baseURL = u }
}

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) { p.http = hc }
}

// NewGoogle creates a Google provider with the given API key.
func NewGoogle(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		baseURL: "https://maps.googleapis.com/maps/api/geocode/json",
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode implements Provider.
func (p *GoogleProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	params := url.Values{
		"address": {query},
		"key":     {p.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}
	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		return &Result{Matched: false, Source: "google"}, nil
	}

	hit := parsed.Results[0]
	return &Result{
		Lat:         hit.Geometry.Location.Lat,
		Lon:         hit.Geometry.Location.Lng,
		DisplayName: hit.FormattedAddress,
		Source:      "google",
		Matched:     true,
	}, nil
}
