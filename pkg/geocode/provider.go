// Package geocode turns addresses and street-intersection phrases into
// coordinates via a cascade of providers: Nominatim (primary, free) and the
// Google Geocoding API (fallback, needs a key). Single-provider results are
// occasionally wrong by kilometers for road/waterway intersections, so
// callers get every candidate and validate against known geometry.
package geocode

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Result is one geocoding candidate.
type Result struct {
	Lat         float64
	Lon         float64
	DisplayName string
	Source      string
	Matched     bool
}

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, query string) (*Result, error)
	Available() bool
}

// Cascade tries providers in order.
type Cascade struct {
	providers  []Provider
	citySuffix string
}

// NewCascade creates a Cascade over the given providers. citySuffix is
// appended to every query to anchor it, e.g. "Toronto, ON".
func NewCascade(citySuffix string, providers ...Provider) *Cascade {
	return &Cascade{providers: providers, citySuffix: citySuffix}
}

// Address geocodes a single address, returning the first match.
func (c *Cascade) Address(ctx context.Context, addr string) (*Result, error) {
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		r, err := p.Geocode(ctx, addr)
		if err != nil {
			zap.L().Debug("geocode: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if r != nil && r.Matched {
			return r, nil
		}
	}
	return &Result{Matched: false}, nil
}

// Intersection geocodes the crossing of two named features. Both orderings
// and an "at" phrasing are tried against every provider; all matched
// candidates are returned in provider-then-phrasing order so the caller can
// validate each against known geometry.
func (c *Cascade) Intersection(ctx context.Context, a, b string) []Result {
	queries := []string{
		fmt.Sprintf("%s & %s, %s", a, b, c.citySuffix),
		fmt.Sprintf("%s & %s, %s", b, a, c.citySuffix),
		fmt.Sprintf("%s at %s, %s", a, b, c.citySuffix),
	}

	var out []Result
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		for _, q := range queries {
			r, err := p.Geocode(ctx, q)
			if err != nil {
				zap.L().Debug("geocode: intersection query failed",
					zap.String("provider", p.Name()),
					zap.String("query", q),
					zap.Error(err),
				)
				continue
			}
			if r != nil && r.Matched {
				out = append(out, *r)
			}
		}
	}
	return out
}
