package resolver

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Suffix and direction forms as the road centreline layer abbreviates them.
// LINEAR_NAME_FULL stores "Lawrence Ave E", never "Lawrence Avenue East".
var suffixAbbrev = map[string]string{
	"street":     "St",
	"avenue":     "Ave",
	"road":       "Rd",
	"drive":      "Dr",
	"boulevard":  "Blvd",
	"crescent":   "Cres",
	"court":      "Crt",
	"circle":     "Crcl",
	"lane":       "Ln",
	"place":      "Pl",
	"terrace":    "Ter",
	"trail":      "Trl",
	"gardens":    "Gdns",
	"grove":      "Grv",
	"heights":    "Hts",
	"parkway":    "Pkwy",
	"square":     "Sq",
	"expressway": "Xwy",
}

var directionAbbrev = map[string]string{
	"north": "N",
	"south": "S",
	"east":  "E",
	"west":  "W",
}

var titleCaser = cases.Title(language.English)

// Normalize rewrites a colloquial road name into the abbreviated form used by
// the authoritative identifier field. Already-abbreviated input passes
// through unchanged apart from casing.
func Normalize(name string) string {
	words := strings.Fields(strings.TrimSpace(name))
	out := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if abbr, ok := suffixAbbrev[lower]; ok {
			out = append(out, abbr)
			continue
		}
		if abbr, ok := directionAbbrev[lower]; ok {
			out = append(out, abbr)
			continue
		}
		if len(w) <= 2 {
			// Keep short tokens as-is so "St" and "W" survive.
			out = append(out, titleCaser.String(lower))
			continue
		}
		out = append(out, titleCaser.String(lower))
	}
	return strings.Join(out, " ")
}

var abbrevSet = func() map[string]bool {
	set := make(map[string]bool)
	for _, v := range suffixAbbrev {
		set[strings.ToUpper(v)] = true
	}
	for _, v := range directionAbbrev {
		set[strings.ToUpper(v)] = true
	}
	return set
}()

// BaseName strips suffix and direction tokens from a normalized name,
// leaving the distinctive part used for substring matching. "Lawrence Ave E"
// becomes "Lawrence".
func BaseName(name string) string {
	words := strings.Fields(Normalize(name))
	out := words[:0]
	for _, w := range words {
		if abbrevSet[strings.ToUpper(w)] {
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return strings.Join(words, " ")
	}
	return strings.Join(out, " ")
}

// sameName compares two names ignoring case.
func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
