// Package mains resolves the regional mains-power base frequency so the
// restoration chain can aim its hum attenuation at the right harmonic grid.
// Detection runs off the system timezone and always degrades to 50 Hz, the
// majority grid worldwide.
package mains

import (
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// Base frequencies of the two grid families.
const (
	Hz50 = 50
	Hz60 = 60
)

// Supported reports whether hz names a real mains grid.
func Supported(hz int) bool {
	return hz == Hz50 || hz == Hz60
}

// Frequency resolves the local grid from the runtime timezone. Every failure
// path falls back to 50 Hz.
func Frequency() int {
	zone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return Hz50
	}
	return FrequencyForTimezone(zone)
}

// FrequencyForTimezone resolves the grid for an IANA timezone name.
func FrequencyForTimezone(zone string) int {
	// UTC-family zones carry no country, so no grid can be inferred.
	if zone == "UTC" || zone == "GMT" || strings.HasPrefix(zone, "Etc/") {
		return Hz50
	}

	countries, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return Hz50
	}
	country, err := countries.GetCountry(zone)
	if err != nil {
		return Hz50
	}

	// Japan runs a split grid; the Tokyo 50 Hz side covers most speakers.
	if country == "Japan" {
		return Hz50
	}
	if sixtyHertzGrid[country] {
		return Hz60
	}
	return Hz50
}

// sixtyHertzGrid lists the countries on the 60 Hz family: most of the
// Americas plus a handful of Pacific and Asian grids. Everywhere else runs
// 50 Hz. Brazil is nominally mixed but 60 Hz predominates.
var sixtyHertzGrid = map[string]bool{
	"American Samoa":      true,
	"Bahamas":             true,
	"Barbados":            true,
	"Belize":              true,
	"Brazil":              true,
	"Canada":              true,
	"Cayman Islands":      true,
	"Colombia":            true,
	"Costa Rica":          true,
	"Cuba":                true,
	"Dominican Republic":  true,
	"Ecuador":             true,
	"El Salvador":         true,
	"Guam":                true,
	"Guatemala":           true,
	"Guyana":              true,
	"Haiti":               true,
	"Honduras":            true,
	"Jamaica":             true,
	"Marshall Islands":    true,
	"Mexico":              true,
	"Micronesia":          true,
	"Nicaragua":           true,
	"Palau":               true,
	"Panama":              true,
	"Peru":                true,
	"Philippines":         true,
	"Puerto Rico":         true,
	"Saudi Arabia":        true,
	"South Korea":         true,
	"Suriname":            true,
	"Taiwan":              true,
	"Trinidad and Tobago": true,
	"U.S. Virgin Islands": true,
	"United States":       true,
	"Venezuela":           true,
}
