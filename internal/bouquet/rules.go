package bouquet

import (
	"strings"
	"time"
)

// Limits bound what counts as a sellable bouquet.
type Limits struct {
	MinFlowers int
	MaxFlowers int
	MinTypes   int
	MaxTypes   int
}

var DefaultLimits = Limits{MinFlowers: 3, MaxFlowers: 20, MinTypes: 2, MaxTypes: 8}

// colorPairs maps a color to the palette it combines with. Same color is
// always compatible; unknown or unspecified colors are permissive.
var colorPairs = map[string][]string{
	"red":    {"white", "pink", "yellow", "orange"},
	"pink":   {"white", "red", "purple", "yellow"},
	"white":  {"red", "pink", "yellow", "blue", "purple", "orange"},
	"yellow": {"red", "pink", "white", "orange", "blue"},
	"orange": {"red", "yellow", "white"},
	"purple": {"pink", "white", "blue"},
	"blue":   {"white", "purple", "yellow"},
}

var seasonMonths = map[string][]time.Month{
	"spring": {time.March, time.April, time.May},
	"summer": {time.June, time.July, time.August},
	"autumn": {time.September, time.October, time.November},
	"winter": {time.December, time.January, time.February},
}

// CurrentSeason maps a point in time to its season name, "all" if the
// month somehow falls outside the table.
func CurrentSeason(now time.Time) string {
	m := now.Month()
	for season, months := range seasonMonths {
		for _, sm := range months {
			if sm == m {
				return season
			}
		}
	}
	return "all"
}

// ColorsCompatible reports whether two colors may share a bouquet.
func ColorsCompatible(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	for _, c := range colorPairs[a] {
		if c == b {
			return true
		}
	}
	return false
}

// InSeason reports whether a flower's seasonality admits the requested
// season. "all" (or blank) flowers are always in season; a blank request
// means "now".
func InSeason(seasonality, season string) bool {
	s := strings.ToLower(seasonality)
	if s == "" || s == "all" {
		return true
	}
	if season == "" {
		season = CurrentSeason(time.Now())
	}
	return s == strings.ToLower(season)
}

// ColorMatrix returns a copy of the compatibility table for the rules
// endpoint.
func ColorMatrix() map[string][]string {
	out := make(map[string][]string, len(colorPairs))
	for color, palette := range colorPairs {
		out[color] = append([]string(nil), palette...)
	}
	return out
}

// SeasonTable returns season -> month names, lowercased.
func SeasonTable() map[string][]string {
	out := make(map[string][]string, len(seasonMonths))
	for season, months := range seasonMonths {
		names := make([]string, 0, len(months))
		for _, m := range months {
			names = append(names, strings.ToLower(m.String()))
		}
		out[season] = names
	}
	return out
}
