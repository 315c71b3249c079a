package analytics

import (
	"strconv"
	"strings"
)

const kmPerMile = 1.609344

// DistanceKm reads a display distance such as "12.3 km", "1,204 km", "850 m"
// or "7.5 mi". Anything unparseable counts as zero.
func DistanceKm(s *string) float64 {
	if s == nil {
		return 0
	}
	text := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(*s), ",", ""))
	scale := 1.0
	switch {
	case strings.HasSuffix(text, "km"):
		text = strings.TrimSuffix(text, "km")
	case strings.HasSuffix(text, "mi"):
		text, scale = strings.TrimSuffix(text, "mi"), kmPerMile
	case strings.HasSuffix(text, "m"):
		text, scale = strings.TrimSuffix(text, "m"), 0.001
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v * scale
}

// DurationMinutes reads "<n> <unit>" pairs such as "1 day 2 hours" or
// "2 hours 5 mins". A malformed string counts as zero.
func DurationMinutes(s *string) float64 {
	if s == nil {
		return 0
	}
	parts := strings.Fields(strings.ToLower(*s))
	total := 0.0
	for i := 0; i < len(parts); i += 2 {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return 0
		}
		unit := ""
		if i+1 < len(parts) {
			unit = parts[i+1]
		}
		switch {
		case strings.HasPrefix(unit, "day"):
			total += v * 24 * 60
		case strings.HasPrefix(unit, "hour"):
			total += v * 60
		case strings.HasPrefix(unit, "min"):
			total += v
		}
	}
	return total
}
