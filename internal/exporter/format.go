package exporter

import (
	"strconv"
)

// formatFloat writes the shortest representation that parses back to f
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// parseNumber reports whether a cell holds a number the spreadsheet should
// store as numeric. Only the form formatFloat produces qualifies, so text
// such as "007" or "1.50" keeps its exact spelling in the mirror.
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || formatFloat(v) != s {
		return 0, false
	}
	return v, true
}
