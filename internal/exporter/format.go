package exporter

import (
	"strconv"
	"time"
)

// DateLayout is the day-first layout used in every exported table.
const DateLayout = "02/01/2006"

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// formatOptional writes a missing value as an empty cell.
func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

// formatNumber keeps the precision a category value was read with.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
