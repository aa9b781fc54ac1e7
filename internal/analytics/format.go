package analytics

import (
	"fmt"
	"math"
)

// FormatPercent renders value as a rounded share of total; totals of zero read "0%".
func FormatPercent(value, total float64) string {
	if !(total > 0) || math.IsInf(total, 0) {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int64(math.Round(value/total*100)))
}

// FormatDuration renders seconds to the nearest minute, as "Xm" or "Hh Mm".
func FormatDuration(seconds float64) string {
	if !isPositive(seconds) {
		return "--"
	}
	totalMinutes := int64(math.Round(seconds / 60))
	hours, minutes := totalMinutes/60, totalMinutes%60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func FormatScore(v float64) string {
	if !isPositive(v) {
		return "--"
	}
	return fmt.Sprintf("%.1f", v)
}

func isPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
