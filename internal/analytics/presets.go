package analytics

import (
	"time"

	"github.com/vogaflex/crm-insights/internal/normalize"
)

const (
	PresetWeek    = "week"
	PresetMonth   = "month"
	PresetQuarter = "quarter"
)

// PresetRange resolves a dashboard period shortcut to inclusive YYYY-MM-DD bounds
// ending today. The week preset never reaches back into the previous month.
// Unknown names fall back to the month preset.
func PresetRange(preset string, now time.Time, loc *time.Location) (from, to string) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)

	start := monthStart
	switch preset {
	case PresetWeek:
		start = today.AddDate(0, 0, -6)
		if start.Before(monthStart) {
			start = monthStart
		}
	case PresetQuarter:
		quarterMonth := time.Month((int(local.Month())-1)/3*3 + 1)
		start = time.Date(local.Year(), quarterMonth, 1, 0, 0, 0, 0, loc)
	}
	return normalize.Day(start, loc), normalize.Day(today, loc)
}
