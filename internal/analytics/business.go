package analytics

import "time"

// BusinessHours is the daily service window, in whole hours of the configured zone.
type BusinessHours struct {
	Start int
	End   int
}

var DefaultBusinessHours = BusinessHours{Start: 8, End: 18}

// BusinessSeconds counts the seconds between start and end that fall inside the
// business window on weekdays. ok is false when no weekday lies between the two
// days, which includes end preceding start.
func BusinessSeconds(start, end time.Time, loc *time.Location, hours BusinessHours) (float64, bool) {
	if loc == nil {
		loc = time.UTC
	}
	start, end = start.In(loc), end.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	var total float64
	found := false
	for !day.After(last) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			found = true
			open := time.Date(day.Year(), day.Month(), day.Day(), hours.Start, 0, 0, 0, loc)
			shut := time.Date(day.Year(), day.Month(), day.Day(), hours.End, 0, 0, 0, loc)
			from, to := laterOf(start, open), earlierOf(end, shut)
			if to.After(from) {
				total += to.Sub(from).Seconds()
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return total, found
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
