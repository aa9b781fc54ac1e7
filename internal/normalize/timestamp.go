package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/vogaflex/crm-insights/internal/models"
)

// ParseTime parses the loosely formatted timestamps produced by the CRM pipeline.
// Values without a zone are read in loc.
func ParseTime(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true
	}
	t, err := dateparse.ParseIn(value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PickTimestamp is the ordering instant of an event: evento_timestamp, then
// data_criacao_chat, then now. It never fails.
func PickTimestamp(e models.RawEvent, now time.Time, loc *time.Location) time.Time {
	if e.EventoTimestamp != "" {
		if t, ok := ParseTime(e.EventoTimestamp, loc); ok {
			return t
		}
		return now
	}
	if e.DataCriacaoChat != "" {
		if t, ok := ParseTime(e.DataCriacaoChat, loc); ok {
			return t
		}
	}
	return now
}

// BasisTime is the instant used by date-range filters. Unlike PickTimestamp it
// reports false instead of defaulting, so unparseable records can be excluded.
func BasisTime(e models.RawEvent, loc *time.Location) (time.Time, bool) {
	for _, v := range []string{e.EventoTimestamp, e.DataCriacaoChat, e.UpdatedAt, e.CreatedAt} {
		if v == "" {
			continue
		}
		return ParseTime(v, loc)
	}
	return time.Time{}, false
}

// BasisValue is the raw timestamp text exported alongside a conversation.
func BasisValue(e models.RawEvent) string {
	if e.EventoTimestamp != "" {
		return e.EventoTimestamp
	}
	return e.DataCriacaoChat
}

// Day formats t as a YYYY-MM-DD key in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

// ParseDay parses a YYYY-MM-DD filter bound as local midnight.
func ParseDay(value string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
