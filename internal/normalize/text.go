package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text lower-cases and trims for case-insensitive comparisons.
func Text(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// BotText is Text with diacritics removed, so "Horário" and "horario" compare equal.
func BotText(value string) string {
	return StripAccents(Text(value))
}

func StripAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

var scorePattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// Score extracts the first number of a free-text AI rating ("Nota 8,5/10" -> 8.5).
func Score(value string) (float64, bool) {
	match := scorePattern.FindString(value)
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(match, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsWildcard reports whether a select filter value means "no constraint".
func IsWildcard(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.EqualFold(v, "Todos")
}
