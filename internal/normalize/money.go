package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var nonNumeric = regexp.MustCompile(`[^\d.\-]`)

// Money turns a budget value into a finite float. A comma marks the decimal
// separator, in which case every dot is a thousands separator.
func Money(raw any) float64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		return MoneyString(v.String())
	case string:
		return MoneyString(v)
	case *string:
		if v == nil {
			return 0
		}
		return MoneyString(*v)
	case interface{ String() string }:
		return MoneyString(v.String())
	default:
		return 0
	}
}

func MoneyString(raw string) float64 {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0
	}
	if strings.Contains(text, ",") {
		text = strings.ReplaceAll(text, ".", "")
		text = strings.Replace(text, ",", ".", 1)
	}
	cleaned := nonNumeric.ReplaceAllString(text, "")
	return finite(parseFloatPrefix(cleaned))
}

// parseFloatPrefix mirrors a lenient float parse: the longest numeric prefix wins,
// so "12.5.3" reads as 12.5 and "-" reads as NaN.
func parseFloatPrefix(s string) float64 {
	end := 0
	seenDigit, seenDot := false, false
scan:
	for i, r := range s {
		switch {
		case r == '-' && i == 0:
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' && !seenDot:
			seenDot = true
		default:
			break scan
		}
		end = i + 1
	}
	if !seenDigit {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
