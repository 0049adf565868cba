package rowparse

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

var numberNoise = strings.NewReplacer(
	",", "",
	"¥", "",
	"￥", "",
	"元", "",
)

func cleanNumber(s string) string {
	s = numberNoise.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSuffix(s, "%")
}

// TryParseNumber parses a report number such as "¥1,200.50" or "12.5%".
// NaN and infinities, which rate columns show after a division by zero,
// are not numbers.
func TryParseNumber(s string) (float64, bool) {
	cleaned := cleanNumber(s)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseNumber is TryParseNumber defaulting to 0 for anything unparseable.
func ParseNumber(s string) float64 {
	f, _ := TryParseNumber(s)
	return f
}

// NormalizeDate converts slash separated dates to hyphen separated ones
// without touching the digits.
func NormalizeDate(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
}

// IsValidDate reports whether s looks like a YYYY-MM-DD (or YYYY/MM/DD)
// calendar date whose year starts with centuryPrefix.
func IsValidDate(s string, centuryPrefix string) bool {
	parts := strings.Split(NormalizeDate(s), "-")
	if len(parts) != 3 {
		return false
	}
	year, month, day := parts[0], parts[1], parts[2]
	if len(year) != 4 || !strings.HasPrefix(year, centuryPrefix) {
		return false
	}
	if _, err := strconv.Atoi(year); err != nil {
		return false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return false
	}
	return true
}

// IsNumeric reports whether s is made only of digits, the signature of a row
// whose columns shifted.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
