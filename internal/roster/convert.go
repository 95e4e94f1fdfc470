package roster

// convert.go provides the string clean-up helpers shared by the normalizer,
// the reference indices and the editor.
//
// Spreadsheet cells arrive in every shape imaginable:
//   - Excel formula prefixes (="2021/BSC/...")
//   - Stray quotes and padding
//   - Two-digit years ("21") next to four-digit ones ("2021")
//
// Nothing here converts types; every helper returns a string.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	fourDigitYear = regexp.MustCompile(`^\d{4}$`)
	twoDigitYear  = regexp.MustCompile(`^\d{2}$`)
)

// Clock returns the current time. Tests pin it to make year expansion
// deterministic.
type Clock func() time.Time

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, the Excel formula prefix (="...") and
// surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// NormalizeKey produces the lookup form of a free-text token: trimmed,
// lower-cased, accents folded, and stripped of everything that is not a
// letter or digit. "Kampala", "kampala" and "KAMPALA!" share one key.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExpandYear turns a two-digit year into a four-digit one. Values up to
// (current year + 1) mod 100 belong to this century, larger ones to the
// previous one. Four-digit input is returned unchanged; anything else
// yields "".
func ExpandYear(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	switch {
	case fourDigitYear.MatchString(s):
		return s
	case twoDigitYear.MatchString(s):
		v, _ := strconv.Atoi(s)
		pivot := (now.Year() + 1) % 100
		if v <= pivot {
			return "20" + s
		}
		return "19" + s
	default:
		return ""
	}
}

// IsValidYear reports whether s is a four-digit year.
func IsValidYear(s string) bool {
	return fourDigitYear.MatchString(strings.TrimSpace(s))
}

// SplitFullName splits a name on whitespace: the final token is the last
// name and everything before it the first name. A single token yields an
// empty last name.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

// isEmptyRow reports whether every cell of a raw row is blank.
func isEmptyRow(cells []string) bool {
	for _, v := range cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
