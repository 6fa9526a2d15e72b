package diary

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateKey identifies a calendar day as "{monthIndex}_{day}_{year}" where the
// month index is zero-based.
type DateKey string

// dateKeyShapeRe is the shape accepted at the JSON boundary.
var dateKeyShapeRe = regexp.MustCompile(`^\d+_\d+_\d+$`)

// NewDateKey builds a key from a zero-based month index.
func NewDateKey(year, monthIndex, day int) DateKey {
	return DateKey(fmt.Sprintf("%d_%d_%d", monthIndex, day, year))
}

// DateKeyFromTime builds the key for the calendar day of t.
func DateKeyFromTime(t time.Time) DateKey {
	return NewDateKey(t.Year(), int(t.Month())-1, t.Day())
}

// IsDateKey reports whether s has the "digits_digits_digits" shape. It does
// not check ranges.
func IsDateKey(s string) bool {
	return dateKeyShapeRe.MatchString(s)
}

// Parts splits the key into its month index, day and year. An empty token
// reads as 0, so "_1_2024" names January 1st.
func (k DateKey) Parts() (monthIndex, day, year int, ok bool) {
	tokens := strings.Split(string(k), "_")
	if len(tokens) != 3 {
		return 0, 0, 0, false
	}
	var nums [3]int
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], true
}

// Time returns midnight UTC of the day the key names. Out-of-range month or
// day values roll over the way time.Date normalises them.
func (k DateKey) Time() (time.Time, bool) {
	monthIndex, day, year, ok := k.Parts()
	if !ok {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(monthIndex+1), day, 0, 0, 0, 0, time.UTC), true
}

// ParseDateLine parses a "M/D/YYYY" date line (one-based month) into a key.
// Only the month is range-checked; the day is kept verbatim.
func ParseDateLine(line string) (DateKey, bool) {
	m := dateLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	monthIndex := month - 1
	if monthIndex < 0 || monthIndex > 11 {
		return "", false
	}
	return NewDateKey(year, monthIndex, day), true
}

// DateLine renders t as the unpadded "M/D/YYYY" line used in documents.
func DateLine(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
}
