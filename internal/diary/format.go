package diary

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// TimestampKey is the metadata key carrying the save time in milliseconds.
const TimestampKey = "lastSavedTimestamp"

const completedMarker = "[✓]"

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Codec formats and parses diary documents. The zero value uses time.Now as
// its clock.
type Codec struct {
	now func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithClock overrides the clock used when a timestamp must be substituted.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec returns a Codec with the given options applied.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCodec = NewCodec()

// Format renders cal using the default codec.
func Format(cal CalendarMap, timestamp string) string {
	return defaultCodec.Format(cal, timestamp)
}

// FormatMillis renders cal with an integer millisecond timestamp.
func FormatMillis(cal CalendarMap, ms int64) string {
	return defaultCodec.Format(cal, strconv.FormatInt(ms, 10))
}

// Parse parses text using the default codec.
func Parse(text string) Document {
	return defaultCodec.Parse(text)
}

// ResolveTimestamp interprets timestamp as milliseconds since the epoch. An
// empty, non-numeric or non-finite value resolves to the codec's current time.
// Fractional values are truncated.
func (c *Codec) ResolveTimestamp(timestamp string) int64 {
	s := strings.TrimSpace(timestamp)
	if s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
	}
	return c.clock().UnixMilli()
}

func (c *Codec) clock() time.Time {
	if c == nil || c.now == nil {
		return time.Now()
	}
	return c.now()
}

type datedDay struct {
	key    DateKey
	date   time.Time
	events []Event
}

// Format renders cal as a Markdown diary document stamped with timestamp.
// Keys that do not decode to a date and days without non-empty events are
// left out. The output is deterministic for a given input and timestamp.
func (c *Codec) Format(cal CalendarMap, timestamp string) string {
	ts := c.ResolveTimestamp(timestamp)

	days := make([]datedDay, 0, len(cal))
	for key, events := range cal {
		date, ok := key.Time()
		if !ok {
			continue
		}
		normalized := NormalizeEvents(events)
		if len(normalized) == 0 {
			continue
		}
		days = append(days, datedDay{key: key, date: date, events: normalized})
	}
	sort.Slice(days, func(i, j int) bool {
		if !days[i].date.Equal(days[j].date) {
			return days[i].date.Before(days[j].date)
		}
		return days[i].key < days[j].key
	})

	var b strings.Builder
	fmt.Fprintf(&b, "<!-- %s: %d -->\n\n", TimestampKey, ts)

	currentYear, currentMonth := -1, time.Month(0)
	for _, day := range days {
		year, month := day.date.Year(), day.date.Month()
		if year != currentYear {
			fmt.Fprintf(&b, "# %d\n", year)
			currentYear = year
			currentMonth = 0
		}
		if month != currentMonth {
			fmt.Fprintf(&b, "## %s %d\n", month.String(), year)
			currentMonth = month
		}

		b.WriteString(DateLine(day.date))
		b.WriteByte('\n')
		for _, e := range day.events {
			b.WriteString(formatBullet(e))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	out := blankRunRe.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimRightFunc(out, unicode.IsSpace) + "\n"
}

func formatBullet(e Event) string {
	var b strings.Builder
	b.Grow(8 + len(e.Text) + len(e.Tags)*8)
	b.WriteString("  - ")
	b.WriteString(strings.TrimSpace(e.Text))
	if e.Completed {
		b.WriteString(" ")
		b.WriteString(completedMarker)
	}
	if len(e.Tags) > 0 {
		b.WriteString(" #")
		b.WriteString(strings.Join(e.Tags, " #"))
	}
	return b.String()
}
