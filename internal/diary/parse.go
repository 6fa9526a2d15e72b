package diary

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	metadataRe = regexp.MustCompile(`^<!--\s*([\w-]+)\s*:\s*(.*?)\s*-->$`)
	dateLineRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	bulletRe   = regexp.MustCompile(`^\s*[-*]\s+(.*)$`)
	tagTokenRe = regexp.MustCompile(`^#([\w-]+)$`)
	leadingInt = regexp.MustCompile(`^[+-]?\d+`)
)

// parseState is the accumulator threaded through the line scan.
type parseState struct {
	current  DateKey
	open     bool
	order    []DateKey
	days     map[DateKey][]Event
	metadata map[string]string
	ts       int64
	seen     bool
}

func newParseState() *parseState {
	return &parseState{
		days:     make(map[DateKey][]Event),
		metadata: make(map[string]string),
	}
}

// Parse reads a Markdown diary. Lines that match no known construct are
// skipped, so Parse accepts any input.
func (c *Codec) Parse(text string) Document {
	st := newParseState()
	for _, line := range strings.Split(text, "\n") {
		st.consume(strings.TrimSuffix(line, "\r"))
	}
	return st.document()
}

func (st *parseState) consume(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}

	if m := metadataRe.FindStringSubmatch(line); m != nil {
		key, value := m[1], m[2]
		st.metadata[key] = value
		if strings.EqualFold(key, TimestampKey) {
			st.seen = true
			if ts, ok := parseLeadingInt(value); ok {
				st.ts = ts
			}
		}
		return
	}

	// Year and month headings are for readers only; date lines carry the year.
	if strings.HasPrefix(line, "#") {
		return
	}

	if dateLineRe.MatchString(line) {
		st.seen = true
		key, ok := ParseDateLine(line)
		if !ok {
			st.current, st.open = "", false
			return
		}
		st.current, st.open = key, true
		if _, seen := st.days[key]; !seen {
			st.days[key] = []Event{}
			st.order = append(st.order, key)
		}
		return
	}

	if !st.open {
		return
	}
	m := bulletRe.FindStringSubmatch(raw)
	if m == nil {
		return
	}
	if e, ok := parseBullet(m[1]); ok {
		st.days[st.current] = append(st.days[st.current], e)
	}
}

func (st *parseState) document() Document {
	cal := make(CalendarMap, len(st.order))
	for _, key := range st.order {
		events := NormalizeEvents(st.days[key])
		if len(events) == 0 {
			continue
		}
		cal[key] = events
	}
	return Document{
		Calendar:           cal,
		LastSavedTimestamp: st.ts,
		Metadata:           st.metadata,
		Recognized:         st.seen,
	}
}

// parseBullet splits a bullet body into text, completion marker and trailing
// tags.
func parseBullet(body string) (Event, bool) {
	tokens := strings.Fields(body)

	var tags []string
	for len(tokens) > 0 {
		m := tagTokenRe.FindStringSubmatch(tokens[len(tokens)-1])
		if m == nil {
			break
		}
		tags = append(tags, m[1])
		tokens = tokens[:len(tokens)-1]
	}
	for i, j := 0, len(tags)-1; i < j; i, j = i+1, j-1 {
		tags[i], tags[j] = tags[j], tags[i]
	}

	completed := false
	if n := len(tokens); n > 0 && tokens[n-1] == completedMarker {
		completed = true
		tokens = tokens[:n-1]
	}

	text := strings.Join(tokens, " ")
	if text == "" {
		return Event{}, false
	}
	if tags == nil {
		tags = []string{}
	}
	return Event{Text: text, Completed: completed, Tags: tags}, true
}

// parseLeadingInt reads the integer prefix of s, ignoring anything after it.
func parseLeadingInt(s string) (int64, bool) {
	digits := leadingInt.FindString(strings.TrimSpace(s))
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
