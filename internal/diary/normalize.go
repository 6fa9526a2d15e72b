package diary

import "strings"

// Normalize shapes raw boundary events into Events and drops every event whose
// trimmed text is empty. The result is never nil.
func Normalize(raw []RawEvent) []Event {
	out := make([]Event, 0, len(raw))
	for _, r := range raw {
		e := r.event()
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// NormalizeEvents applies the same rule to already-typed events. It is
// idempotent and does not modify its input.
func NormalizeEvents(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		out = append(out, Event{
			ID:        e.ID,
			Text:      e.Text,
			Completed: e.Completed,
			Tags:      cleanTags(e.Tags),
		})
	}
	return out
}

// IsEmptyDay reports whether a day has no event with non-empty text.
func IsEmptyDay(events []Event) bool {
	for _, e := range events {
		if strings.TrimSpace(e.Text) != "" {
			return false
		}
	}
	return true
}

// NormalizeCalendar normalises every day and prunes empty ones.
func NormalizeCalendar(cal CalendarMap) CalendarMap {
	out := make(CalendarMap, len(cal))
	for key, events := range cal {
		normalized := NormalizeEvents(events)
		if len(normalized) == 0 {
			continue
		}
		out[key] = normalized
	}
	return out
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}
