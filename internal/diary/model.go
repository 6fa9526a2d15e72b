// Package diary converts between calendar event maps and the Markdown diary
// document used for export, import and durable storage.
package diary

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Event is a single diary entry attached to a calendar day.
//
// ID is an optional synthetic identifier assigned by persistence layers. It is
// never written to the Markdown document.
type Event struct {
	ID        string   `json:"id,omitempty"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Tags      []string `json:"tags"`
}

// CalendarMap maps a day to its ordered list of events. A day with no
// non-empty events is never stored.
type CalendarMap map[DateKey][]Event

// Document is the result of parsing a Markdown diary.
type Document struct {
	Calendar           CalendarMap       `json:"calendar"`
	LastSavedTimestamp int64             `json:"lastSavedTimestamp"`
	Metadata           map[string]string `json:"metadata"`
	// Recognized is false when the text held no date line and no
	// lastSavedTimestamp comment, i.e. it is not a diary at all.
	Recognized bool `json:"-"`
}

// RawEvent is an event as found at the JSON boundary: either a legacy bare
// string or an object. Use Normalize to turn a list of them into Events.
type RawEvent struct {
	legacy    bool
	text      string
	completed bool
	tags      []string
	id        string
}

// StringEvent returns the legacy bare-string form of an event.
func StringEvent(s string) RawEvent {
	return RawEvent{legacy: true, text: s}
}

// ObjectEvent returns the object form of an event.
func ObjectEvent(e Event) RawEvent {
	return RawEvent{text: e.Text, completed: e.Completed, tags: e.Tags, id: e.ID}
}

// UnmarshalJSON accepts a string, an object, or any other JSON value. Values
// that are neither strings nor objects decode to an empty event, which
// Normalize later drops. It only fails on malformed JSON.
func (r *RawEvent) UnmarshalJSON(data []byte) error {
	*r = RawEvent{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*r = StringEvent(s)
		return nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return err
		}
		_ = json.Unmarshal(fields["text"], &r.text)
		_ = json.Unmarshal(fields["id"], &r.id)

		// Only a literal true counts as completed.
		var completed bool
		if json.Unmarshal(fields["completed"], &completed) == nil {
			r.completed = completed
		}

		var items []json.RawMessage
		if json.Unmarshal(fields["tags"], &items) == nil {
			for _, item := range items {
				var tag string
				if json.Unmarshal(item, &tag) == nil {
					r.tags = append(r.tags, tag)
				}
			}
		}
		return nil
	default:
		var v any
		return json.Unmarshal(trimmed, &v)
	}
}

// MarshalJSON writes legacy events back as strings and objects as objects.
func (r RawEvent) MarshalJSON() ([]byte, error) {
	if r.legacy {
		return json.Marshal(r.text)
	}
	return json.Marshal(r.event())
}

func (r RawEvent) event() Event {
	if r.legacy {
		return Event{Text: strings.TrimSpace(r.text), Tags: []string{}}
	}
	return Event{ID: r.id, Text: r.text, Completed: r.completed, Tags: cleanTags(r.tags)}
}
