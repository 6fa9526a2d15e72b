package diary

import (
	"strings"
	"testing"
	"time"
)

func TestFormat_EmptyCalendar(t *testing.T) {
	got := Format(CalendarMap{}, "123")
	want := "<!-- lastSavedTimestamp: 123 -->\n"
	if got != want {
		t.Errorf("Format(empty) = %q, want %q", got, want)
	}
}

func TestFormat_DocumentShape(t *testing.T) {
	cal := CalendarMap{
		"2_14_2024": {
			{Text: "Pick up dry cleaning", Tags: []string{}},
			{Text: "Finish report", Completed: true, Tags: []string{"work", "urgent"}},
		},
	}
	got := FormatMillis(cal, 1700000000000)
	want := "<!-- lastSavedTimestamp: 1700000000000 -->\n" +
		"\n" +
		"# 2024\n" +
		"## March 2024\n" +
		"3/14/2024\n" +
		"  - Pick up dry cleaning\n" +
		"  - Finish report [✓] #work #urgent\n"
	if got != want {
		t.Errorf("Format =\n%s\nwant\n%s", got, want)
	}
}

func TestFormat_ChronologicalWithHeaderTransitions(t *testing.T) {
	cal := CalendarMap{
		"11_25_2024": {{Text: "Later", Tags: []string{}}},
		"11_24_2023": {{Text: "Earlier", Tags: []string{}}},
		"0_2_2024":   {{Text: "Middle", Tags: []string{}}},
		"0_9_2024":   {{Text: "Same month", Tags: []string{}}},
	}
	got := Format(cal, "5")
	want := "<!-- lastSavedTimestamp: 5 -->\n\n" +
		"# 2023\n## December 2023\n12/24/2023\n  - Earlier\n\n" +
		"# 2024\n## January 2024\n1/2/2024\n  - Middle\n\n" +
		"1/9/2024\n  - Same month\n\n" +
		"## December 2024\n12/25/2024\n  - Later\n"
	if got != want {
		t.Errorf("Format =\n%s\nwant\n%s", got, want)
	}
	if strings.Count(got, "## December") != 2 {
		t.Errorf("expected December header for both years")
	}
}

func TestFormat_DropsEmptyAndMalformedDays(t *testing.T) {
	cal := CalendarMap{
		"4_1_2024":   {{Text: "   ", Tags: []string{}}},
		"not_a_key":  {{Text: "lost", Tags: []string{}}},
		"4_1":        {{Text: "lost too", Tags: []string{}}},
		"4_2_2024":   {{Text: "kept", Tags: []string{}}},
		"4_3_2024":   nil,
		"4_4_2024_9": {{Text: "four tokens", Tags: []string{}}},
	}
	got := Format(cal, "1")
	if strings.Contains(got, "5/1/2024") {
		t.Errorf("blank day should be pruned: %q", got)
	}
	if strings.Contains(got, "lost") || strings.Contains(got, "four tokens") {
		t.Errorf("malformed keys should be dropped: %q", got)
	}
	if !strings.Contains(got, "5/2/2024\n  - kept\n") {
		t.Errorf("valid day missing: %q", got)
	}
}

func TestFormat_EmptyKeyTokenReadsAsZero(t *testing.T) {
	got := Format(CalendarMap{"_1_2024": {{Text: "new year", Tags: []string{}}}}, "1")
	if !strings.Contains(got, "1/1/2024\n  - new year\n") {
		t.Errorf("key with empty month token dropped: %q", got)
	}
}

func TestFormat_TrimsTextAndSkipsBlankEvents(t *testing.T) {
	cal := CalendarMap{
		"5_1_2025": {
			{Text: "  padded  ", Tags: []string{}},
			{Text: "", Tags: []string{"orphan"}},
		},
	}
	got := Format(cal, "1")
	if !strings.Contains(got, "  - padded\n") {
		t.Errorf("text not trimmed: %q", got)
	}
	if strings.Contains(got, "orphan") {
		t.Errorf("blank event emitted: %q", got)
	}
}

func TestFormat_TimestampFallsBackToClock(t *testing.T) {
	fixed := time.UnixMilli(1712345678901)
	c := NewCodec(WithClock(func() time.Time { return fixed }))

	for _, ts := range []string{"", "abc", "NaN", "Infinity", "1e400"} {
		got := c.Format(CalendarMap{}, ts)
		want := "<!-- lastSavedTimestamp: 1712345678901 -->\n"
		if got != want {
			t.Errorf("Format(ts=%q) = %q, want %q", ts, got, want)
		}
	}
}

func TestResolveTimestamp_NumericStrings(t *testing.T) {
	c := NewCodec(WithClock(func() time.Time { return time.UnixMilli(7) }))
	cases := map[string]int64{
		"42":       42,
		" 1000 ":   1000,
		"-5":       -5,
		"12.9":     12,
		"1.5e3":    1500,
		"":         7,
		"12abc":    7,
		"Infinity": 7,
	}
	for in, want := range cases {
		if got := c.ResolveTimestamp(in); got != want {
			t.Errorf("ResolveTimestamp(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFormat_DoesNotMutateInput(t *testing.T) {
	events := []Event{{Text: "  keep me ", Tags: nil}, {Text: " ", Tags: nil}}
	cal := CalendarMap{"1_1_2024": events}
	_ = Format(cal, "1")
	if len(cal["1_1_2024"]) != 2 || cal["1_1_2024"][0].Text != "  keep me " {
		t.Errorf("input mutated: %#v", cal)
	}
}

func TestFormat_Deterministic(t *testing.T) {
	cal := CalendarMap{}
	for d := 1; d <= 28; d++ {
		cal[NewDateKey(2024, d%12, d)] = []Event{{Text: "e", Tags: []string{"t"}}}
	}
	first := Format(cal, "9")
	for i := 0; i < 10; i++ {
		if got := Format(cal, "9"); got != first {
			t.Fatalf("Format not deterministic on run %d", i)
		}
	}
}
