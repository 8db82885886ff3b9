package models

import "testing"

func TestParseUrgency(t *testing.T) {
	cases := map[string]Urgency{
		"HIGH":     UrgencyHigh,
		" Medium ": UrgencyMedium,
		"low":      UrgencyLow,
		"critical": UrgencyLow,
		"":         UrgencyLow,
	}
	for in, want := range cases {
		if got := ParseUrgency(in); got != want {
			t.Errorf("ParseUrgency(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUrgencyAlertable(t *testing.T) {
	if UrgencyLow.Alertable() {
		t.Fatal("low must not alert")
	}
	if !UrgencyMedium.Alertable() || !UrgencyHigh.Alertable() {
		t.Fatal("medium and high must alert")
	}
}

func TestTranscriptText(t *testing.T) {
	tr := Transcript{Segments: []Segment{
		{Start: 0, End: 1.2, Text: " I have a headache"},
		{Start: 1.2, End: 3, Text: "since yesterday. "},
	}}
	if got := tr.Text(); got != "I have a headache since yesterday." {
		t.Fatalf("Text() = %q", got)
	}
	if got := (Transcript{}).Text(); got != "" {
		t.Fatalf("empty Text() = %q", got)
	}
}
