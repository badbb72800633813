package utils

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-01T12:00:00Z", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-01-01T12:00:00.500Z", time.Date(2024, 1, 1, 12, 0, 0, 500000000, time.UTC)},
		{"2024-01-01 12:00:00", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-01-01T12:00:00", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.input)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) failed: %v", c.input, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", c.input, got, c.want)
		}
	}

	if _, err := ParseTimestamp("not a timestamp"); err == nil {
		t.Errorf("Expected error for garbage input")
	}
}

func TestStampFilename(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

	got := StampFilename("SMW.srm", ts)
	want := "SMW [2024-01-01 12-00-00-000].srm"
	if got != want {
		t.Errorf("StampFilename = %q, want %q", got, want)
	}

	got = StampFilename("SMW.state.auto", ts)
	want = "SMW [2024-01-01 12-00-00-000].state.auto"
	if got != want {
		t.Errorf("StampFilename compound = %q, want %q", got, want)
	}
}

func TestStampStripRoundTrip(t *testing.T) {
	// Local -> upload -> local must be the identity on the base name.
	names := []string{"SMW.srm", "Zelda (USA).sav", "SMW.state", "SMW.state3", "SMW.state.auto"}
	ts := time.Date(2024, 6, 15, 9, 30, 45, 123000000, time.Local)
	for _, name := range names {
		stamped := StampFilename(name, ts)
		if got := StripBracket(stamped); got != name {
			t.Errorf("StripBracket(StampFilename(%q)) = %q", name, got)
		}
	}
}

func TestParseBracket(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 123000000, time.Local)
	stamped := StampFilename("SMW.srm", ts)

	got, ok := ParseBracket(stamped)
	if !ok {
		t.Fatalf("ParseBracket failed for %q", stamped)
	}
	if !got.Equal(ts) {
		t.Errorf("ParseBracket = %v, want %v", got, ts)
	}

	if _, ok := ParseBracket("SMW.srm"); ok {
		t.Errorf("Expected no bracket in plain filename")
	}
}

func TestStripBracketNoBracket(t *testing.T) {
	if got := StripBracket("SMW.srm"); got != "SMW.srm" {
		t.Errorf("StripBracket changed a plain name: %q", got)
	}
}
