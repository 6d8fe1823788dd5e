package cli

import (
	"strings"
	"testing"
	"time"
)

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1234, "1.2K"},
		{1_234_567, "1.2M"},
		{1_234_567_890, "1.2B"},
		{-2500, "-2.5K"},
	}
	for _, tt := range tests {
		if got := FormatTokens(tt.in); got != tt.want {
			t.Errorf("FormatTokens(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(1234567); got != "1,234,567" {
		t.Errorf("FormatNumber = %q", got)
	}
	if got := FormatNumber(-1000); got != "-1,000" {
		t.Errorf("FormatNumber negative = %q", got)
	}
}

func TestFormatAge(t *testing.T) {
	if got := FormatAge(time.Time{}); got != "never" {
		t.Errorf("zero age = %q", got)
	}
	if got := FormatAge(time.Now().Add(-3 * time.Hour)); got != "3 hours ago" {
		t.Errorf("age = %q", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(""); got != "-" {
		t.Errorf("empty = %q", got)
	}
	if got := FormatTimestamp("garbage"); got != "garbage" {
		t.Errorf("unparseable = %q", got)
	}
	want := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC).Local().Format("2006-01-02 15:04")
	if got := FormatTimestamp("2025-06-01T10:30:15.123Z"); got != want {
		t.Errorf("FormatTimestamp = %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("short = %q", got)
	}
	if got := Truncate("a  b\nc", 10); got != "a b c" {
		t.Errorf("whitespace = %q", got)
	}
	if got := Truncate(strings.Repeat("x", 20), 10); got != "xxxxxxx..." {
		t.Errorf("long = %q", got)
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(Table{
		Headers:    []string{"Project", "Sessions"},
		Rows:       [][]string{{"alpha", "3"}, {"---"}, {"beta-project", "12"}},
		RightAlign: map[int]bool{1: true},
	})
	for _, want := range []string{"Project", "alpha", "beta-project", "12"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "\n"); got != 7 {
		t.Errorf("table has %d lines, want 7:\n%s", got, out)
	}
	if RenderTable(Table{}) != "" {
		t.Error("empty table should render nothing")
	}
}
