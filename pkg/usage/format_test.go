package usage

import (
	"strings"
	"testing"
	"time"
)

func TestHumanCount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{999, "999"},
		{1000, "1K"},
		{1532, "1.5K"},
		{10_000, "10K"},
		{999_999, "1000K"},
		{1_000_000, "1M"},
		{1_550_000, "1.6M"},
	}

	for _, tc := range tests {
		if got := HumanCount(tc.in); got != tc.want {
			t.Fatalf("HumanCount(%d)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestGroupedInt(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{12, "12"},
		{999, "999"},
		{1000, "1,000"},
		{12_345, "12,345"},
		{1_000_000, "1,000,000"},
	}

	for _, tc := range tests {
		if got := GroupedInt(tc.in); got != tc.want {
			t.Fatalf("GroupedInt(%d)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatSummary(t *testing.T) {
	if got := FormatSummary(nil); got != "No generation calls yet." {
		t.Fatalf("empty summary = %q", got)
	}

	out := FormatSummary([]Record{
		{Operation: "chat", Success: true, Duration: 2 * time.Second, PromptChars: 1500},
		{Operation: "image", Success: false, Duration: 4 * time.Second},
	})
	for _, want := range []string{
		"Calls: 2 (1 ok, 1 failed), avg 3s",
		"Prompt chars: 1.5K",
		"chat   1 call, avg 2s",
		"image  1 call, avg 4s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
