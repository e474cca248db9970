package usage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HumanCount formats counts with K/M suffixes for quick scanning.
func HumanCount(n int) string {
	if n >= 1_000_000 {
		return formatScaled(float64(n)/1_000_000, "M")
	}
	if n >= 1_000 {
		return formatScaled(float64(n)/1_000, "K")
	}
	return strconv.Itoa(n)
}

// GroupedInt formats integers with comma separators.
func GroupedInt(n int) string {
	s := strconv.Itoa(n)
	if n < 1000 {
		return s
	}

	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

// FormatSummary renders the session totals followed by one line per operation.
func FormatSummary(records []Record) string {
	if len(records) == 0 {
		return "No generation calls yet."
	}

	total := AggregateRecords(records)
	var b strings.Builder
	fmt.Fprintf(&b, "Calls: %s (%d ok, %d failed), avg %s\n",
		GroupedInt(total.Calls), total.Succeeded, total.Failed, roundDuration(total.AverageDuration()))
	fmt.Fprintf(&b, "Prompt chars: %s, output chars: %s\n",
		HumanCount(total.PromptChars), HumanCount(total.OutputChars))

	byOp := OperationBreakdown(records)
	ops := make([]string, 0, len(byOp))
	for op := range byOp {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		agg := byOp[op]
		fmt.Fprintf(&b, "  %-6s %d call%s, avg %s\n", op, agg.Calls, pluralS(agg.Calls), roundDuration(agg.AverageDuration()))
	}
	return strings.TrimRight(b.String(), "\n")
}

func roundDuration(d time.Duration) time.Duration {
	if d >= time.Second {
		return d.Round(100 * time.Millisecond)
	}
	return d.Round(time.Millisecond)
}

func pluralS(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func formatScaled(value float64, suffix string) string {
	s := fmt.Sprintf("%.1f", value)
	s = strings.TrimSuffix(s, ".0")
	return s + suffix
}
