package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		" WARN ":  WARN,
		"warning": WARN,
		"error":   ERROR,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltersConsole(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(WARN)
	InfoC("agent", "hidden")
	WarnCF("agent", "shown", map[string]interface{}{"b": 2, "a": 1})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at WARN level: %q", out)
	}
	if !strings.Contains(out, "[WARN] agent: shown {a=1, b=2}") {
		t.Fatalf("unexpected console line: %q", out)
	}
}

func TestFileLoggingWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "logs", "polychat.log")
	if err := EnableFileLogging(path); err != nil {
		t.Fatalf("EnableFileLogging: %v", err)
	}
	ErrorCF("gateway", "call failed", map[string]interface{}{"op": "chat"})
	DisableFileLogging()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode entry: %v (%q)", err, data)
	}
	if entry.Level != "ERROR" || entry.Component != "gateway" || entry.Message != "call failed" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Fields["op"] != "chat" {
		t.Fatalf("fields = %v, want op=chat", entry.Fields)
	}
}
