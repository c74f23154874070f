package obslog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []line {
	t.Helper()
	var out []line
	scanner := bufio.NewScanner(strings.NewReader(buf.String()))
	for scanner.Scan() {
		var l line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			t.Fatalf("decode log line %q: %v", scanner.Text(), err)
		}
		out = append(out, l)
	}
	return out
}

func TestLogger_Info_WritesOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Info("package started", map[string]any{"package_id": "pkg-1"})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].Level != LevelInfo {
		t.Errorf("level = %q, want %q", lines[0].Level, LevelInfo)
	}
	if lines[0].Message != "package started" {
		t.Errorf("message = %q", lines[0].Message)
	}
	if lines[0].Fields["package_id"] != "pkg-1" {
		t.Errorf("fields[package_id] = %v", lines[0].Fields["package_id"])
	}
}

func TestLogger_WarnAndError_SetDistinctLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Warn("retrying activity", nil)
	l.Error("activity exhausted retries", nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Level != LevelWarn {
		t.Errorf("first line level = %q, want %q", lines[0].Level, LevelWarn)
	}
	if lines[1].Level != LevelError {
		t.Errorf("second line level = %q, want %q", lines[1].Level, LevelError)
	}
}

func TestLogger_With_MergesFieldsIntoEveryLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf).With(map[string]any{"workflow_id": "wf-1"})

	l.Info("activity started", map[string]any{"activity": "extract_invoice"})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].Fields["workflow_id"] != "wf-1" {
		t.Errorf("fields[workflow_id] = %v, want wf-1", lines[0].Fields["workflow_id"])
	}
	if lines[0].Fields["activity"] != "extract_invoice" {
		t.Errorf("fields[activity] = %v, want extract_invoice", lines[0].Fields["activity"])
	}
}

func TestLogger_With_DoesNotMutateParentFields(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(&buf)
	child := parent.With(map[string]any{"package_id": "pkg-1"})

	parent.Info("parent event", nil)
	child.Info("child event", nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if _, ok := lines[0].Fields["package_id"]; ok {
		t.Errorf("parent logger line carries child's field: %v", lines[0].Fields)
	}
	if lines[1].Fields["package_id"] != "pkg-1" {
		t.Errorf("child logger missing its own field: %v", lines[1].Fields)
	}
}

func TestNewWithWriter_NilDefaultsToStdout(t *testing.T) {
	l := NewWithWriter(nil)
	if l.writer == nil {
		t.Fatal("writer must default to os.Stdout, not nil")
	}
}
