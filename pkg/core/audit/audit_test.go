package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	e := New("e1", ActionCreated, "alice", "0.1.0", "abc123", map[string]any{"security_level": "moderate"})

	if e.ID != "e1" {
		t.Errorf("ID = %q, want e1", e.ID)
	}
	if e.Action != ActionCreated {
		t.Errorf("Action = %q, want created", e.Action)
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	entries := []Entry{
		New("e1", ActionCreated, "alice", "0.1.0", "abc123", nil),
		New("e2", ActionDecisionAdded, "alice", "0.1.0", "abc123", map[string]any{"pattern": "*.env"}),
		New("e3", ActionViolationBlocked, "alice", "0.1.0", "abc123", map[string]any{"path": ".env"}),
	}

	for _, e := range entries {
		if err := Append(path, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].ID != "e1" || got[2].ID != "e3" {
		t.Errorf("entries out of order: %+v", got)
	}
	if got[1].Details["pattern"] != "*.env" {
		t.Errorf("details not round-tripped: %+v", got[1].Details)
	}
}

func TestReadAll_MissingFile(t *testing.T) {
	dir := t.TempDir()
	entries, err := ReadAll(filepath.Join(dir, "does-not-exist.log"))
	if err != nil {
		t.Fatalf("ReadAll on missing file should not error: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries, got %v", entries)
	}
}

func TestReadAll_SkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	if err := Append(path, New("e1", ActionCreated, "alice", "0.1.0", "abc", nil)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	// Simulate a crash mid-write by appending a malformed line directly.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("opening log for corrupt append: %v", err)
	}
	if _, err := f.WriteString("{not valid json\n"); err != nil {
		t.Fatalf("writing corrupt line: %v", err)
	}
	f.Close()
	if err := Append(path, New("e2", ActionReviewed, "alice", "0.1.0", "abc", nil)); err != nil {
		t.Fatalf("second Append failed: %v", err)
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2 (corrupt line skipped): %+v", len(got), got)
	}
}

func TestTrim(t *testing.T) {
	entries := make([]Entry, 5)
	for i := range entries {
		entries[i] = New(string(rune('a'+i)), ActionCreated, "alice", "0.1.0", "abc", nil)
	}

	trimmed := Trim(entries, 2)
	if len(trimmed) != 2 {
		t.Fatalf("got %d entries, want 2", len(trimmed))
	}
	if trimmed[0].ID != "d" || trimmed[1].ID != "e" {
		t.Errorf("trim kept wrong tail: %+v", trimmed)
	}

	if got := Trim(entries, 0); len(got) != 5 {
		t.Errorf("keep<=0 should be a no-op, got %d", len(got))
	}
	if got := Trim(entries, 100); len(got) != 5 {
		t.Errorf("keep>len should be a no-op, got %d", len(got))
	}
}
