package ignoremon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crashappsec/gitup/pkg/store"
)

func setupProject(t *testing.T) (root string, s *store.Store) {
	t.Helper()
	root = t.TempDir()
	s = store.New(root, "0.1.0")
	if _, err := s.Initialize(false, func() string { return "init" }); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return root, s
}

func writeIgnore(t *testing.T, root, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte(content), 0644); err != nil {
		t.Fatalf("writing .gitignore: %v", err)
	}
}

func TestDetectChanges_NoIgnore(t *testing.T) {
	root, s := setupProject(t)
	m := New(root, s)

	changed, reason, err := m.DetectChanges()
	if err != nil {
		t.Fatalf("DetectChanges failed: %v", err)
	}
	if changed || reason != ReasonNoIgnore {
		t.Errorf("DetectChanges() = (%v, %q), want (false, no_ignore)", changed, reason)
	}
}

func TestDetectChanges_FirstScan(t *testing.T) {
	root, s := setupProject(t)
	writeIgnore(t, root, "node_modules/\n")
	m := New(root, s)

	changed, reason, err := m.DetectChanges()
	if err != nil {
		t.Fatalf("DetectChanges failed: %v", err)
	}
	if !changed || reason != ReasonFirstScan {
		t.Errorf("DetectChanges() = (%v, %q), want (true, first_scan)", changed, reason)
	}
}

func TestAnalyzeDelta_AddedSecurityPattern(t *testing.T) {
	root, s := setupProject(t)
	writeIgnore(t, root, "node_modules/\n")
	m := New(root, s)

	if err := m.UpdateBaseline(); err != nil {
		t.Fatalf("UpdateBaseline failed: %v", err)
	}

	writeIgnore(t, root, "node_modules/\n*.env\n")

	delta, err := m.AnalyzeDelta()
	if err != nil {
		t.Fatalf("AnalyzeDelta failed: %v", err)
	}
	if !delta.HasChanges {
		t.Fatal("expected HasChanges = true")
	}
	if len(delta.AddedPatterns) != 1 || delta.AddedPatterns[0] != "*.env" {
		t.Errorf("AddedPatterns = %v, want [*.env]", delta.AddedPatterns)
	}

	found := false
	for _, c := range delta.SecurityChanges {
		if c.Pattern == "*.env" && c.SecurityImpact == ImpactResolvesViolations {
			found = true
		}
	}
	if !found {
		t.Errorf("expected *.env to resolve a violation, got %+v", delta.SecurityChanges)
	}
}

func TestAnalyzeDelta_RemovedSecurityPattern(t *testing.T) {
	root, s := setupProject(t)
	writeIgnore(t, root, "*.env\n")
	m := New(root, s)
	if err := m.UpdateBaseline(); err != nil {
		t.Fatalf("UpdateBaseline failed: %v", err)
	}

	writeIgnore(t, root, "\n")

	delta, err := m.AnalyzeDelta()
	if err != nil {
		t.Fatalf("AnalyzeDelta failed: %v", err)
	}
	if len(delta.RemovedPatterns) != 1 || delta.RemovedPatterns[0] != "*.env" {
		t.Errorf("RemovedPatterns = %v, want [*.env]", delta.RemovedPatterns)
	}

	found := false
	for _, c := range delta.SecurityChanges {
		if c.Pattern == "*.env" && c.SecurityImpact == ImpactCreatesExposures {
			found = true
		}
	}
	if !found {
		t.Errorf("expected removing *.env to create an exposure, got %+v", delta.SecurityChanges)
	}
}

func TestUpdateBaseline_RemovesArtifactsWhenIgnoreDeleted(t *testing.T) {
	root, s := setupProject(t)
	writeIgnore(t, root, "*.env\n")
	m := New(root, s)
	if err := m.UpdateBaseline(); err != nil {
		t.Fatalf("UpdateBaseline failed: %v", err)
	}

	if err := os.Remove(filepath.Join(root, ".gitignore")); err != nil {
		t.Fatalf("removing .gitignore: %v", err)
	}
	if err := m.UpdateBaseline(); err != nil {
		t.Fatalf("UpdateBaseline after delete failed: %v", err)
	}

	if _, err := os.Stat(s.BaselinePath()); !os.IsNotExist(err) {
		t.Error("expected baseline file to be removed")
	}
	if _, err := os.Stat(s.BaselineHashPath()); !os.IsNotExist(err) {
		t.Error("expected baseline hash file to be removed")
	}
}

func TestGlobalExceptions(t *testing.T) {
	root, s := setupProject(t)
	m := New(root, s)

	matched, pattern, err := m.GlobalExceptionMatches("docs/readme.md")
	if err != nil {
		t.Fatalf("GlobalExceptionMatches failed: %v", err)
	}
	if !matched || pattern != "docs/*.md" {
		t.Errorf("GlobalExceptionMatches(docs/readme.md) = (%v, %q), want (true, docs/*.md)", matched, pattern)
	}

	added, err := m.AddGlobalException("*.scratch")
	if err != nil {
		t.Fatalf("AddGlobalException failed: %v", err)
	}
	if !added {
		t.Error("expected AddGlobalException to report added = true")
	}

	matched, _, err = m.GlobalExceptionMatches("notes.scratch")
	if err != nil {
		t.Fatalf("GlobalExceptionMatches failed: %v", err)
	}
	if !matched {
		t.Error("expected notes.scratch to match the newly added exception")
	}

	removed, err := m.RemoveGlobalException("*.scratch")
	if err != nil {
		t.Fatalf("RemoveGlobalException failed: %v", err)
	}
	if !removed {
		t.Error("expected RemoveGlobalException to report removed = true")
	}
}

func TestPreOperationCheck_AlwaysProceeds(t *testing.T) {
	root, s := setupProject(t)
	writeIgnore(t, root, "*.env\n")
	m := New(root, s)

	canProceed, delta, err := m.PreOperationCheck()
	if err != nil {
		t.Fatalf("PreOperationCheck failed: %v", err)
	}
	if !canProceed {
		t.Error("PreOperationCheck should always report canProceed = true")
	}
	if !delta.HasChanges {
		t.Error("expected a first-scan delta")
	}

	// Baseline should now be up to date; a second call reports no changes.
	_, delta2, err := m.PreOperationCheck()
	if err != nil {
		t.Fatalf("second PreOperationCheck failed: %v", err)
	}
	if delta2.HasChanges {
		t.Errorf("expected no changes on second check, got %+v", delta2)
	}
}
