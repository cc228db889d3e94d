package compliance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/ledger"
	"github.com/crashappsec/gitup/pkg/risk"
	"github.com/crashappsec/gitup/pkg/store"
)

func setupEvaluator(t *testing.T) (*Evaluator, *store.Store, string) {
	t.Helper()
	root := t.TempDir()
	s := store.New(root, "0.1.0")
	if _, err := s.Initialize(false, func() string { return "init" }); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	r := risk.New(root, s, catalog.LevelModerate, nil)
	l := ledger.New(s, "0.1.0", "alice", nil)
	return New(root, s, r, l), s, root
}

func TestEvaluate_RiskDetectedWhenSecretPresent(t *testing.T) {
	e, _, root := setupEvaluator(t)
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("API_KEY=x\n"), 0644); err != nil {
		t.Fatalf("writing .env: %v", err)
	}

	report, err := e.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if report.Verdict != VerdictRiskDetected {
		t.Errorf("Verdict = %q, want risk_detected", report.Verdict)
	}
	if report.PotentialSecrets == 0 {
		t.Error("expected PotentialSecrets > 0")
	}
}

func TestEvaluate_PartialComplianceWithoutShadowIgnore(t *testing.T) {
	e, s, _ := setupEvaluator(t)
	_ = os.Remove(s.ShadowIgnorePath())

	report, err := e.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if report.Verdict != VerdictPartialCompliance {
		t.Errorf("Verdict = %q, want partial_compliance", report.Verdict)
	}
}

func TestEvaluate_CompliantWhenClean(t *testing.T) {
	e, s, _ := setupEvaluator(t)
	if err := os.WriteFile(s.ShadowIgnorePath(), []byte("node_modules/\n"), 0644); err != nil {
		t.Fatalf("seeding shadow ignore: %v", err)
	}

	report, err := e.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if report.Verdict != VerdictCompliant {
		t.Errorf("Verdict = %q, want compliant", report.Verdict)
	}
}

func TestStoreSelfExcluded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(path, []byte("node_modules/\n.gitup/\n"), 0644); err != nil {
		t.Fatalf("writing .gitignore: %v", err)
	}
	if !storeSelfExcluded(path) {
		t.Error("expected .gitup/ entry to be recognized as self-excluded")
	}
}

func TestStoreSelfExcluded_Missing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(path, []byte("node_modules/\n"), 0644); err != nil {
		t.Fatalf("writing .gitignore: %v", err)
	}
	if storeSelfExcluded(path) {
		t.Error("expected no self-exclusion entry to be found")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	e, s, _ := setupEvaluator(t)
	if err := os.WriteFile(s.ShadowIgnorePath(), []byte("node_modules/\n"), 0644); err != nil {
		t.Fatalf("seeding shadow ignore: %v", err)
	}

	want, err := e.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	got, ok, err := Load(s)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a persisted compliance report")
	}
	if got.Verdict != want.Verdict {
		t.Errorf("Verdict = %q, want %q", got.Verdict, want.Verdict)
	}
}
