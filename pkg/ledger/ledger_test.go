package ledger

import (
	"testing"
	"time"

	"github.com/crashappsec/gitup/pkg/store"
)

func setupLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	s := store.New(dir, "0.1.0")
	if _, err := s.Initialize(false, func() string { return "init" }); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	n := 0
	idGen := func() string {
		n++
		return "id-" + itoa(n)
	}
	return New(s, "0.1.0", "alice", idGen)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestAdd_AndGetByPattern(t *testing.T) {
	l := setupLedger(t)

	id, err := l.Add("*.env", DecisionIgnorePermanently, "known fixture secret", 0.9, nil, nil, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}

	d, ok, err := l.GetByPattern(".env")
	if err != nil {
		t.Fatalf("GetByPattern failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a matching decision")
	}
	if d.DecisionType != DecisionIgnorePermanently {
		t.Errorf("DecisionType = %q, want ignore_permanently", d.DecisionType)
	}
}

func TestGetByPattern_ExactPathTakesPrecedence(t *testing.T) {
	l := setupLedger(t)

	if _, err := l.Add("*.log", DecisionIgnorePermanently, "noisy logs", 0.5, nil, nil, nil); err != nil {
		t.Fatalf("Add glob failed: %v", err)
	}
	if _, err := l.Add("debug.log", DecisionReviewLater, "needs a closer look", 0.5, nil, nil, nil); err != nil {
		t.Fatalf("Add exact failed: %v", err)
	}

	d, ok, err := l.GetByPattern("debug.log")
	if err != nil {
		t.Fatalf("GetByPattern failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if d.DecisionType != DecisionReviewLater {
		t.Errorf("DecisionType = %q, want review_later (exact path should win over glob)", d.DecisionType)
	}
}

func TestGetByPattern_ExpiredDecisionMovesToAuditTrail(t *testing.T) {
	l := setupLedger(t)

	past := time.Now().Add(-time.Hour)
	id, err := l.Add("*.tmp", DecisionIgnoreTemporarily, "scratch file", 0.5, nil, &past, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	_, ok, err := l.GetByPattern("scratch.tmp")
	if err != nil {
		t.Fatalf("GetByPattern failed: %v", err)
	}
	if ok {
		t.Error("expected the expired decision to be excluded")
	}

	all, err := l.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if _, stillPresent := all[id]; stillPresent {
		t.Error("expired decision should have been removed from the active set")
	}

	stats, err := l.Statistics()
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalsByAction["expired"] != 1 {
		t.Errorf("expired audit entries = %d, want 1", stats.TotalsByAction["expired"])
	}
}

func TestUpdate_RecordsChangedFields(t *testing.T) {
	l := setupLedger(t)

	id, err := l.Add("*.bak", DecisionSafe, "backup convention", 0.8, nil, nil, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ok, err := l.Update(id, func(d *UserDecision) { d.Reason = "reviewed again" })
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !ok {
		t.Fatal("expected Update to report success")
	}

	all, err := l.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if all[id].Reason != "reviewed again" {
		t.Errorf("Reason = %q, want %q", all[id].Reason, "reviewed again")
	}
}

func TestDelete_SoftDeletesAndKeepsAuditEntry(t *testing.T) {
	l := setupLedger(t)

	id, err := l.Add("*.bak", DecisionSafe, "backup convention", 0.8, nil, nil, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ok, err := l.Delete(id)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !ok {
		t.Fatal("expected Delete to report success")
	}

	all, err := l.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if _, present := all[id]; present {
		t.Error("deleted decision should no longer be active")
	}

	if ok, err := l.Delete(id); ok || err != nil {
		t.Errorf("deleting an already-deleted id should report false, got ok=%v err=%v", ok, err)
	}

	stats, err := l.Statistics()
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalsByAction["updated"] != 1 {
		t.Errorf("updated audit entries = %d, want 1 for the soft delete", stats.TotalsByAction["updated"])
	}
}

func TestExpiredAndDueForReview(t *testing.T) {
	l := setupLedger(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	if _, err := l.Add("a.tmp", DecisionIgnoreTemporarily, "scratch", 0.5, &past, nil, nil); err != nil {
		t.Fatalf("Add due-for-review failed: %v", err)
	}
	if _, err := l.Add("b.tmp", DecisionIgnoreTemporarily, "scratch", 0.5, &future, nil, nil); err != nil {
		t.Fatalf("Add not-yet-due failed: %v", err)
	}

	due, err := l.DueForReview()
	if err != nil {
		t.Fatalf("DueForReview failed: %v", err)
	}
	if len(due) != 1 || due[0].Pattern != "a.tmp" {
		t.Errorf("DueForReview = %+v, want just a.tmp", due)
	}

	expired, err := l.Expired()
	if err != nil {
		t.Fatalf("Expired failed: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("Expired = %+v, want none (neither decision has an ExpiresAt)", expired)
	}
}

func TestExportImport_Merge(t *testing.T) {
	l := setupLedger(t)
	dir := t.TempDir()
	exportPath := dir + "/ledger-export.json"

	if _, err := l.Add("*.env", DecisionIgnorePermanently, "secret fixture", 0.9, nil, nil, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := l.Export(exportPath); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	l2 := setupLedger(t)
	if _, err := l2.Add("*.log", DecisionSafe, "noisy but harmless", 0.7, nil, nil, nil); err != nil {
		t.Fatalf("seeding second ledger failed: %v", err)
	}

	count, err := l2.Import(exportPath, ImportMerge)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Import count = %d, want 1", count)
	}

	all, err := l2.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 decisions after merge, got %d", len(all))
	}
}

func TestStatistics_ComputesSecurityScore(t *testing.T) {
	l := setupLedger(t)

	if _, err := l.Add("*.env", DecisionIgnorePermanently, "accepted risk", 0.9, nil, nil, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := l.Add("*.md", DecisionReviewLater, "needs follow-up", 0.5, nil, nil, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	stats, err := l.Statistics()
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalsByDecision[DecisionIgnorePermanently] != 1 {
		t.Errorf("TotalsByDecision[ignore_permanently] = %d, want 1", stats.TotalsByDecision[DecisionIgnorePermanently])
	}
	if stats.SecurityScore <= 0 || stats.SecurityScore > 100 {
		t.Errorf("SecurityScore = %v, want a value in (0, 100]", stats.SecurityScore)
	}
}

func TestValidateIntegrity_FlagsBadConfidence(t *testing.T) {
	l := setupLedger(t)

	if _, err := l.Add("*.env", DecisionSafe, "manual entry", 5.0, nil, nil, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	report, err := l.ValidateIntegrity()
	if err != nil {
		t.Fatalf("ValidateIntegrity failed: %v", err)
	}
	if report.Valid {
		t.Error("expected ValidateIntegrity to flag the out-of-range confidence")
	}
	if len(report.Issues) == 0 {
		t.Error("expected at least one reported issue")
	}
}
