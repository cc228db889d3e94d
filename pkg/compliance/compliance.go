// Package compliance implements the Compliance Evaluator: it combines a
// fresh Risk Detector run, Decision Ledger statistics, on-disk presence
// checks, VCS-level checks, and a recent audit slice into a single
// ComplianceReport, grounded on the original's security_interface.py
// dashboard summary.
package compliance

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/crashappsec/gitup/pkg/core/audit"
	"github.com/crashappsec/gitup/pkg/core/errors"
	"github.com/crashappsec/gitup/pkg/ledger"
	"github.com/crashappsec/gitup/pkg/risk"
	"github.com/crashappsec/gitup/pkg/store"
	"github.com/crashappsec/gitup/pkg/vcs"
)

// Verdict is the overall compliance outcome for a project.
type Verdict string

const (
	VerdictCompliant         Verdict = "compliant"
	VerdictPartialCompliance Verdict = "partial_compliance"
	VerdictRiskDetected      Verdict = "risk_detected"
	VerdictUnknown           Verdict = "unknown"
)

// FileCompliance reports on-disk presence and VCS-level checks.
type FileCompliance struct {
	IgnoreFileExists   bool `json:"ignore_file_exists"`
	ShadowIgnoreExists bool `json:"shadow_ignore_exists"`
	StoreFilesPresent  bool `json:"store_files_present"`
	RepoPresent        bool `json:"repo_present"`
	StoreSelfExcluded  bool `json:"store_self_excluded"`
}

// Report is the full output of a compliance evaluation.
type Report struct {
	ProjectPath      string            `json:"project_path"`
	Timestamp        time.Time         `json:"timestamp"`
	Verdict          Verdict           `json:"verdict"`
	RiskCounts       map[string]int    `json:"risk_counts"`
	PotentialSecrets int               `json:"potential_secrets"`
	LedgerStats      ledger.Statistics `json:"ledger_stats"`
	FileCompliance   FileCompliance    `json:"file_compliance"`
	RecentAudit      []audit.Entry     `json:"recent_audit"`
}

// recentAuditWindow bounds how many of the most recent audit entries ride
// along in a compliance report.
const recentAuditWindow = 20

// Evaluator runs a compliance evaluation for one project.
type Evaluator struct {
	root   string
	store  *store.Store
	risk   *risk.Detector
	ledger *ledger.Ledger
}

// New returns an Evaluator wired to the given detector and ledger.
func New(root string, s *store.Store, r *risk.Detector, l *ledger.Ledger) *Evaluator {
	return &Evaluator{root: root, store: s, risk: r, ledger: l}
}

// Evaluate runs a fresh Risk Detector scan, gathers ledger statistics and
// presence/VCS checks, determines the overall verdict, and persists the
// resulting report.
func (e *Evaluator) Evaluate() (Report, error) {
	// Presence checks are captured before the scan runs: the Risk
	// Detector's pre-scan shadow-ignore sync would otherwise create the
	// very artifact this check is meant to notice is missing.
	fc := e.fileCompliance()

	assessment, err := e.risk.Scan()
	if err != nil {
		return Report{}, err
	}

	stats, err := e.ledger.Statistics()
	if err != nil {
		return Report{}, err
	}

	trail, err := e.store.AuditTrail()
	if err != nil {
		return Report{}, err
	}
	recent := trail
	if len(recent) > recentAuditWindow {
		recent = recent[len(recent)-recentAuditWindow:]
	}

	riskCounts := make(map[string]int, len(assessment.CountsBySeverity))
	for sev, count := range assessment.CountsBySeverity {
		riskCounts[string(sev)] = count
	}
	potentialSecrets := 0
	for _, r := range assessment.Risks {
		if isSecretRiskType(string(r.RiskType)) {
			potentialSecrets++
		}
	}

	report := Report{
		ProjectPath:      e.root,
		Timestamp:        time.Now(),
		Verdict:          determineVerdict(potentialSecrets, fc.ShadowIgnoreExists),
		RiskCounts:       riskCounts,
		PotentialSecrets: potentialSecrets,
		LedgerStats:      stats,
		FileCompliance:   fc,
		RecentAudit:      recent,
	}

	if err := store.SaveCompliance(e.store, report); err != nil {
		return Report{}, err
	}
	return report, nil
}

// determineVerdict implements spec.md §4.8's determination rule exactly:
// any potential-secrets count above zero always wins, then shadow-ignore
// absence, then compliant.
func determineVerdict(potentialSecrets int, shadowIgnoreExists bool) Verdict {
	switch {
	case potentialSecrets > 0:
		return VerdictRiskDetected
	case !shadowIgnoreExists:
		return VerdictPartialCompliance
	default:
		return VerdictCompliant
	}
}

func isSecretRiskType(riskType string) bool {
	switch riskType {
	case "secret_file", "credential_pattern", "api_key_pattern":
		return true
	default:
		return false
	}
}

// fileCompliance runs the on-disk presence and VCS-level checks: ignore
// file exists, shadow ignore exists, store files present, repo present,
// and `.gitup/` excluded from the user ignore (Supplemented Feature #2 —
// folded in as a first-class gap rather than a best-effort warning).
func (e *Evaluator) fileCompliance() FileCompliance {
	fc := FileCompliance{
		ShadowIgnoreExists: fileExists(e.store.ShadowIgnorePath()),
		StoreFilesPresent:  fileExists(e.store.Dir()),
	}

	for _, name := range []string{".gitignore", ".hgignore", ".ignore"} {
		if fileExists(filepath.Join(e.root, name)) {
			fc.IgnoreFileExists = true
			fc.StoreSelfExcluded = storeSelfExcluded(filepath.Join(e.root, name))
			break
		}
	}

	if vcs.IsRepo(e.root) {
		fc.RepoPresent = true
	}

	return fc
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// storeSelfExcluded reports whether the user ignore file at ignorePath
// contains a pattern that would exclude the .gitup directory.
func storeSelfExcluded(ignorePath string) bool {
	data, err := os.ReadFile(ignorePath)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "./")
		candidate := strings.TrimSuffix(line, "/")
		if candidate == ".gitup" || candidate == "**/.gitup" {
			return true
		}
		if ok, _ := doublestar.Match(line, ".gitup/"); ok {
			return true
		}
		if ok, _ := doublestar.Match(line, ".gitup"); ok {
			return true
		}
	}
	return false
}

// Load reads back the most recently persisted compliance report.
func Load(s *store.Store) (Report, bool, error) {
	report, ok, err := store.LoadCompliance[Report](s)
	if err != nil {
		return Report{}, false, errors.Wrap(err, "loading compliance report")
	}
	return report, ok, nil
}
