// Package review implements the Security Review Orchestrator: it drives a
// scan -> present -> collect -> apply -> reassess -> enforce session.
// Presentation is delegated entirely to a caller-supplied Presenter so this
// package has no terminal or network dependency of its own.
package review

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/core/atomicfile"
	"github.com/crashappsec/gitup/pkg/core/audit"
	"github.com/crashappsec/gitup/pkg/core/errors"
	"github.com/crashappsec/gitup/pkg/enforcer"
	"github.com/crashappsec/gitup/pkg/ledger"
	"github.com/crashappsec/gitup/pkg/risk"
	"github.com/crashappsec/gitup/pkg/store"
)

// Choice is a UI's answer to "what should happen to this risk".
type Choice struct {
	Decision   ledger.Decision
	Reason     string
	Confidence float64
	ExpiresAt  *time.Time
}

// Presenter collects decisions from whatever UI is driving the session.
// Decide is called once per risk, in the orchestrator's deterministic
// order. ConfirmRemoval is called twice before a remove_file decision is
// actually carried out, per spec.md's "confirm twice" requirement; either
// call returning false aborts that one removal.
type Presenter interface {
	Decide(r risk.SecurityRisk) (Choice, error)
	ConfirmRemoval(r risk.SecurityRisk) bool
}

// Status summarizes how a Run concluded.
type Status string

const (
	StatusClean              Status = "clean"
	StatusViolationsDetected Status = "violations_detected"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// AppliedDecision records what happened to one risk during a review.
type AppliedDecision struct {
	Path     string
	Decision ledger.Decision
	Applied  bool
	Error    string
}

// Result is the outcome of a review session.
type Result struct {
	Status           Status
	TotalRisks       int
	BlockingCount    int
	CountsBySeverity map[catalog.Severity]int
	Applied          []AppliedDecision
}

// Orchestrator drives one project's review session.
type Orchestrator struct {
	root        string
	store       *store.Store
	risk        *risk.Detector
	enforcer    *enforcer.Enforcer
	ledger      *ledger.Ledger
	userID      string
	toolVersion string
}

// New returns an Orchestrator wired to the given components.
func New(root string, s *store.Store, r *risk.Detector, e *enforcer.Enforcer, l *ledger.Ledger, userID, toolVersion string) *Orchestrator {
	return &Orchestrator{root: root, store: s, risk: r, enforcer: e, ledger: l, userID: userID, toolVersion: toolVersion}
}

// Run executes one review session. When interactive is false, step 4's
// per-risk presentation is skipped entirely and the blocking subset is
// persisted as-is. When interactive is true, p must be non-nil.
func (o *Orchestrator) Run(interactive bool, p Presenter) (Result, error) {
	assessment, err := o.risk.Scan()
	if err != nil {
		return Result{}, err
	}

	if assessment.TotalRisks() == 0 {
		if err := o.enforcer.ClearViolations(); err != nil {
			return Result{}, err
		}
		return Result{Status: StatusClean, CountsBySeverity: assessment.CountsBySeverity}, nil
	}

	if !interactive {
		if err := o.enforcer.FromAssessment(assessment); err != nil {
			return Result{}, err
		}
		return Result{
			Status:           StatusViolationsDetected,
			TotalRisks:       assessment.TotalRisks(),
			BlockingCount:    len(assessment.BlockingViolations),
			CountsBySeverity: assessment.CountsBySeverity,
		}, nil
	}

	ordered := orderBySeverityThenPath(assessment.Risks)
	applied := make([]AppliedDecision, 0, len(ordered))

	for _, r := range ordered {
		choice, err := p.Decide(r)
		if err != nil {
			if errors.IsCancelled(err) {
				return Result{Status: StatusCancelled, Applied: applied}, nil
			}
			return Result{}, err
		}

		ok, applyErr := o.apply(r, choice, p)
		ad := AppliedDecision{Path: r.FilePath, Decision: choice.Decision, Applied: ok}
		if applyErr != nil {
			ad.Error = applyErr.Error()
		}
		applied = append(applied, ad)
	}

	final, err := o.risk.Scan()
	if err != nil {
		return Result{}, err
	}
	if err := o.enforcer.FromAssessment(final); err != nil {
		return Result{}, err
	}

	return Result{
		Status:           StatusCompleted,
		TotalRisks:       final.TotalRisks(),
		BlockingCount:    len(final.BlockingViolations),
		CountsBySeverity: final.CountsBySeverity,
		Applied:          applied,
	}, nil
}

// ApplyBulk applies choice to every risk in the most recent assessment
// matching predicate, as a single transaction in the orchestrator's
// deterministic enumeration order. It does not re-run the scan afterward;
// callers that need a fresh enforcement snapshot should follow with Run.
func (o *Orchestrator) ApplyBulk(predicate func(risk.SecurityRisk) bool, choice Choice, p Presenter) ([]AppliedDecision, error) {
	assessment, err := o.risk.Scan()
	if err != nil {
		return nil, err
	}

	var matching []risk.SecurityRisk
	for _, r := range assessment.Risks {
		if predicate(r) {
			matching = append(matching, r)
		}
	}
	ordered := orderBySeverityThenPath(matching)

	applied := make([]AppliedDecision, 0, len(ordered))
	for _, r := range ordered {
		ok, applyErr := o.apply(r, choice, p)
		ad := AppliedDecision{Path: r.FilePath, Decision: choice.Decision, Applied: ok}
		if applyErr != nil {
			ad.Error = applyErr.Error()
		}
		applied = append(applied, ad)
	}
	return applied, nil
}

// Predicate helpers for the bulk actions the specification names.
func AllLogFiles(r risk.SecurityRisk) bool  { return r.RiskType == catalog.RiskLogFile }
func AllTempFiles(r risk.SecurityRisk) bool { return r.RiskType == catalog.RiskTemporaryFile }
func AllLowRisk(r risk.SecurityRisk) bool {
	return r.RiskLevel == catalog.SeverityLow || r.RiskLevel == catalog.SeverityInfo
}

// orderBySeverityThenPath implements spec.md §5's ordering guarantee:
// descending severity, then ascending path as a deterministic tiebreak.
func orderBySeverityThenPath(risks []risk.SecurityRisk) []risk.SecurityRisk {
	ordered := make([]risk.SecurityRisk, len(risks))
	copy(ordered, risks)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := ordered[i].RiskLevel.Score(), ordered[j].RiskLevel.Score()
		if si != sj {
			return si > sj
		}
		return ordered[i].FilePath < ordered[j].FilePath
	})
	return ordered
}

// apply carries out one decision and records an audit entry. It returns
// ok=false (without error) for a no-op decision (review_later, skip) or a
// removal the user declined to confirm.
func (o *Orchestrator) apply(r risk.SecurityRisk, choice Choice, p Presenter) (bool, error) {
	switch choice.Decision {
	case ledger.DecisionAddToUserIgnore:
		pattern := SmartPattern(r.FilePath, r.RiskType)
		if err := appendIgnoreEntry(filepath.Join(o.root, ".gitignore"), pattern); err != nil {
			return false, err
		}
		return true, o.audit(audit.ActionIgnoreDelta, map[string]any{
			"path": r.FilePath, "pattern": pattern, "target": "user_ignore",
		})

	case ledger.DecisionAddToShadowIgnore:
		pattern := SmartPattern(r.FilePath, r.RiskType)
		if err := appendIgnoreEntry(o.store.ShadowIgnorePath(), pattern); err != nil {
			return false, err
		}
		return true, o.audit(audit.ActionIgnoreDelta, map[string]any{
			"path": r.FilePath, "pattern": pattern, "target": "shadow_ignore",
		})

	case ledger.DecisionIgnorePermanently:
		if _, err := o.ledger.Add(r.FilePath, choice.Decision, choice.Reason, choice.Confidence, nil, nil, nil); err != nil {
			return false, err
		}
		return true, nil

	case ledger.DecisionIgnoreTemporarily:
		if _, err := o.ledger.Add(r.FilePath, choice.Decision, choice.Reason, choice.Confidence, nil, choice.ExpiresAt, nil); err != nil {
			return false, err
		}
		return true, nil

	case ledger.DecisionRemoveFile:
		if !p.ConfirmRemoval(r) || !p.ConfirmRemoval(r) {
			return false, nil
		}
		path := filepath.Join(o.root, r.FilePath)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, errors.Wrapf(err, "removing %s", path)
		}
		return true, o.audit(audit.ActionUpdated, map[string]any{
			"path": r.FilePath, "operation": "remove_file",
		})

	case ledger.DecisionEncryptFile, ledger.DecisionRename, ledger.DecisionSafe:
		if _, err := o.ledger.Add(r.FilePath, choice.Decision, choice.Reason, choice.Confidence, nil, nil, nil); err != nil {
			return false, err
		}
		return true, nil

	case ledger.DecisionReviewLater:
		fallthrough
	default:
		return false, nil
	}
}

func (o *Orchestrator) audit(action audit.Action, details map[string]any) error {
	return o.store.AppendAudit(audit.New(newAuditID(), action, o.userID, o.toolVersion, "", details))
}

// newAuditID is a var so tests could substitute a deterministic generator;
// production code uses a time-seeded value since audit IDs only need to be
// unique within one process's append sequence, not globally addressable.
var newAuditID = func() string {
	return time.Now().Format("20060102T150405.000000000")
}

// appendIgnoreEntry appends pattern to the ignore file at path under a
// "added by GitUp security review" header, creating the file if absent.
func appendIgnoreEntry(path, pattern string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "reading %s", path)
	}

	content := string(existing)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += "# added by GitUp security review\n" + pattern + "\n"

	return atomicfile.Write(path, []byte(content), 0644)
}

// SmartPattern chooses the narrowest globally-useful glob for path, per
// spec.md §4.9's synthesis rules, using riskType to disambiguate
// extension-only heuristics (e.g. a .bak under risk type backup_file vs.
// one used generically elsewhere).
func SmartPattern(path string, riskType catalog.RiskType) string {
	slashed := filepath.ToSlash(path)
	segments := strings.Split(slashed, "/")
	ext := filepath.Ext(slashed)

	if riskType == catalog.RiskIDEConfig && len(segments) > 1 {
		return segments[0] + "/"
	}

	dir := filepath.ToSlash(filepath.Dir(slashed))
	if ext != "" && (dir == "config" || strings.HasSuffix(dir, "/config") || strings.Contains(dir, "/config/")) {
		return "**/config/*" + ext
	}

	if riskType == catalog.RiskDatabaseFile {
		return "*.db"
	}
	if riskType == catalog.RiskBackupFile && ext != "" {
		return "*" + ext
	}
	if riskType == catalog.RiskLogFile {
		return "*.log"
	}
	if riskType == catalog.RiskTemporaryFile && ext != "" {
		return "*" + ext
	}
	if (riskType == catalog.RiskSecretFile || riskType == catalog.RiskSensitiveConfig || riskType == catalog.RiskCredentialPattern || riskType == catalog.RiskAPIKeyPattern) && ext != "" {
		return "*" + ext
	}

	return path
}
