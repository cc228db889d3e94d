// Package ignoremon is the Ignore Monitor: it tracks the user's ignore
// file via content hashing, computes added/removed pattern deltas, and
// classifies the security impact of each delta. It never writes to the
// user's ignore file itself — only to its own baseline snapshot under the
// Project Store.
package ignoremon

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/core/atomicfile"
	"github.com/crashappsec/gitup/pkg/core/errors"
	"github.com/crashappsec/gitup/pkg/core/logging"
	"github.com/crashappsec/gitup/pkg/store"
)

// ChangeReason explains why DetectChanges reported a change (or didn't).
type ChangeReason string

const (
	ReasonUnchanged    ChangeReason = "unchanged"
	ReasonFirstScan    ChangeReason = "first_scan"
	ReasonHashMismatch ChangeReason = "hash_mismatch"
	ReasonDeleted      ChangeReason = "deleted"
	ReasonNoIgnore     ChangeReason = "no_ignore"
)

// SecurityImpact classifies the effect of a single pattern change.
type SecurityImpact string

const (
	ImpactResolvesViolations SecurityImpact = "resolves_violations"
	ImpactCreatesExposures   SecurityImpact = "creates_exposures"
	ImpactNeutral            SecurityImpact = "neutral"
)

// SecurityChange describes the impact of one added or removed pattern.
type SecurityChange struct {
	Pattern        string
	ChangeType     string // "added" or "removed"
	SecurityImpact SecurityImpact
	AffectedFiles  []string
	RiskLevel      catalog.Severity
}

// Delta is the complete result of one AnalyzeDelta call.
type Delta struct {
	Timestamp               time.Time
	HasChanges               bool
	AddedPatterns            []string
	RemovedPatterns          []string
	SecurityChanges          []SecurityChange
	ViolationsResolved       []string
	NewExposures             []string
	GlobalExceptionsMatched  []string
}

// maxAffectedFiles caps the affected-files list per pattern so a broad
// pattern (e.g. "*.log") doesn't produce an unbounded delta.
const maxAffectedFiles = 20

// Monitor tracks one project's ignore file.
type Monitor struct {
	root       string
	ignorePath string
	store      *store.Store
	log        *logging.Logger
}

// New returns a Monitor for root's ".gitignore", persisting its baseline
// and global exceptions through s.
func New(root string, s *store.Store) *Monitor {
	return &Monitor{
		root:       root,
		ignorePath: filepath.Join(root, ".gitignore"),
		store:      s,
		log:        logging.Default().WithProject(root),
	}
}

// DetectChanges compares the ignore file's current hash against the stored
// baseline hash. This is the fast path the scan pipeline calls before
// deciding whether a full AnalyzeDelta is needed.
func (m *Monitor) DetectChanges() (bool, ChangeReason, error) {
	_, ignoreErr := os.Stat(m.ignorePath)
	ignoreExists := ignoreErr == nil

	if !ignoreExists {
		if _, err := os.Stat(m.store.BaselinePath()); err == nil {
			return true, ReasonDeleted, nil
		}
		return false, ReasonNoIgnore, nil
	}

	currentHash, err := hashFile(m.ignorePath)
	if err != nil {
		return false, "", errors.Wrap(err, "hashing ignore file")
	}

	hashBytes, err := os.ReadFile(m.store.BaselineHashPath())
	if os.IsNotExist(err) {
		return true, ReasonFirstScan, nil
	}
	if err != nil {
		return true, ReasonFirstScan, nil
	}

	if strings.TrimSpace(string(hashBytes)) != currentHash {
		return true, ReasonHashMismatch, nil
	}
	return false, ReasonUnchanged, nil
}

// AnalyzeDelta parses the current and baseline pattern sets, computes their
// difference, and classifies the security impact of every added or removed
// pattern.
func (m *Monitor) AnalyzeDelta() (Delta, error) {
	hasChanges, _, err := m.DetectChanges()
	if err != nil {
		return Delta{}, err
	}

	if !hasChanges {
		return Delta{Timestamp: time.Now(), HasChanges: false}, nil
	}

	current, err := parsePatterns(m.ignorePath)
	if err != nil {
		return Delta{}, err
	}
	baseline, err := parsePatterns(m.store.BaselinePath())
	if err != nil {
		return Delta{}, err
	}

	added := setDifference(current, baseline)
	removed := setDifference(baseline, current)

	exceptions, err := m.store.LoadGlobalExceptions()
	if err != nil {
		return Delta{}, err
	}

	delta := Delta{Timestamp: time.Now(), HasChanges: true, AddedPatterns: added, RemovedPatterns: removed}

	for _, pattern := range added {
		change := m.classifyAddition(pattern)
		delta.SecurityChanges = append(delta.SecurityChanges, change)
		if change.SecurityImpact == ImpactResolvesViolations {
			delta.ViolationsResolved = append(delta.ViolationsResolved, change.AffectedFiles...)
		}
		if matched, _ := matchesAny(pattern, exceptions.Patterns); matched {
			delta.GlobalExceptionsMatched = append(delta.GlobalExceptionsMatched, pattern)
		}
	}

	for _, pattern := range removed {
		change := m.classifyRemoval(pattern)
		delta.SecurityChanges = append(delta.SecurityChanges, change)
		if change.SecurityImpact == ImpactCreatesExposures {
			delta.NewExposures = append(delta.NewExposures, change.AffectedFiles...)
		}
	}

	if err := m.logDelta(delta); err != nil {
		m.log.WithError(err).Warn("failed to log ignore delta")
	}

	return delta, nil
}

// classifyAddition determines the security impact of a newly added
// pattern: it resolves an exposure when it matches one of the catalog's
// known security-category globs.
func (m *Monitor) classifyAddition(pattern string) SecurityChange {
	riskType, severity, matched := classifyPattern(pattern)
	affected := m.findFilesMatchingPattern(pattern)

	impact := ImpactNeutral
	level := catalog.SeverityInfo
	if matched {
		impact = ImpactResolvesViolations
		level = severity
	}
	_ = riskType

	return SecurityChange{
		Pattern:        pattern,
		ChangeType:     "added",
		SecurityImpact: impact,
		AffectedFiles:  affected,
		RiskLevel:      level,
	}
}

// classifyRemoval determines the security impact of a removed pattern: it
// creates an exposure when the removed pattern matched a known
// security-category glob, meaning files it used to cover are now visible.
func (m *Monitor) classifyRemoval(pattern string) SecurityChange {
	_, severity, matched := classifyPattern(pattern)
	affected := m.findFilesMatchingPattern(pattern)

	impact := ImpactNeutral
	level := catalog.SeverityInfo
	if matched {
		impact = ImpactCreatesExposures
		level = severity
	}

	return SecurityChange{
		Pattern:        pattern,
		ChangeType:     "removed",
		SecurityImpact: impact,
		AffectedFiles:  affected,
		RiskLevel:      level,
	}
}

// classifyPattern reports whether pattern itself looks like (or literally
// is) one of the catalog's security-category globs.
func classifyPattern(pattern string) (riskType catalog.RiskType, severity catalog.Severity, matched bool) {
	for _, rt := range catalog.OrderedRiskTypes() {
		for _, catalogPattern := range catalog.GlobPatterns[rt] {
			if pattern == catalogPattern {
				return rt, catalog.BaseSeverity[rt], true
			}
			if ok, _ := doublestar.Match(catalogPattern, pattern); ok {
				return rt, catalog.BaseSeverity[rt], true
			}
		}
	}
	return "", catalog.SeverityInfo, false
}

// findFilesMatchingPattern walks the project tree (skipping VCS and store
// metadata) looking for files the pattern would cover, capped at
// maxAffectedFiles.
func (m *Monitor) findFilesMatchingPattern(pattern string) []string {
	var matches []string
	_ = filepath.Walk(m.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || len(matches) >= maxAffectedFiles {
			return nil
		}
		if info.IsDir() {
			name := info.Name()
			if name == ".git" || name == ".gitup" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(pattern, rel); ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if len(matches) > maxAffectedFiles {
		matches = matches[:maxAffectedFiles]
	}
	return matches
}

// UpdateBaseline copies the current ignore file to the store's baseline
// artifacts, or removes both artifacts if the ignore file no longer exists.
func (m *Monitor) UpdateBaseline() error {
	data, err := os.ReadFile(m.ignorePath)
	if os.IsNotExist(err) {
		if rmErr := os.Remove(m.store.BaselinePath()); rmErr != nil && !os.IsNotExist(rmErr) {
			return errors.Wrap(rmErr, "removing baseline")
		}
		if rmErr := os.Remove(m.store.BaselineHashPath()); rmErr != nil && !os.IsNotExist(rmErr) {
			return errors.Wrap(rmErr, "removing baseline hash")
		}
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading ignore file")
	}

	if err := atomicfile.Write(m.store.BaselinePath(), data, 0644); err != nil {
		return err
	}

	hash, err := hashFile(m.ignorePath)
	if err != nil {
		return errors.Wrap(err, "hashing ignore file")
	}
	return atomicfile.Write(m.store.BaselineHashPath(), []byte(hash), 0644)
}

// GlobalExceptionMatches reports whether relPath matches one of the
// project's global exception patterns.
func (m *Monitor) GlobalExceptionMatches(relPath string) (bool, string, error) {
	exceptions, err := m.store.LoadGlobalExceptions()
	if err != nil {
		return false, "", err
	}
	ok, pat := matchesAny(relPath, exceptions.Patterns)
	return ok, pat, nil
}

// AddGlobalException appends pattern to the global exception list if not
// already present.
func (m *Monitor) AddGlobalException(pattern string) (bool, error) {
	exceptions, err := m.store.LoadGlobalExceptions()
	if err != nil {
		return false, err
	}
	for _, p := range exceptions.Patterns {
		if p == pattern {
			return false, nil
		}
	}
	exceptions.Patterns = append(exceptions.Patterns, pattern)
	if err := m.store.SaveGlobalExceptions(exceptions); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveGlobalException removes pattern from the global exception list.
func (m *Monitor) RemoveGlobalException(pattern string) (bool, error) {
	exceptions, err := m.store.LoadGlobalExceptions()
	if err != nil {
		return false, err
	}
	idx := -1
	for i, p := range exceptions.Patterns {
		if p == pattern {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	exceptions.Patterns = append(exceptions.Patterns[:idx], exceptions.Patterns[idx+1:]...)
	if err := m.store.SaveGlobalExceptions(exceptions); err != nil {
		return false, err
	}
	return true, nil
}

// PreOperationCheck runs AnalyzeDelta, updates the baseline when changes
// were found, and logs a summary line per non-trivial delta category. It
// always reports canProceed = true: the monitor only observes and reports,
// the Enforcer is what decides blocking.
func (m *Monitor) PreOperationCheck() (canProceed bool, delta Delta, err error) {
	delta, err = m.AnalyzeDelta()
	if err != nil {
		return false, Delta{}, err
	}

	if delta.HasChanges {
		if len(delta.AddedPatterns) > 0 {
			m.log.Info("ignore file: patterns added", "count", len(delta.AddedPatterns))
		}
		if len(delta.RemovedPatterns) > 0 {
			m.log.Info("ignore file: patterns removed", "count", len(delta.RemovedPatterns))
		}
		if len(delta.ViolationsResolved) > 0 {
			m.log.Info("ignore file: violations auto-resolved", "count", len(delta.ViolationsResolved))
		}
		if len(delta.NewExposures) > 0 {
			m.log.Info("ignore file: new exposures detected", "count", len(delta.NewExposures))
		}

		if err := m.UpdateBaseline(); err != nil {
			return true, delta, err
		}
	}

	return true, delta, nil
}

func (m *Monitor) logDelta(delta Delta) error {
	entry := map[string]any{
		"timestamp":                 delta.Timestamp,
		"added_patterns":            len(delta.AddedPatterns),
		"removed_patterns":          len(delta.RemovedPatterns),
		"violations_resolved":       len(delta.ViolationsResolved),
		"new_exposures":             len(delta.NewExposures),
		"global_exceptions_matched": len(delta.GlobalExceptionsMatched),
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshaling ignore delta log entry")
	}
	return atomicfile.AppendLine(m.store.ChangesLogPath(), line)
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data) //nolint:gosec // change-detection hash, not a security boundary
	return hex.EncodeToString(sum[:]), nil
}

// parsePatterns reads an ignore-style file into a normalized pattern set:
// blank lines and comments dropped, leading "./" and trailing whitespace
// stripped. A missing file yields an empty set rather than an error.
func parsePatterns(path string) (map[string]bool, error) {
	patterns := make(map[string]bool)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return patterns, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "./")
		patterns[line] = true
	}
	return patterns, nil
}

func setDifference(a, b map[string]bool) []string {
	var diff []string
	for k := range a {
		if !b[k] {
			diff = append(diff, k)
		}
	}
	sort.Strings(diff)
	return diff
}

func matchesAny(path string, patterns []string) (bool, string) {
	for _, pattern := range patterns {
		if path == pattern {
			return true, pattern
		}
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true, pattern
		}
	}
	return false, ""
}
