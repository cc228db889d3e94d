// Package risk is the Risk Detector: it walks a project's working tree,
// applies the Pattern Catalog's globs and content regexes, and produces a
// SecurityAssessment. It never mutates a project file. It writes the shadow
// ignore list it maintains alongside the user's ignore file and, through the
// Ignore Monitor's pre-scan check, the ignore baseline and change log.
package risk

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/core/atomicfile"
	"github.com/crashappsec/gitup/pkg/core/errors"
	"github.com/crashappsec/gitup/pkg/ignoremon"
	"github.com/crashappsec/gitup/pkg/store"
	"github.com/crashappsec/gitup/pkg/vcs"
)

// maxScanSize skips files larger than this entirely; nothing this big is
// worth classifying, and reading it would blow the scan budget.
const maxScanSize = 100 * 1024 * 1024

// largeFileThreshold flags a file as a large-binary risk above this size.
const largeFileThreshold = 10 * 1024 * 1024

// maxContentScanSize caps which files get content-regex scanning.
const maxContentScanSize = 1024 * 1024

// securityKeywords mark an ignore pattern as security-relevant; such
// patterns are kept out of the shadow ignore sync so they stay auditable
// through the Decision Ledger instead of silently suppressed.
var securityKeywords = []string{
	"secret", "key", "password", "token", "credential", "auth",
	"cert", "pem", "p12", "keystore", "env", "config",
}

// SecurityRisk is one detected issue, matching spec.md's SecurityRisk
// entity. lineNumber is detection-internal state used by the resolution
// filter for credential-pattern risks; it has no public accessor since
// nothing outside this package needs it once filtering is done.
type SecurityRisk struct {
	FilePath          string
	RiskType          catalog.RiskType
	RiskLevel         catalog.Severity
	Description       string
	Recommendation    string
	PatternMatched    string
	FileSize          int64
	LastModified      time.Time
	IsTrackedByVCS    bool
	UserDecision      string
	DecisionTimestamp time.Time
	DecisionReason    string

	lineNumber int
}

// SecurityAssessment is the Risk Detector's complete scan output.
type SecurityAssessment struct {
	ProjectPath        string
	Timestamp          time.Time
	Risks              []SecurityRisk
	BlockingViolations []SecurityRisk
	CountsBySeverity   map[catalog.Severity]int
	SecurityLevel      catalog.SecurityLevel
	EnforcementActive  bool
}

// TotalRisks returns the number of risks in the assessment.
func (a SecurityAssessment) TotalRisks() int { return len(a.Risks) }

// Detector scans one project for security risks.
type Detector struct {
	root          string
	securityLevel catalog.SecurityLevel
	store         *store.Store
	monitor       *ignoremon.Monitor
	skipDirs      map[string]bool
}

// New returns a Detector for root, using s for shadow ignore, global
// exceptions, and ignore-baseline state. ecosystems selects which
// catalog.EcosystemPresets contribute extra skip directories; pass nil to
// prune every known ecosystem's directories.
func New(root string, s *store.Store, level catalog.SecurityLevel, ecosystems []string) *Detector {
	skip := make(map[string]bool)
	for _, d := range catalog.BaseSkipDirs {
		skip[d] = true
	}
	if ecosystems == nil {
		for _, preset := range catalog.EcosystemPresets {
			for _, d := range preset.SkipDirs {
				skip[d] = true
			}
		}
	} else {
		for _, name := range ecosystems {
			if preset, ok := catalog.EcosystemPresets[name]; ok {
				for _, d := range preset.SkipDirs {
					skip[d] = true
				}
			}
		}
	}
	return &Detector{
		root:          root,
		securityLevel: level,
		store:         s,
		monitor:       ignoremon.New(root, s),
		skipDirs:      skip,
	}
}

// Scan runs the full detection algorithm: pre-scan refresh, enumeration,
// per-file classification, severity escalation, resolution filtering, and
// assembly.
func (d *Detector) Scan() (SecurityAssessment, error) {
	if _, _, err := d.monitor.PreOperationCheck(); err != nil {
		return SecurityAssessment{}, errors.Wrap(err, "pre-scan ignore refresh")
	}
	if err := d.syncShadowIgnore(); err != nil {
		return SecurityAssessment{}, errors.Wrap(err, "syncing shadow ignore")
	}

	tracked := map[string]bool{}
	if repo, err := vcs.Open(d.root); err == nil {
		if t, err := repo.TrackedFiles(); err == nil {
			tracked = t
		}
	}

	var risks []SecurityRisk
	walkErr := filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(d.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if d.skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			risks = append(risks, d.scanSymlink(path, rel, info, tracked[rel])...)
			return nil
		}

		if info.Size() > maxScanSize {
			return nil
		}

		risks = append(risks, d.scanFile(path, rel, info, tracked[rel])...)
		return nil
	})
	if walkErr != nil {
		return SecurityAssessment{}, errors.Wrapf(walkErr, "walking %s", d.root)
	}

	risks, err := d.filterResolvedRisks(risks)
	if err != nil {
		return SecurityAssessment{}, err
	}

	return d.assemble(risks), nil
}

// scanFile classifies a single regular file: category globs, then content
// regexes for small text files, then the large-binary threshold. At most
// one risk per (file, category) is produced.
func (d *Detector) scanFile(path, rel string, info os.FileInfo, isTracked bool) []SecurityRisk {
	seen := map[catalog.RiskType]bool{}
	var risks []SecurityRisk

	for _, riskType := range catalog.OrderedRiskTypes() {
		if pattern, matched := catalog.MatchGlob(riskType, rel); matched {
			risks = append(risks, d.createRisk(rel, riskType, pattern, info.Size(), info.ModTime(), isTracked, 0))
			seen[riskType] = true
		}
	}

	if !seen[catalog.RiskCredentialPattern] && !seen[catalog.RiskAPIKeyPattern] &&
		info.Size() < maxContentScanSize && isTextFile(path) {
		risks = append(risks, d.scanContent(path, rel, info, isTracked, seen)...)
	}

	if !seen[catalog.RiskLargeBinary] && info.Size() > largeFileThreshold {
		risks = append(risks, d.createRisk(rel, catalog.RiskLargeBinary,
			"file_size_exceeds_threshold", info.Size(), info.ModTime(), isTracked, 0))
	}

	return risks
}

// scanContent scans a text file's lines for credential-shaped content,
// recording the matching line number so the resolution filter can re-check
// whether the user has since commented it out.
func (d *Detector) scanContent(path, rel string, info os.FileInfo, isTracked bool, seen map[catalog.RiskType]bool) []SecurityRisk {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var risks []SecurityRisk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		for _, cp := range catalog.CredentialPatterns {
			if seen[cp.RiskType] {
				continue
			}
			if cp.Regex.MatchString(line) {
				risks = append(risks, d.createRisk(rel, cp.RiskType, cp.Name, info.Size(), info.ModTime(), isTracked, lineNum))
				seen[cp.RiskType] = true
			}
		}
	}
	return risks
}

// scanSymlink applies the symlink-only rule: only the link's own path and
// its textual target are examined, never the target's content, since VCS
// commits only the link pointer itself.
func (d *Detector) scanSymlink(path, rel string, info os.FileInfo, isTracked bool) []SecurityRisk {
	var risks []SecurityRisk

	target, err := os.Readlink(path)
	if err != nil {
		risk := d.createRisk(rel, catalog.RiskSystemFile, "symlink_analysis_failed", 0, time.Now(), false, 0)
		risk.Description = "Could not analyze symbolic link: " + rel
		risk.Recommendation = "Manually verify symlink safety"
		return []SecurityRisk{risk}
	}

	for _, riskType := range catalog.OrderedRiskTypes() {
		if pattern, matched := catalog.MatchGlob(riskType, rel); matched {
			risk := d.createRisk(rel, riskType, "symlink_path:"+pattern, info.Size(), info.ModTime(), isTracked, 0)
			risk.Description = "Symbolic link with suspicious name: " + rel + " -> " + target
			risk.Recommendation = "Rename the symlink to a non-sensitive name or add it to .gitignore"
			risks = append(risks, risk)
		}
	}

	if pattern, matched := catalog.MatchSuspiciousSymlinkTarget(target); matched {
		risk := d.createRisk(rel, catalog.RiskSecretFile, "symlink_target:"+pattern, info.Size(), info.ModTime(), isTracked, 0)
		risk.Description = "Symbolic link points to a suspicious location: " + rel + " -> " + target
		risk.Recommendation = "Review the symlink target for sensitivity; add to .gitignore if appropriate"
		risks = append(risks, risk)
	}

	return risks
}

// createRisk builds a SecurityRisk and applies the two-stage severity
// escalation: VCS-tracked status first (at any baseline severity), then
// sensitive-path-keyword presence (only for a high or medium baseline),
// each contributing its own escalation step.
func (d *Detector) createRisk(relPath string, riskType catalog.RiskType, pattern string, size int64, modified time.Time, isTracked bool, lineNum int) SecurityRisk {
	base := catalog.BaseSeverity[riskType]
	severity := base
	if isTracked {
		severity = severity.Upgrade()
	}
	if catalog.HasSensitivePathKeyword(relPath) && (base == catalog.SeverityHigh || base == catalog.SeverityMedium) {
		severity = severity.Upgrade()
	}

	return SecurityRisk{
		FilePath:       relPath,
		RiskType:       riskType,
		RiskLevel:      severity,
		Description:    catalog.Describe(riskType, relPath),
		Recommendation: catalog.Recommend(severity),
		PatternMatched: pattern,
		FileSize:       size,
		LastModified:   modified,
		IsTrackedByVCS: isTracked,
		lineNumber:     lineNum,
	}
}

// filterResolvedRisks drops risks the user has already addressed: the path
// is now covered by the user ignore file, the shadow ignore, or a global
// exception, or — for credential/API-key risks — the offending line is now
// commented out or the pattern no longer appears anywhere in the file.
func (d *Detector) filterResolvedRisks(risks []SecurityRisk) ([]SecurityRisk, error) {
	ignorePatterns, err := readIgnorePatterns(filepath.Join(d.root, ".gitignore"))
	if err != nil {
		return nil, err
	}
	shadowPatterns, err := readIgnorePatterns(d.store.ShadowIgnorePath())
	if err != nil {
		return nil, err
	}

	var kept []SecurityRisk
	for _, r := range risks {
		if matchesAny(r.FilePath, ignorePatterns) || matchesAny(r.FilePath, shadowPatterns) {
			continue
		}
		if matched, _, err := d.monitor.GlobalExceptionMatches(r.FilePath); err == nil && matched {
			continue
		}
		if (r.RiskType == catalog.RiskCredentialPattern || r.RiskType == catalog.RiskAPIKeyPattern) &&
			d.isCredentialResolved(r) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, nil
}

// isCredentialResolved re-reads the file a credential risk was found in: if
// the original matching line is now commented out, or no credential pattern
// matches anywhere in the file any longer, the risk is considered resolved.
func (d *Detector) isCredentialResolved(r SecurityRisk) bool {
	data, err := os.ReadFile(filepath.Join(d.root, r.FilePath))
	if err != nil {
		return false
	}
	lines := strings.Split(string(data), "\n")
	if r.lineNumber > 0 && r.lineNumber <= len(lines) {
		line := strings.TrimSpace(lines[r.lineNumber-1])
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			return true
		}
	}

	content := string(data)
	for _, cp := range catalog.CredentialPatterns {
		if cp.Regex.MatchString(content) {
			return false
		}
	}
	return true
}

// assemble tallies risks by severity and computes the blocking subset for
// the detector's configured security level.
func (d *Detector) assemble(risks []SecurityRisk) SecurityAssessment {
	counts := make(map[catalog.Severity]int)
	var blocking []SecurityRisk
	for _, r := range risks {
		counts[r.RiskLevel]++
		if catalog.IsBlocking(d.securityLevel, r.RiskLevel) {
			blocking = append(blocking, r)
		}
	}

	return SecurityAssessment{
		ProjectPath:        d.root,
		Timestamp:          time.Now(),
		Risks:              risks,
		BlockingViolations: blocking,
		CountsBySeverity:   counts,
		SecurityLevel:      d.securityLevel,
		EnforcementActive:  len(blocking) > 0,
	}
}

// syncShadowIgnore copies non-security patterns from the user's ignore file
// into the shadow ignore, leaving security-keyword-laden patterns out so
// they remain auditable through the Decision Ledger rather than silently
// suppressed by an ordinary ignore entry.
func (d *Detector) syncShadowIgnore() error {
	current, err := readIgnorePatterns(filepath.Join(d.root, ".gitignore"))
	if err != nil {
		return err
	}
	existing, err := readIgnorePatterns(d.store.ShadowIgnorePath())
	if err != nil {
		return err
	}

	merged := map[string]bool{}
	for _, p := range existing {
		merged[p] = true
	}
	for _, p := range current {
		if isSecurityPattern(p) {
			continue
		}
		merged[p] = true
	}

	lines := make([]string, 0, len(merged))
	for p := range merged {
		lines = append(lines, p)
	}
	sort.Strings(lines)

	return atomicfile.Write(d.store.ShadowIgnorePath(), []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

func isSecurityPattern(pattern string) bool {
	lower := strings.ToLower(pattern)
	for _, kw := range securityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func readIgnorePatterns(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.TrimPrefix(line, "./"))
	}
	return patterns, nil
}

func matchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if path == pattern {
			return true
		}
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func isTextFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, _ := f.Read(buf)
	for _, b := range buf[:n] {
		if b == 0 {
			return false
		}
	}
	return true
}
