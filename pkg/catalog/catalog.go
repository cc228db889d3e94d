// Package catalog is the declarative security-pattern catalog: glob
// patterns and content regexes tagged by risk type and severity, plus the
// per-security-level blocking thresholds the Enforcer consults.
//
// Nothing in this package touches the filesystem; pkg/risk walks the tree
// and asks this package whether a path or line matches.
package catalog

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// RiskType enumerates the kinds of security risk the catalog recognizes.
type RiskType string

const (
	RiskSecretFile        RiskType = "secret_file"
	RiskSensitiveConfig   RiskType = "sensitive_config"
	RiskLargeBinary       RiskType = "large_binary"
	RiskCredentialPattern RiskType = "credential_pattern"
	RiskAPIKeyPattern     RiskType = "api_key_pattern"
	RiskDatabaseFile      RiskType = "database_file"
	RiskBackupFile        RiskType = "backup_file"
	RiskLogFile           RiskType = "log_file"
	RiskTemporaryFile     RiskType = "temporary_file"
	RiskIDEConfig         RiskType = "ide_config"
	RiskSystemFile        RiskType = "system_file"
)

// SecurityLevel is the project's configured enforcement posture.
type SecurityLevel string

const (
	LevelStrict   SecurityLevel = "strict"
	LevelModerate SecurityLevel = "moderate"
	LevelRelaxed  SecurityLevel = "relaxed"
)

// GlobPatterns maps each risk type to the glob patterns that identify it.
// MatchGlob evaluates them with doublestar: a pattern containing "/" (such
// as "config/secrets.*") is matched against the project-relative path, and
// a bare pattern is matched against the path's basename.
var GlobPatterns = map[RiskType][]string{
	RiskSecretFile: {
		"*.key", "*.pem", "*.p12", "*.pfx", "*.jks", "*.keystore",
		"*.crt", "*.csr", "*.der", "*.p7b", "*.p7c", "*.p7r",
		"secrets.*", "*secret*", "*password*", "*credential*",
		"*.env", ".env*", "config/secrets.*", "auth.*",
	},
	RiskSensitiveConfig: {
		"config.json", "settings.json", "database.json",
		"*.conf", "*.cfg", "*.ini", "*.properties",
		"web.config", "app.config", "appsettings.json",
		"connection.json", "datasource.*",
	},
	RiskLargeBinary: {
		"*.exe", "*.dll", "*.so", "*.dylib", "*.bin",
		"*.iso", "*.img", "*.dmg", "*.zip", "*.rar",
	},
	RiskDatabaseFile: {
		"*.db", "*.sqlite", "*.sqlite3", "*.mdb", "*.accdb",
		"*.dump", "*.sql", "*.bak", "data/*.db", "database.*",
	},
	RiskBackupFile: {
		"*.backup", "*.bak", "*.old", "*.orig", "*.tmp",
		"*~", "*.swp", "*.swo", "backup/*", "backups/*",
	},
	RiskLogFile: {
		"*.log", "logs/*", "log/*", "error.log", "debug.log",
		"access.log", "application.log", "audit.log",
	},
	RiskTemporaryFile: {
		"temp/*", "tmp/*", "*.tmp", "*.temp", ".DS_Store",
		"Thumbs.db", "desktop.ini", "*.cache",
	},
	RiskIDEConfig: {
		".vscode/settings.json", ".idea/*", "*.iml",
		".eclipse/*", ".settings/*", "*.sublime-*",
	},
}

// orderedRiskTypes fixes pattern-matching order so "only match the first
// pattern per type, and stop at the first type that matches" is
// deterministic across runs, mirroring the original dict's declaration order.
var orderedRiskTypes = []RiskType{
	RiskSecretFile,
	RiskSensitiveConfig,
	RiskLargeBinary,
	RiskDatabaseFile,
	RiskBackupFile,
	RiskLogFile,
	RiskTemporaryFile,
	RiskIDEConfig,
}

// OrderedRiskTypes returns the risk types in catalog declaration order.
func OrderedRiskTypes() []RiskType {
	return append([]RiskType(nil), orderedRiskTypes...)
}

// MatchGlob reports whether relPath matches one of riskType's glob
// patterns, returning the first matching pattern.
func MatchGlob(riskType RiskType, relPath string) (pattern string, matched bool) {
	normalized := strings.ReplaceAll(relPath, "\\", "/")
	base := normalized
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		base = normalized[idx+1:]
	}

	for _, pat := range GlobPatterns[riskType] {
		// Patterns with a path separator match against the full relative
		// path (e.g. "config/secrets.*"); bare patterns match the basename,
		// same as fnmatch.fnmatch against a relative path in the original.
		target := normalized
		if !strings.Contains(pat, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(pat, target); ok {
			return pat, true
		}
	}
	return "", false
}

// ContentPattern is a compiled regex used for content-based risk detection.
type ContentPattern struct {
	Name     string
	Regex    *regexp.Regexp
	RiskType RiskType
}

// CredentialPatterns are the content regexes scanned against text file
// bodies to find embedded credentials. Ported from the credential_patterns
// list; the "api" pattern is tagged RiskAPIKeyPattern, every other pattern
// RiskCredentialPattern, matching the original's name-based dispatch.
var CredentialPatterns = []ContentPattern{
	{
		Name:     "api_key",
		Regex:    regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?[a-zA-Z0-9_-]{16,}["']?`),
		RiskType: RiskAPIKeyPattern,
	},
	{
		Name:     "secret_key",
		Regex:    regexp.MustCompile(`(?i)(secret[_-]?key|secretkey)\s*[:=]\s*["']?[a-zA-Z0-9_-]{16,}["']?`),
		RiskType: RiskCredentialPattern,
	},
	{
		Name:     "access_token",
		Regex:    regexp.MustCompile(`(?i)(access[_-]?token|accesstoken)\s*[:=]\s*["']?[a-zA-Z0-9_-]{16,}["']?`),
		RiskType: RiskCredentialPattern,
	},
	{
		Name:     "password",
		Regex:    regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*["']?[^\s"']{8,}["']?`),
		RiskType: RiskCredentialPattern,
	},
	{
		Name:     "database_url",
		Regex:    regexp.MustCompile(`(?i)(database[_-]?url|db[_-]?url)\s*[:=]\s*["']?[^\s"']+["']?`),
		RiskType: RiskCredentialPattern,
	},
	{
		Name:     "private_key",
		Regex:    regexp.MustCompile(`(?i)(private[_-]?key|privatekey)\s*[:=]\s*["']?[^\s"']+["']?`),
		RiskType: RiskCredentialPattern,
	},
}

// SuspiciousSymlinkTargets are glob patterns checked against a symbolic
// link's target string (never its content) when the link's own name did
// not already match a catalog pattern. Ported from risk_mitigation.py's
// suspicious_targets list — the symlink-only rule's second check.
var SuspiciousSymlinkTargets = []string{
	"*.env*", "*.secret*", "*.key*", "*.credential*",
	"*password*", "*config/secret*", "*private*",
}

// MatchSuspiciousSymlinkTarget reports whether a symlink's target string
// looks sensitive. Patterns with no path separator match against the
// target's basename only, since doublestar's "*" (unlike the original
// detector's fnmatch-based check) does not cross "/".
func MatchSuspiciousSymlinkTarget(target string) (pattern string, matched bool) {
	lower := strings.ToLower(strings.ReplaceAll(target, "\\", "/"))
	base := lower
	if idx := strings.LastIndex(lower, "/"); idx >= 0 {
		base = lower[idx+1:]
	}

	for _, pat := range SuspiciousSymlinkTargets {
		candidate := lower
		if !strings.Contains(pat, "/") {
			candidate = base
		}
		if ok, _ := doublestar.Match(pat, candidate); ok {
			return pat, true
		}
	}
	return "", false
}

// BaseSeverity maps each risk type to its severity before the
// tracked-by-VCS and sensitive-path-location escalations are applied.
var BaseSeverity = map[RiskType]Severity{
	RiskSecretFile:        SeverityCritical,
	RiskCredentialPattern: SeverityCritical,
	RiskAPIKeyPattern:     SeverityCritical,
	RiskSensitiveConfig:   SeverityHigh,
	RiskDatabaseFile:      SeverityHigh,
	RiskLargeBinary:       SeverityMedium,
	RiskBackupFile:        SeverityMedium,
	RiskLogFile:           SeverityLow,
	RiskTemporaryFile:     SeverityLow,
	RiskIDEConfig:         SeverityInfo,
	RiskSystemFile:        SeverityMedium,
}

// SensitivePathKeywords trigger the second severity escalation step when
// they appear anywhere in a risk's path, independent of tracked status.
var SensitivePathKeywords = []string{"config", "secret", "credential", "auth"}

// HasSensitivePathKeyword reports whether path contains one of
// SensitivePathKeywords.
func HasSensitivePathKeyword(path string) bool {
	lower := strings.ToLower(path)
	for _, kw := range SensitivePathKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// BlockingThresholds maps each security level to the set of severities
// that block an operation when present and unresolved.
var BlockingThresholds = map[SecurityLevel][]Severity{
	LevelStrict:   {SeverityCritical, SeverityHigh, SeverityMedium},
	LevelModerate: {SeverityCritical},
	LevelRelaxed:  {SeverityCritical},
}

// IsBlocking reports whether severity blocks at the given security level.
func IsBlocking(level SecurityLevel, severity Severity) bool {
	for _, s := range BlockingThresholds[level] {
		if s == severity {
			return true
		}
	}
	return false
}

// Describe returns a human-readable description of a risk type at path.
func Describe(riskType RiskType, path string) string {
	switch riskType {
	case RiskSecretFile:
		return "Potential secret file detected: " + path
	case RiskCredentialPattern:
		return "Credential pattern found in: " + path
	case RiskAPIKeyPattern:
		return "API key pattern detected in: " + path
	case RiskSensitiveConfig:
		return "Sensitive configuration file: " + path
	case RiskDatabaseFile:
		return "Database file detected: " + path
	case RiskLargeBinary:
		return "Large binary file: " + path
	case RiskBackupFile:
		return "Backup file detected: " + path
	case RiskLogFile:
		return "Log file detected: " + path
	case RiskTemporaryFile:
		return "Temporary file detected: " + path
	case RiskIDEConfig:
		return "IDE configuration file: " + path
	case RiskSystemFile:
		return "System or unanalyzable file: " + path
	default:
		return "Security risk detected: " + path
	}
}

// Recommend returns the recommended remediation for a severity level.
func Recommend(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "Immediate action required: remove the file or add it to .gitignore"
	case SeverityHigh:
		return "Review file contents and consider adding it to .gitignore"
	case SeverityMedium:
		return "Consider adding to .gitignore or the gitup shadow ignore"
	default:
		return "Review and add to an ignore file if appropriate"
	}
}

// EcosystemPreset bundles the extra skip-directories and artifact glob
// patterns of one language ecosystem. The State Detector and Risk Detector
// prune SkipDirs on top of BaseSkipDirs; no scanner matches against Globs.
type EcosystemPreset struct {
	SkipDirs []string
	Globs    []string
}

// EcosystemPresets maps a language name, as go-enry names it, to the
// dependency/cache directories and artifacts of that ecosystem. detect.New
// and risk.New take the names of the presets to apply, or nil for all.
var EcosystemPresets = map[string]EcosystemPreset{
	"Go": {
		SkipDirs: []string{"vendor"},
		Globs:    []string{"*.test"},
	},
	"Python": {
		SkipDirs: []string{".venv", "venv", "__pycache__", ".pytest_cache", ".mypy_cache"},
		Globs:    []string{"*.pyc"},
	},
	"JavaScript": {
		SkipDirs: []string{"node_modules", "dist", "build"},
	},
	"TypeScript": {
		SkipDirs: []string{"node_modules", "dist", "build"},
	},
	"Java": {
		SkipDirs: []string{"target", ".gradle", "build"},
	},
	"Ruby": {
		SkipDirs: []string{".bundle", "vendor/bundle"},
	},
}

// BaseSkipDirs are pruned during every scan regardless of detected
// ecosystem: the VCS metadata directory, gitup's own store, and IDE state.
var BaseSkipDirs = []string{".git", ".gitup", ".idea"}
