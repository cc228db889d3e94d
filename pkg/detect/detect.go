// Package detect implements the State Detector: a pure, read-only pass over
// a project directory that classifies its lifecycle state, estimates a
// security risk tier, and recommends defaults for the rest of gitup. It
// never mutates anything on disk.
package detect

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-enry/go-enry/v2"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/vcs"
)

// State is a project lifecycle classification.
type State string

const (
	StateVirginDirectory State = "virgin_directory"
	StateFreshRepo       State = "fresh_repo"
	StateExperiencedRepo State = "experienced_repo"
	StateHostedRepo      State = "hosted_repo"
	StateMatureRepo      State = "mature_repo"
)

// RiskTier is the coarse risk banding derived from the detector's score.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// SetupComplexity recommends how much ceremony project setup should involve.
type SetupComplexity string

const (
	ComplexityMinimal    SetupComplexity = "minimal"
	ComplexityStandard   SetupComplexity = "standard"
	ComplexityMigration  SetupComplexity = "migration"
	ComplexityEnterprise SetupComplexity = "enterprise"
)

// largeFileThresholdMB mirrors the Python original's large_file_threshold.
const largeFileThresholdMB = 10

// ciWorkflowDirs are checked, relative to the project root, for a CI
// workflow directory; presence upgrades state to mature_repo regardless of
// which hosted forge (if any) the remote points at.
var ciWorkflowDirs = []string{
	filepath.Join(".github", "workflows"),
	filepath.Join(".gitlab", "ci"),
	".circleci",
}

// LargeFile describes a file whose size crossed the large-file threshold.
type LargeFile struct {
	Path string
	MB   float64
}

// Analysis is the State Detector's complete, pure-function output.
type Analysis struct {
	ProjectPath               string
	State                     State
	RiskTier                  RiskTier
	SetupComplexity           SetupComplexity
	RecommendedSecurityLevel  catalog.SecurityLevel
	RecommendedTemplates      []string
	CommitCount               int
	DaysSinceCreation         int
	FileCount                 int
	PotentialSecretFiles      []string
	SensitiveFiles            []string
	LargeFiles                []LargeFile
	Warnings                  []string
	Duration                  time.Duration
	HasGit                    bool
	HasIgnoreFile             bool
	HasHostedRemote           bool
	HostedForge               vcs.KnownForge
	HasCIWorkflows            bool
}

// Detector analyzes a single project directory.
type Detector struct {
	root       string
	ignoreFile string
	skipDirs   map[string]bool
}

// New builds a Detector rooted at root. ignoreFile is the user's ignore
// file name (conventionally ".gitignore"); ecosystems is an optional set of
// ecosystem presets (as named in catalog.EcosystemPresets) whose skip
// directories are pruned in addition to the base set — pass nil to prune
// every known ecosystem's directories.
func New(root, ignoreFile string, ecosystems []string) *Detector {
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
	if ignoreFile == "" {
		ignoreFile = ".gitignore"
	}
	return &Detector{root: root, ignoreFile: ignoreFile, skipDirs: skip}
}

// Analyze runs the full detection pass.
func (d *Detector) Analyze() (Analysis, error) {
	start := time.Now()

	a := Analysis{ProjectPath: d.root}
	a.HasGit = vcs.IsRepo(d.root)
	a.HasIgnoreFile = fileExists(filepath.Join(d.root, d.ignoreFile))
	a.HasCIWorkflows = d.hasCIWorkflows()

	if a.HasGit {
		if r, err := vcs.Open(d.root); err == nil {
			if urls, uerr := r.RemoteURLs(); uerr == nil && len(urls) > 0 {
				if forge, ferr := r.HostedForge(); ferr == nil && forge != vcs.ForgeNone {
					a.HasHostedRemote = true
					a.HostedForge = forge
				}
			}
			if cc, cerr := r.CommitCount(); cerr == nil {
				a.CommitCount = cc
			}
			if first, ferr := r.FirstCommitTime(); ferr == nil {
				a.DaysSinceCreation = int(time.Since(first).Hours() / 24)
			}
		}
	}

	fileCount, secrets, sensitive, large := d.walk()
	a.FileCount = fileCount
	a.PotentialSecretFiles = secrets
	a.SensitiveFiles = sensitive
	a.LargeFiles = large

	a.State = classifyState(a.HasGit, a.HasIgnoreFile, a.HasHostedRemote, a.HasCIWorkflows)
	a.RiskTier = assessRiskTier(a.CommitCount, a.DaysSinceCreation, len(secrets), len(sensitive), len(large))
	a.SetupComplexity = determineSetupComplexity(a.State, a.RiskTier, a.CommitCount)
	a.RecommendedSecurityLevel = recommendSecurityLevel(a.RiskTier)
	a.RecommendedTemplates = d.recommendTemplates()
	a.Warnings = generateWarnings(a.RiskTier, secrets, sensitive, large)
	a.Duration = time.Since(start)

	return a, nil
}

func (d *Detector) hasCIWorkflows() bool {
	for _, rel := range ciWorkflowDirs {
		info, err := os.Stat(filepath.Join(d.root, rel))
		if err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

func classifyState(hasGit, hasIgnore, hasHostedRemote, hasCI bool) State {
	switch {
	case hasCI:
		return StateMatureRepo
	case hasHostedRemote:
		return StateHostedRepo
	case hasGit && hasIgnore:
		return StateExperiencedRepo
	case hasGit:
		return StateFreshRepo
	default:
		return StateVirginDirectory
	}
}

func assessRiskTier(commitCount, daysSinceCreation, secretCount, sensitiveCount, largeCount int) RiskTier {
	score := 0
	switch {
	case commitCount > 100:
		score += 3
	case commitCount > 20:
		score += 2
	case commitCount > 5:
		score += 1
	}
	switch {
	case daysSinceCreation > 365:
		score += 2
	case daysSinceCreation > 90:
		score += 1
	}
	score += secretCount * 2
	score += sensitiveCount * 1
	score += largeCount * 1

	switch {
	case score >= 8:
		return RiskHigh
	case score >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

func determineSetupComplexity(state State, risk RiskTier, commitCount int) SetupComplexity {
	if state == StateVirginDirectory {
		return ComplexityMinimal
	}
	if risk == RiskHigh || commitCount > 50 {
		return ComplexityEnterprise
	}
	if risk == RiskMedium || commitCount > 10 {
		return ComplexityMigration
	}
	return ComplexityStandard
}

func recommendSecurityLevel(risk RiskTier) catalog.SecurityLevel {
	switch risk {
	case RiskHigh:
		return catalog.LevelStrict
	case RiskMedium:
		return catalog.LevelModerate
	default:
		return catalog.LevelRelaxed
	}
}

func generateWarnings(risk RiskTier, secrets, sensitive []string, large []LargeFile) []string {
	var warnings []string
	switch risk {
	case RiskHigh:
		warnings = append(warnings, "high risk: project may contain secrets or sensitive data, deep scanning recommended")
	case RiskMedium:
		warnings = append(warnings, "medium risk: review flagged files before enabling strict enforcement")
	}
	if len(secrets) > 0 {
		warnings = append(warnings, fmtCount("potential secret file", len(secrets)))
	}
	if len(sensitive) > 0 {
		warnings = append(warnings, fmtCount("sensitive configuration file", len(sensitive)))
	}
	if len(large) > 0 {
		warnings = append(warnings, fmtCount("large file that may need an ignore entry", len(large)))
	}
	return warnings
}

func fmtCount(noun string, n int) string {
	if n == 1 {
		return "found 1 " + noun
	}
	return "found " + itoa(n) + " " + noun + "s"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// walk enumerates the project tree once, applying the detection budget
// (pruning the store directory and every configured ecosystem skip
// directory) and gathering the three file-based risk-score inputs in a
// single pass: potential secret files (by glob against catalog.RiskSecretFile
// patterns), sensitive config files (by glob against catalog.RiskSensitiveConfig),
// and large files exceeding largeFileThresholdMB.
func (d *Detector) walk() (fileCount int, secrets, sensitive []string, large []LargeFile) {
	_ = filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(d.root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if d.skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if enry.IsVendor(rel) || enry.IsGenerated(rel, nil) {
			return nil
		}

		fileCount++

		if _, matched := catalog.MatchGlob(catalog.RiskSecretFile, rel); matched {
			secrets = append(secrets, rel)
		}
		if _, matched := catalog.MatchGlob(catalog.RiskSensitiveConfig, rel); matched {
			sensitive = append(sensitive, rel)
		}

		if info.Size() > largeFileThresholdMB*1024*1024 {
			mb := float64(info.Size()) / (1024 * 1024)
			large = append(large, LargeFile{Path: rel, MB: mb})
		}
		return nil
	})

	sort.Strings(secrets)
	sort.Strings(sensitive)
	sort.Slice(large, func(i, j int) bool { return large[i].Path < large[j].Path })
	return fileCount, secrets, sensitive, large
}

// recommendTemplates infers starter templates from manifest presence and
// go-enry's language classification of top-level source files, generalizing
// the Python original's Python-only manifest/import sniffing to any
// ecosystem go-enry recognizes.
func (d *Detector) recommendTemplates() []string {
	switch {
	case fileExists(filepath.Join(d.root, "package.json")):
		if fileExists(filepath.Join(d.root, "public")) {
			return []string{"react-app"}
		}
		return []string{"node-web"}
	case fileExists(filepath.Join(d.root, "requirements.txt")),
		fileExists(filepath.Join(d.root, "setup.py")),
		fileExists(filepath.Join(d.root, "pyproject.toml")):
		if d.hasWebFrameworkHints() {
			return []string{"python-web"}
		}
		if d.hasNotebookHints() {
			return []string{"python-data"}
		}
		return []string{"python-cli"}
	case fileExists(filepath.Join(d.root, "go.mod")):
		return []string{"go-cli"}
	case fileExists(filepath.Join(d.root, "Cargo.toml")):
		return []string{"rust-cli"}
	case fileExists(filepath.Join(d.root, "README.md")) && !d.hasAnySourceOfLanguage("Python") && !d.hasAnySourceOfLanguage("Go"):
		return []string{"docs"}
	default:
		return []string{"generic"}
	}
}

var webFrameworkHints = []string{"flask", "django", "fastapi", "tornado"}

func (d *Detector) hasWebFrameworkHints() bool {
	if data, err := os.ReadFile(filepath.Join(d.root, "requirements.txt")); err == nil {
		lower := strings.ToLower(string(data))
		for _, fw := range webFrameworkHints {
			if strings.Contains(lower, fw) {
				return true
			}
		}
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".py") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.root, e.Name()))
		if err != nil {
			continue
		}
		lower := strings.ToLower(string(data))
		for _, fw := range webFrameworkHints {
			if strings.Contains(lower, fw) {
				return true
			}
		}
	}
	return false
}

func (d *Detector) hasNotebookHints() bool {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".ipynb") || strings.Contains(name, "jupyter") {
			return true
		}
	}
	return false
}

func (d *Detector) hasAnySourceOfLanguage(lang string) bool {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if got, _ := enry.GetLanguageByExtension(e.Name()); got == lang {
			return true
		}
		if got, _ := enry.GetLanguageByFilename(e.Name()); got == lang {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
