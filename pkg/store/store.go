package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/core/atomicfile"
	"github.com/crashappsec/gitup/pkg/core/audit"
	"github.com/crashappsec/gitup/pkg/core/errors"
)

// Store owns the layout of a project's .gitup/ directory. Its methods write
// the config, state, audit log, violation set and global exception seed;
// the Decision Ledger, Ignore Monitor, Risk Detector and Review Orchestrator
// write the other files at the paths it hands out. Every write goes through
// pkg/core/atomicfile.
type Store struct {
	root        string
	toolVersion string
}

// New returns a Store rooted at projectRoot. It does not touch disk.
func New(projectRoot, toolVersion string) *Store {
	return &Store{root: projectRoot, toolVersion: toolVersion}
}

// Root returns the project root this store manages.
func (s *Store) Root() string { return s.root }

// Dir returns the .gitup directory path.
func (s *Store) Dir() string { return filepath.Join(s.root, StoreDirName) }

func (s *Store) path(name string) string { return filepath.Join(s.Dir(), name) }

// AuditLogPath returns the path to the append-only audit.log.
func (s *Store) AuditLogPath() string { return s.path("audit.log") }

// CompliancePath returns the path to the latest persisted compliance record.
func (s *Store) CompliancePath() string { return s.path("compliance.json") }

// ViolationsPath returns the path to the current blocking-violation set.
func (s *Store) ViolationsPath() string { return s.path("violations.json") }

// ShadowIgnorePath returns the path to the shadow ignore list.
func (s *Store) ShadowIgnorePath() string { return s.path("shadow_ignore") }

// ShadowIgnoreMetaPath returns the path to the Decision Ledger serialization.
func (s *Store) ShadowIgnoreMetaPath() string { return s.path("shadow_ignore.meta") }

// BaselinePath returns the path to the last-seen copy of the user ignore file.
func (s *Store) BaselinePath() string { return s.path("gi_baseline.dat") }

// BaselineHashPath returns the path to the baseline's content hash.
func (s *Store) BaselineHashPath() string { return s.path("gi_baseline.hash") }

// ChangesLogPath returns the path to the ignore-delta audit stream.
func (s *Store) ChangesLogPath() string { return s.path("gi_changes.log") }

// GlobalExceptionsPath returns the path to the global exception list.
func (s *Store) GlobalExceptionsPath() string { return s.path("global_exceptions.json") }

// CacheDir returns the derived-data cache directory; safe to delete.
func (s *Store) CacheDir() string { return s.path("cache") }

// InitStatus distinguishes a fresh initialization from a no-op repeat.
type InitStatus string

const (
	StatusInitialized       InitStatus = "initialized"
	StatusAlreadyInitialized InitStatus = "already_initialized"
)

// InitResult is the outcome of Initialize.
type InitResult struct {
	Status InitStatus
	Config ProjectConfig
	State  ProjectState
}

// Initialize creates the store directory tree if absent, seeds defaults,
// writes a .selfexclude marker listing cache/, and records the
// initialization audit entry. If force is false and the store already
// exists, it returns StatusAlreadyInitialized without modifying anything.
func (s *Store) Initialize(force bool, idGen func() string) (InitResult, error) {
	dir := s.Dir()
	_, statErr := os.Stat(dir)
	exists := statErr == nil

	if exists && !force {
		cfg, state, err := s.Load()
		if err != nil {
			return InitResult{}, err
		}
		return InitResult{Status: StatusAlreadyInitialized, Config: cfg, State: state}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return InitResult{}, errors.Wrapf(err, "creating store directory %s", dir)
	}
	if err := os.MkdirAll(s.CacheDir(), 0755); err != nil {
		return InitResult{}, errors.Wrap(err, "creating cache directory")
	}

	if err := s.writeSelfExclusion(); err != nil {
		return InitResult{}, err
	}

	if err := s.seedGlobalExceptions(); err != nil {
		return InitResult{}, err
	}

	cfg := DefaultConfig()
	if err := saveConfig(s.root, cfg); err != nil {
		return InitResult{}, err
	}

	state := ProjectState{InitializedAt: time.Now()}
	if err := s.SaveState(state); err != nil {
		return InitResult{}, err
	}

	id := "init-0"
	if idGen != nil {
		id = idGen()
	}
	entry := audit.New(id, audit.ActionCreated, "", s.toolVersion, "", map[string]any{
		"operation": "initialize",
		"forced":    force,
	})
	if err := s.AppendAudit(entry); err != nil {
		return InitResult{}, err
	}

	return InitResult{Status: StatusInitialized, Config: cfg, State: state}, nil
}

// writeSelfExclusion writes the .gitup/.selfexclude marker listing cache/.
// Nothing in gitup reads the marker; the Risk Detector and State Detector
// keep out of .gitup/ through catalog.BaseSkipDirs.
func (s *Store) writeSelfExclusion() error {
	marker := s.path(".selfexclude")
	return atomicfile.Write(marker, []byte("cache/\n"), 0644)
}

// seedGlobalExceptions writes the default global exception list used for a
// fresh project, so common documentation/example conventions do not flood a
// first scan with false positives.
func (s *Store) seedGlobalExceptions() error {
	return saveJSON(s.GlobalExceptionsPath(), DefaultGlobalExceptions())
}

// Load reads config.yaml and state.json, returning typed defaults for
// missing files and falling back to `.backup` twins for corrupt ones.
func (s *Store) Load() (ProjectConfig, ProjectState, error) {
	cfg, err := loadConfig(s.root)
	if err != nil {
		return ProjectConfig{}, ProjectState{}, err
	}
	state, err := s.LoadState()
	if err != nil {
		return ProjectConfig{}, ProjectState{}, err
	}
	return cfg, state, nil
}

// LoadState reads state.json, returning a zero-value ProjectState if it
// does not yet exist.
func (s *Store) LoadState() (ProjectState, error) {
	state, ok, err := loadJSON[ProjectState](statePath(s.root))
	if err != nil {
		return ProjectState{}, err
	}
	if !ok {
		return ProjectState{}, nil
	}
	return state, nil
}

// SaveState writes state.json atomically.
func (s *Store) SaveState(state ProjectState) error {
	return saveJSON(statePath(s.root), state)
}

// UpdateConfig loads the current config, applies mutate, writes it back
// atomically, and records an audit entry.
func (s *Store) UpdateConfig(mutate func(*ProjectConfig), id string) (ProjectConfig, error) {
	cfg, err := loadConfig(s.root)
	if err != nil {
		return ProjectConfig{}, err
	}
	mutate(&cfg)
	if err := saveConfig(s.root, cfg); err != nil {
		return ProjectConfig{}, err
	}

	entry := audit.New(id, audit.ActionUpdated, "", s.toolVersion, "", map[string]any{
		"operation": "update_config",
	})
	if err := s.AppendAudit(entry); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// AppendAudit appends entry to audit.log and trims the trail to
// audit.DefaultRetention most-recent entries.
func (s *Store) AppendAudit(entry audit.Entry) error {
	if err := audit.Append(s.AuditLogPath(), entry); err != nil {
		return err
	}

	entries, err := audit.ReadAll(s.AuditLogPath())
	if err != nil {
		return err
	}
	if len(entries) <= audit.DefaultRetention {
		return nil
	}

	trimmed := audit.Trim(entries, audit.DefaultRetention)
	lines := make([]byte, 0, len(trimmed)*128)
	for _, e := range trimmed {
		line, err := e.Marshal()
		if err != nil {
			return err
		}
		lines = append(lines, line...)
		lines = append(lines, '\n')
	}
	return atomicfile.Write(s.AuditLogPath(), lines, 0644)
}

// AuditTrail returns the full parsed audit.log, oldest first.
func (s *Store) AuditTrail() ([]audit.Entry, error) {
	return audit.ReadAll(s.AuditLogPath())
}

// MigrationResult reports what MigrateLegacy did.
type MigrationResult struct {
	MigratedPaths []string
	BackedUpPaths []string
	Errors        []string
}

// legacyShadowIgnoreNames are top-level shadow-ignore files written by
// pre-store versions of the tool, found directly under the project root
// instead of under .gitup/.
var legacyShadowIgnoreNames = []string{".gitup_shadow_ignore", ".gitupignore.shadow"}

// MigrateLegacy detects legacy top-level shadow-ignore files and moves them
// under the store, backing up any file that would be overwritten.
func (s *Store) MigrateLegacy() MigrationResult {
	result := MigrationResult{}

	for _, name := range legacyShadowIgnoreNames {
		legacyPath := filepath.Join(s.root, name)
		data, err := os.ReadFile(legacyPath)
		if err != nil {
			continue
		}

		dest := s.ShadowIgnorePath()
		if existing, err := os.ReadFile(dest); err == nil {
			backupPath := dest + fmt.Sprintf(".legacy-backup-%d", time.Now().Unix())
			if err := atomicfile.Write(backupPath, existing, 0644); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.BackedUpPaths = append(result.BackedUpPaths, backupPath)
		}

		if err := atomicfile.Write(dest, data, 0644); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if err := os.Remove(legacyPath); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.MigratedPaths = append(result.MigratedPaths, legacyPath)
	}

	return result
}

// SaveViolations writes the current blocking-violation set atomically.
func (s *Store) SaveViolations(violations []errors.Violation) error {
	return saveJSON(s.ViolationsPath(), violations)
}

// LoadViolations reads the current blocking-violation set. An absent file
// means no violations are recorded.
func (s *Store) LoadViolations() ([]errors.Violation, error) {
	violations, ok, err := loadJSON[[]errors.Violation](s.ViolationsPath())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return violations, nil
}

// ClearViolations removes the violations file entirely.
func (s *Store) ClearViolations() error {
	err := os.Remove(s.ViolationsPath())
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing violations file")
	}
	return nil
}

// SaveCompliance persists the latest compliance record, keyed generically
// so pkg/compliance owns the concrete ComplianceReport shape.
func SaveCompliance[T any](s *Store, report T) error {
	return saveJSON(s.CompliancePath(), report)
}

// LoadCompliance reads back the latest compliance record.
func LoadCompliance[T any](s *Store) (T, bool, error) {
	return loadJSON[T](s.CompliancePath())
}

// GlobalExceptions is the ordered list of glob patterns the user has
// blessed as always-safe.
type GlobalExceptions struct {
	Patterns []string `json:"patterns"`
}

// DefaultGlobalExceptions returns the seed list shipped with a fresh
// project: common documentation and example-file conventions that would
// otherwise produce false positives on first scan.
func DefaultGlobalExceptions() GlobalExceptions {
	return GlobalExceptions{Patterns: []string{
		"*codebase.txt",
		"*backup.py",
		"*.bak",
		"*_backup.*",
		"docs/*.md",
		"*.readme",
		"changelog.*",
		"*.example",
		"template.*",
	}}
}

// LoadGlobalExceptions reads the global exception list, seeding defaults if
// the file does not yet exist.
func (s *Store) LoadGlobalExceptions() (GlobalExceptions, error) {
	ge, ok, err := loadJSON[GlobalExceptions](s.GlobalExceptionsPath())
	if err != nil {
		return GlobalExceptions{}, err
	}
	if !ok {
		return DefaultGlobalExceptions(), nil
	}
	return ge, nil
}

// SaveGlobalExceptions persists the global exception list atomically.
func (s *Store) SaveGlobalExceptions(ge GlobalExceptions) error {
	return saveJSON(s.GlobalExceptionsPath(), ge)
}

// SecurityLevel is a convenience accessor over the persisted config.
func (s *Store) SecurityLevel() (catalog.SecurityLevel, error) {
	cfg, err := loadConfig(s.root)
	if err != nil {
		return "", err
	}
	return cfg.SecurityLevel, nil
}
