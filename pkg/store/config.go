// Package store implements the Project Store: the owner of the layout of a
// project's .gitup/ directory and of the config, state and audit files in
// it. Other packages write the remaining files at paths the Store hands out;
// every write is atomic.
package store

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/core/atomicfile"
	"github.com/crashappsec/gitup/pkg/core/errors"
)

// StoreDirName is the conventional hidden per-project directory name.
const StoreDirName = ".gitup"

// ProjectConfig is the declarative, user-editable project configuration.
type ProjectConfig struct {
	SecurityLevel      catalog.SecurityLevel `yaml:"security_level"`
	AutoRemediation    bool                  `yaml:"auto_remediation"`
	ScanDepth          string                `yaml:"scan_depth"`
	AuditEnabled       bool                  `yaml:"audit_enabled"`
	ComplianceChecks   bool                  `yaml:"compliance_checks"`
	TemplateType       string                `yaml:"template_type"`
	UserPreferences    map[string]string     `yaml:"user_preferences,omitempty"`
}

// DefaultConfig returns a ProjectConfig with the baseline defaults applied
// to every newly initialized project.
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		SecurityLevel:    catalog.LevelModerate,
		AutoRemediation:  false,
		ScanDepth:        "standard",
		AuditEnabled:     true,
		ComplianceChecks: true,
		TemplateType:     "generic",
		UserPreferences:  map[string]string{},
	}
}

// ProjectState is the last-verified state snapshot.
type ProjectState struct {
	LastVCSHead        string    `yaml:"last_vcs_head,omitempty"`
	LastIgnoreHash     string    `yaml:"last_ignore_hash,omitempty"`
	ComplianceVerdict  string    `yaml:"compliance_verdict,omitempty"`
	InitializedAt      time.Time `yaml:"initialized_at"`
	LastAuditAt        time.Time `yaml:"last_audit_at,omitempty"`
	CachedSummary      string    `yaml:"cached_summary,omitempty"`
}

func configPath(root string) string { return filepath.Join(root, StoreDirName, "config.yaml") }
func statePath(root string) string  { return filepath.Join(root, StoreDirName, "state.json") }

// loadConfig reads config.yaml, falling back to a `.backup` sibling on
// corruption and to DefaultConfig() when neither file exists or parses.
func loadConfig(root string) (ProjectConfig, error) {
	path := configPath(root)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	validate := func(data []byte) error {
		var cfg ProjectConfig
		return yaml.Unmarshal(data, &cfg)
	}

	data, _, err := atomicfile.ReadOrBackup(path, validate)
	if err != nil {
		return DefaultConfig(), nil
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}
	return cfg, nil
}

// saveConfig writes config.yaml atomically, keeping a `.backup` sibling of
// the previous contents.
func saveConfig(root string, cfg ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling project config")
	}
	if err := os.MkdirAll(filepath.Dir(configPath(root)), 0755); err != nil {
		return errors.Wrap(err, "creating store directory")
	}
	return atomicfile.WriteWithBackup(configPath(root), data, 0644)
}
