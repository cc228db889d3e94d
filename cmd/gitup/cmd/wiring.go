package cmd

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/compliance"
	"github.com/crashappsec/gitup/pkg/enforcer"
	"github.com/crashappsec/gitup/pkg/ledger"
	"github.com/crashappsec/gitup/pkg/review"
	"github.com/crashappsec/gitup/pkg/risk"
	"github.com/crashappsec/gitup/pkg/store"
)

// project bundles every component a gitup command needs for one project
// root, wired consistently so each command file doesn't repeat the
// construction order.
type project struct {
	root       string
	store      *store.Store
	risk       *risk.Detector
	ledger     *ledger.Ledger
	enforcer   *enforcer.Enforcer
	compliance *compliance.Evaluator
	review     *review.Orchestrator
}

// resolveRoot turns an optional positional path argument into an absolute
// project root, defaulting to the current directory.
func resolveRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 && args[0] != "" {
		path = args[0]
	}
	return filepath.Abs(path)
}

// currentUser identifies whoever is running gitup for audit attribution,
// preferring the environment over a syscall lookup since that's what a
// pre-commit hook's environment reliably provides.
func currentUser() string {
	for _, key := range []string{"GITUP_USER", "USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}

// openProject wires the full component stack for root. level is the
// project's configured security level, read from the store if it has
// already been initialized.
func openProject(root string) (*project, error) {
	s := store.New(root, toolVersion)

	level := catalog.LevelModerate
	if l, err := s.SecurityLevel(); err == nil {
		level = l
	}

	r := risk.New(root, s, level, nil)
	l := ledger.New(s, toolVersion, currentUser(), uuidGen)
	e := enforcer.New(s)
	c := compliance.New(root, s, r, l)
	rv := review.New(root, s, r, e, l, currentUser(), toolVersion)

	return &project{root: root, store: s, risk: r, ledger: l, enforcer: e, compliance: c, review: rv}, nil
}

func uuidGen() string { return uuid.NewString() }

// severityCountMap adapts a catalog.Severity-keyed count map to the
// lowercase string keys terminal.ScanSummary expects.
func severityCountMap(counts map[catalog.Severity]int) map[string]int {
	out := make(map[string]int, len(counts))
	for sev, n := range counts {
		out[string(sev)] = n
	}
	return out
}
