// Package enforcer implements the commit-time gate: it persists the current
// blocking-violation set and raises a structured error when an operation is
// attempted while that set is non-empty. Resolution of a violation — via a
// ledger decision or a user-ignore change — happens elsewhere; the enforcer
// only records and reports what the last scan found.
package enforcer

import (
	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/core/errors"
	"github.com/crashappsec/gitup/pkg/risk"
	"github.com/crashappsec/gitup/pkg/store"
)

// Enforcer reads and writes the project's persisted blocking-violation set
// and raises a ViolationError on demand.
type Enforcer struct {
	store *store.Store
}

// New returns an Enforcer backed by s.
func New(s *store.Store) *Enforcer {
	return &Enforcer{store: s}
}

// CheckViolations reports whether any blocking violations are currently
// persisted, and returns them.
func (e *Enforcer) CheckViolations() (bool, []errors.Violation, error) {
	violations, err := e.store.LoadViolations()
	if err != nil {
		return false, nil, err
	}
	return len(violations) > 0, violations, nil
}

// SaveViolations persists violations as the current blocking set, replacing
// whatever was there before.
func (e *Enforcer) SaveViolations(violations []errors.Violation) error {
	return e.store.SaveViolations(violations)
}

// FromAssessment derives the blocking-violation set from a fresh
// SecurityAssessment, per SecurityAssessment's invariant
// (`blocking_violations = { r in risks | r.risk_level in blocking_thresholds[security_level] }`),
// and persists it.
func (e *Enforcer) FromAssessment(a risk.SecurityAssessment) error {
	violations := make([]errors.Violation, 0, len(a.BlockingViolations))
	for _, r := range a.BlockingViolations {
		violations = append(violations, errors.Violation{
			RiskID:      string(r.RiskType),
			Path:        r.FilePath,
			Severity:    string(r.RiskLevel),
			Description: r.Description,
		})
	}
	return e.SaveViolations(violations)
}

// Enforce raises a *errors.ViolationError carrying the current blocking set
// if it is non-empty, naming operation in the error message. It returns
// nil cleanly when there is nothing to block.
func (e *Enforcer) Enforce(operation string) error {
	has, violations, err := e.CheckViolations()
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	return &errors.ViolationError{Operation: operation, Violations: violations}
}

// ClearViolations removes the persisted blocking set entirely, e.g. after a
// scan finds no remaining risk above the configured threshold.
func (e *Enforcer) ClearViolations() error {
	return e.store.ClearViolations()
}

// IsBlocking reports whether severity level is within secLevel's configured
// blocking thresholds, matching the Enforcer's view of severity to
// SecurityAssessment's invariant.
func IsBlocking(level catalog.Severity, secLevel catalog.SecurityLevel) bool {
	return catalog.IsBlocking(secLevel, level)
}
