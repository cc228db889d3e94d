// Package ledger implements the Decision Ledger: the persistent record of
// user decisions about security risks, plus the audit trail and metadata
// header that travel alongside it in shadow_ignore.meta.
package ledger

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/core/atomicfile"
	"github.com/crashappsec/gitup/pkg/core/audit"
	"github.com/crashappsec/gitup/pkg/core/errors"
	"github.com/crashappsec/gitup/pkg/store"
)

// Decision enumerates what a UserDecision instructs the Review Orchestrator
// to do with the risks matching its pattern.
type Decision string

const (
	DecisionSafe              Decision = "safe"
	DecisionIgnorePermanently Decision = "ignore_permanently"
	DecisionIgnoreTemporarily Decision = "ignore_temporarily"
	DecisionAddToUserIgnore   Decision = "add_to_user_ignore"
	DecisionAddToShadowIgnore Decision = "add_to_shadow_ignore"
	DecisionRemoveFile        Decision = "remove_file"
	DecisionEncryptFile       Decision = "encrypt_file"
	DecisionReviewLater       Decision = "review_later"
	DecisionRename            Decision = "rename"
)

// UserDecision is a single ledger entry: a user's disposition of every risk
// whose file_path matches Pattern.
type UserDecision struct {
	ID           string     `json:"id"`
	Pattern      string     `json:"pattern"`
	DecisionType Decision   `json:"decision"`
	Reason       string     `json:"reason"`
	Timestamp    time.Time  `json:"timestamp"`
	UserID       string     `json:"user_id"`
	Confidence   float64    `json:"confidence"`
	AutoReviewAt *time.Time `json:"auto_review_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
}

// expired reports whether d has passed its ExpiresAt, relative to now.
func (d UserDecision) expired(now time.Time) bool {
	return d.ExpiresAt != nil && d.ExpiresAt.Before(now)
}

// dueForReview reports whether d has reached its AutoReviewAt, relative to now.
func (d UserDecision) dueForReview(now time.Time) bool {
	return d.AutoReviewAt != nil && !d.AutoReviewAt.After(now)
}

// SecurityMetadata and ProjectMetadata bundle alongside the decision map
// inside shadow_ignore.meta, describing the ledger file itself rather than
// any one decision.
type SecurityMetadata struct {
	Version     string    `json:"version"`
	Created     time.Time `json:"created"`
	ProjectType string    `json:"project_type"`
	LastUpdated time.Time `json:"last_updated"`
}

// document is the on-disk shape of shadow_ignore.meta.
type document struct {
	SecurityMetadata
	Decisions  map[string]UserDecision `json:"user_decisions"`
	AuditTrail []audit.Entry           `json:"audit_trail"`
}

func newDocument(projectType string) document {
	now := time.Now()
	return document{
		SecurityMetadata: SecurityMetadata{
			Version:     "1",
			Created:     now,
			ProjectType: projectType,
			LastUpdated: now,
		},
		Decisions:  make(map[string]UserDecision),
		AuditTrail: nil,
	}
}

// Ledger owns shadow_ignore.meta: the UserDecision map, its audit trail,
// and the security/project metadata header. Every mutating method
// persists before returning.
type Ledger struct {
	store       *store.Store
	toolVersion string
	userID      string
	idGen       func() string
}

// New returns a Ledger backed by s. idGen, if non-nil, generates decision
// and audit-entry IDs; it defaults to uuid.New().String() so callers only
// need to override it in tests that want deterministic IDs.
func New(s *store.Store, toolVersion, userID string, idGen func() string) *Ledger {
	if idGen == nil {
		idGen = func() string { return uuid.New().String() }
	}
	return &Ledger{store: s, toolVersion: toolVersion, userID: userID, idGen: idGen}
}

func (l *Ledger) load() (document, error) {
	data, err := os.ReadFile(l.store.ShadowIgnoreMetaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return newDocument(""), nil
		}
		return l.loadFromBackup()
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return l.loadFromBackup()
	}
	if doc.Decisions == nil {
		doc.Decisions = make(map[string]UserDecision)
	}
	return doc, nil
}

// loadFromBackup falls back to the .backup sibling when the primary file
// exists but cannot be read or fails to parse; load treats a missing primary
// as an empty ledger instead. Without a usable backup it also returns an
// empty document.
func (l *Ledger) loadFromBackup() (document, error) {
	data, err := os.ReadFile(l.store.ShadowIgnoreMetaPath() + ".backup")
	if err != nil {
		return newDocument(""), nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return newDocument(""), nil
	}
	if doc.Decisions == nil {
		doc.Decisions = make(map[string]UserDecision)
	}
	return doc, nil
}

// save writes doc atomically, backing up the previous version first.
func (l *Ledger) save(doc document) error {
	doc.LastUpdated = time.Now()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling decision ledger")
	}
	return atomicfile.WriteWithBackup(l.store.ShadowIgnoreMetaPath(), data, 0644)
}

func (l *Ledger) appendAudit(doc *document, action audit.Action, details map[string]any) {
	entry := audit.New(l.idGen(), action, l.userID, l.toolVersion, "", details)
	doc.AuditTrail = append(doc.AuditTrail, entry)
	doc.AuditTrail = audit.Trim(doc.AuditTrail, audit.DefaultRetention)
}

// Add creates a new UserDecision and appends a decision_added audit entry.
func (l *Ledger) Add(pattern string, decision Decision, reason string, confidence float64, autoReviewAt, expiresAt *time.Time, tags []string) (string, error) {
	doc, err := l.load()
	if err != nil {
		return "", err
	}

	id := l.idGen()
	ud := UserDecision{
		ID:           id,
		Pattern:      pattern,
		DecisionType: decision,
		Reason:       reason,
		Timestamp:    time.Now(),
		UserID:       l.userID,
		Confidence:   confidence,
		AutoReviewAt: autoReviewAt,
		ExpiresAt:    expiresAt,
		Tags:         tags,
	}
	doc.Decisions[id] = ud
	l.appendAudit(&doc, audit.ActionDecisionAdded, map[string]any{
		"id": id, "pattern": pattern, "decision": string(decision),
	})

	if err := l.save(doc); err != nil {
		return "", err
	}
	return id, nil
}

// GetByPattern returns the decision whose pattern matches path, preferring
// an exact-path match over a glob match, and the longest-prefix glob among
// ties. If the matched decision has expired, it is moved to the audit
// trail and GetByPattern reports no match.
func (l *Ledger) GetByPattern(path string) (UserDecision, bool, error) {
	doc, err := l.load()
	if err != nil {
		return UserDecision{}, false, err
	}

	match, ok := bestMatch(doc.Decisions, path)
	if !ok {
		return UserDecision{}, false, nil
	}

	if match.expired(time.Now()) {
		delete(doc.Decisions, match.ID)
		l.appendAudit(&doc, audit.ActionExpired, map[string]any{"id": match.ID, "pattern": match.Pattern})
		if err := l.save(doc); err != nil {
			return UserDecision{}, false, err
		}
		return UserDecision{}, false, nil
	}

	return match, true, nil
}

// bestMatch finds the decision matching path, applying the exact-path
// precedence and longest-prefix-glob tiebreak from the specification.
func bestMatch(decisions map[string]UserDecision, path string) (UserDecision, bool) {
	for _, d := range decisions {
		if d.Pattern == path {
			return d, true
		}
	}

	prefixLen := func(pattern string) int {
		if i := strings.IndexAny(pattern, "*?[{"); i >= 0 {
			return i
		}
		return len(pattern)
	}

	var best UserDecision
	found := false
	for _, d := range decisions {
		ok, _ := doublestar.Match(d.Pattern, path)
		if !ok {
			continue
		}
		dp, bp := prefixLen(d.Pattern), prefixLen(best.Pattern)
		if !found || dp > bp || (dp == bp && len(d.Pattern) > len(best.Pattern)) {
			best = d
			found = true
		}
	}
	return best, found
}

// All returns every active decision, lazily expiring any whose ExpiresAt
// has passed.
func (l *Ledger) All() (map[string]UserDecision, error) {
	doc, err := l.load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	changed := false
	for id, d := range doc.Decisions {
		if d.expired(now) {
			delete(doc.Decisions, id)
			l.appendAudit(&doc, audit.ActionExpired, map[string]any{"id": id, "pattern": d.Pattern})
			changed = true
		}
	}
	if changed {
		if err := l.save(doc); err != nil {
			return nil, err
		}
	}

	out := make(map[string]UserDecision, len(doc.Decisions))
	for id, d := range doc.Decisions {
		out[id] = d
	}
	return out, nil
}

// Update applies mutate to the decision identified by id, stamps a fresh
// Timestamp, and records an updated_fields audit entry. It returns false
// if id does not exist.
func (l *Ledger) Update(id string, mutate func(*UserDecision)) (bool, error) {
	doc, err := l.load()
	if err != nil {
		return false, err
	}

	d, ok := doc.Decisions[id]
	if !ok {
		return false, nil
	}
	before := d
	mutate(&d)
	d.Timestamp = time.Now()
	doc.Decisions[id] = d

	l.appendAudit(&doc, audit.ActionUpdated, map[string]any{
		"id":             id,
		"updated_fields": changedFields(before, d),
	})

	if err := l.save(doc); err != nil {
		return false, err
	}
	return true, nil
}

// changedFields reports which top-level fields differ between before and
// after, for the audit entry's updated_fields detail.
func changedFields(before, after UserDecision) []string {
	var fields []string
	if before.Pattern != after.Pattern {
		fields = append(fields, "pattern")
	}
	if before.DecisionType != after.DecisionType {
		fields = append(fields, "decision")
	}
	if before.Reason != after.Reason {
		fields = append(fields, "reason")
	}
	if before.Confidence != after.Confidence {
		fields = append(fields, "confidence")
	}
	if before.UserID != after.UserID {
		fields = append(fields, "user_id")
	}
	return fields
}

// Delete soft-deletes the decision identified by id: it is removed from
// the active set and retained in the audit trail with
// action=updated, deleted=true. It returns false if id does not exist.
func (l *Ledger) Delete(id string) (bool, error) {
	doc, err := l.load()
	if err != nil {
		return false, err
	}

	d, ok := doc.Decisions[id]
	if !ok {
		return false, nil
	}
	delete(doc.Decisions, id)
	l.appendAudit(&doc, audit.ActionUpdated, map[string]any{
		"id": id, "pattern": d.Pattern, "deleted": true,
	})

	if err := l.save(doc); err != nil {
		return false, err
	}
	return true, nil
}

// Expired returns every decision currently past its ExpiresAt, without
// mutating the ledger.
func (l *Ledger) Expired() ([]UserDecision, error) {
	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []UserDecision
	for _, d := range doc.Decisions {
		if d.expired(now) {
			out = append(out, d)
		}
	}
	sortByTimestamp(out)
	return out, nil
}

// DueForReview returns every decision whose AutoReviewAt has been reached.
func (l *Ledger) DueForReview() ([]UserDecision, error) {
	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []UserDecision
	for _, d := range doc.Decisions {
		if d.dueForReview(now) {
			out = append(out, d)
		}
	}
	sortByTimestamp(out)
	return out, nil
}

func sortByTimestamp(ds []UserDecision) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].Timestamp.Before(ds[j].Timestamp) })
}

// ImportStrategy controls how Import reconciles incoming decisions with
// the ledger's current contents.
type ImportStrategy string

const (
	// ImportOverwrite replaces the entire active decision set.
	ImportOverwrite ImportStrategy = "overwrite"
	// ImportMerge keeps existing decisions and adds incoming ones,
	// with incoming decisions winning on id collision.
	ImportMerge ImportStrategy = "merge"
	// ImportAppend adds every incoming decision under a freshly minted
	// id, even if its id collides with an existing entry.
	ImportAppend ImportStrategy = "append"
)

// Export writes the full ledger document to path and records an exported
// audit entry.
func (l *Ledger) Export(path string) error {
	doc, err := l.load()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling ledger export")
	}
	if err := atomicfile.Write(path, data, 0644); err != nil {
		return err
	}

	l.appendAudit(&doc, audit.ActionExported, map[string]any{"path": path, "count": len(doc.Decisions)})
	return l.save(doc)
}

// Import reads a previously exported document from path and reconciles it
// into the ledger according to strategy, recording an imported audit entry.
func (l *Ledger) Import(path string, strategy ImportStrategy) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "reading import file %s", path)
	}
	var incoming document
	if err := json.Unmarshal(data, &incoming); err != nil {
		return 0, errors.Wrap(err, "parsing import file")
	}

	doc, err := l.load()
	if err != nil {
		return 0, err
	}

	switch strategy {
	case ImportOverwrite:
		doc.Decisions = incoming.Decisions
		if doc.Decisions == nil {
			doc.Decisions = make(map[string]UserDecision)
		}
		doc.SecurityMetadata = incoming.SecurityMetadata
		doc.AuditTrail = incoming.AuditTrail
	case ImportAppend:
		for _, d := range incoming.Decisions {
			d.ID = l.idGen()
			doc.Decisions[d.ID] = d
		}
	case ImportMerge:
		fallthrough
	default:
		for id, d := range incoming.Decisions {
			doc.Decisions[id] = d
		}
	}

	l.appendAudit(&doc, audit.ActionImported, map[string]any{
		"path": path, "strategy": string(strategy), "count": len(incoming.Decisions),
	})

	if err := l.save(doc); err != nil {
		return 0, err
	}
	return len(incoming.Decisions), nil
}

// Statistics summarizes the ledger's current state for the Compliance
// Evaluator and the dashboard command.
type Statistics struct {
	TotalsByDecision  map[Decision]int `json:"totals_by_decision"`
	TotalsByAction    map[string]int   `json:"totals_by_action"`
	ExpiredCount      int              `json:"expired_count"`
	DueForReviewCount int              `json:"due_for_review_count"`
	SecurityScore     float64          `json:"security_score"`
	RiskLevel         catalog.Severity `json:"risk_level"`
	MetadataSize      int              `json:"metadata_size"`
}

// Statistics computes aggregate counts over the active decision set and
// audit trail.
func (l *Ledger) Statistics() (Statistics, error) {
	doc, err := l.load()
	if err != nil {
		return Statistics{}, err
	}

	now := time.Now()
	stats := Statistics{
		TotalsByDecision: make(map[Decision]int),
		TotalsByAction:   make(map[string]int),
	}

	risky := 0
	for _, d := range doc.Decisions {
		stats.TotalsByDecision[d.DecisionType]++
		if d.expired(now) {
			stats.ExpiredCount++
		}
		if d.dueForReview(now) {
			stats.DueForReviewCount++
		}
		if d.DecisionType == DecisionIgnorePermanently || d.DecisionType == DecisionIgnoreTemporarily || d.DecisionType == DecisionSafe {
			risky++
		}
	}
	for _, e := range doc.AuditTrail {
		stats.TotalsByAction[string(e.Action)]++
	}

	total := len(doc.Decisions)
	if total == 0 {
		stats.SecurityScore = 100
	} else {
		stats.SecurityScore = 100 * float64(total-risky) / float64(total)
	}
	stats.RiskLevel = scoreToSeverity(stats.SecurityScore)

	data, err := json.Marshal(doc)
	if err == nil {
		stats.MetadataSize = len(data)
	}

	return stats, nil
}

func scoreToSeverity(score float64) catalog.Severity {
	switch {
	case score >= 90:
		return catalog.SeverityInfo
	case score >= 70:
		return catalog.SeverityLow
	case score >= 50:
		return catalog.SeverityMedium
	case score >= 25:
		return catalog.SeverityHigh
	default:
		return catalog.SeverityCritical
	}
}

// IntegrityReport is the result of ValidateIntegrity.
type IntegrityReport struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// ValidateIntegrity checks the ledger document for internal consistency:
// non-empty, well-formed patterns, confidence within [0,1], and each
// decision's id field matching its key in the decision map.
func (l *Ledger) ValidateIntegrity() (IntegrityReport, error) {
	doc, err := l.load()
	if err != nil {
		return IntegrityReport{}, err
	}

	report := IntegrityReport{Valid: true}
	for id, d := range doc.Decisions {
		if d.ID != id {
			report.Valid = false
			report.Issues = append(report.Issues, "decision "+id+" has mismatched id field "+d.ID)
		}
		if d.Pattern == "" {
			report.Valid = false
			report.Issues = append(report.Issues, "decision "+id+" has an empty pattern")
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			report.Valid = false
			report.Issues = append(report.Issues, "decision "+id+" has confidence outside [0,1]")
		}
		if _, err := doublestar.Match(d.Pattern, "probe"); err != nil {
			report.Valid = false
			report.Issues = append(report.Issues, "decision "+id+" has an unparseable pattern: "+d.Pattern)
		}
	}

	return report, nil
}
