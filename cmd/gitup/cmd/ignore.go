package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crashappsec/gitup/pkg/core/atomicfile"
	"github.com/crashappsec/gitup/pkg/core/audit"
	"github.com/crashappsec/gitup/pkg/core/errors"
	"github.com/crashappsec/gitup/pkg/ignoremon"
	"github.com/crashappsec/gitup/pkg/ledger"
)

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Operate on the shadow ignore list and decision ledger",
}

var ignoreInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Seed the ignore-delta baseline from the current user ignore file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIgnoreInit,
}

var ignoreStatusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Report whether the user ignore file has changed since the baseline",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIgnoreStatus,
}

var ignoreReviewCmd = &cobra.Command{
	Use:   "review [path]",
	Short: "Show the ignore-file delta since the baseline",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIgnoreReview,
}

var ignoreAddCmd = &cobra.Command{
	Use:   "add <pattern> [path]",
	Short: "Add a pattern to the shadow ignore list",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runIgnoreAdd,
}

var ignoreRemoveCmd = &cobra.Command{
	Use:   "remove <pattern> [path]",
	Short: "Remove a pattern from the shadow ignore list",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runIgnoreRemove,
}

var ignoreAuditCmd = &cobra.Command{
	Use:   "audit [path]",
	Short: "Show the ignore-delta audit stream",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIgnoreAudit,
}

var ignoreUpdateCmd = &cobra.Command{
	Use:   "update [path]",
	Short: "Update the ignore-delta baseline to the current user ignore file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIgnoreUpdate,
}

func init() {
	rootCmd.AddCommand(ignoreCmd)
	ignoreCmd.AddCommand(ignoreInitCmd, ignoreStatusCmd, ignoreReviewCmd, ignoreAddCmd, ignoreRemoveCmd, ignoreAuditCmd, ignoreUpdateCmd)
}

func runIgnoreInit(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	p, err := openProject(root)
	if err != nil {
		return err
	}
	m := ignoremon.New(root, p.store)
	if err := m.UpdateBaseline(); err != nil {
		return err
	}
	term.Success("Ignore-delta baseline seeded")
	return nil
}

func runIgnoreStatus(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	p, err := openProject(root)
	if err != nil {
		return err
	}
	m := ignoremon.New(root, p.store)
	changed, reason, err := m.DetectChanges()
	if err != nil {
		return err
	}
	if changed {
		term.Warning("User ignore file changed since baseline (%s)", reason)
	} else {
		term.Success("User ignore file unchanged since baseline")
	}
	return nil
}

func runIgnoreReview(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	p, err := openProject(root)
	if err != nil {
		return err
	}
	m := ignoremon.New(root, p.store)
	delta, err := m.AnalyzeDelta()
	if err != nil {
		return err
	}
	if !delta.HasChanges {
		term.Info("No ignore-file delta since baseline")
		return nil
	}
	for _, c := range delta.SecurityChanges {
		sign := "+"
		if c.ChangeType == "removed" {
			sign = "-"
		}
		fmt.Printf("  %s %-30s %s (%s)\n", sign, c.Pattern, c.SecurityImpact, c.RiskLevel)
	}
	return nil
}

func runIgnoreAdd(cmd *cobra.Command, args []string) error {
	pattern := args[0]
	root, err := resolveRoot(args[1:])
	if err != nil {
		return err
	}
	p, err := openProject(root)
	if err != nil {
		return err
	}
	if err := appendShadowIgnorePattern(p, pattern); err != nil {
		return err
	}
	if _, err := p.ledger.Add(pattern, ledger.DecisionAddToShadowIgnore, "added via gitup ignore add", 1.0, nil, nil, nil); err != nil {
		return err
	}
	term.Success("Added %s to the shadow ignore", pattern)
	return nil
}

func runIgnoreRemove(cmd *cobra.Command, args []string) error {
	pattern := args[0]
	root, err := resolveRoot(args[1:])
	if err != nil {
		return err
	}
	p, err := openProject(root)
	if err != nil {
		return err
	}
	removed, err := removeShadowIgnorePattern(p, pattern)
	if err != nil {
		return err
	}
	if !removed {
		term.Warning("%s was not present in the shadow ignore", pattern)
		return nil
	}
	term.Success("Removed %s from the shadow ignore", pattern)
	return nil
}

func runIgnoreAudit(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	p, err := openProject(root)
	if err != nil {
		return err
	}
	entries, err := p.store.AuditTrail()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Action != audit.ActionIgnoreDelta {
			continue
		}
		fmt.Printf("  %s  %s  %v\n", e.Timestamp.Format("2006-01-02 15:04"), e.UserID, e.Details)
	}
	return nil
}

func runIgnoreUpdate(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	p, err := openProject(root)
	if err != nil {
		return err
	}
	m := ignoremon.New(root, p.store)
	if err := m.UpdateBaseline(); err != nil {
		return err
	}
	term.Success("Baseline updated")
	return nil
}

// appendShadowIgnorePattern appends pattern to the project's shadow ignore
// file, creating it if absent.
func appendShadowIgnorePattern(p *project, pattern string) error {
	existing, err := os.ReadFile(p.store.ShadowIgnorePath())
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "reading shadow ignore")
	}
	content := string(existing)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += pattern + "\n"
	return atomicfile.Write(p.store.ShadowIgnorePath(), []byte(content), 0644)
}

// removeShadowIgnorePattern drops every line matching pattern exactly from
// the shadow ignore file. It reports whether any line was removed.
func removeShadowIgnorePattern(p *project, pattern string) (bool, error) {
	existing, err := os.ReadFile(p.store.ShadowIgnorePath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "reading shadow ignore")
	}

	lines := strings.Split(string(existing), "\n")
	kept := lines[:0]
	removed := false
	for _, line := range lines {
		if strings.TrimSpace(line) == pattern {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return false, nil
	}
	if err := atomicfile.Write(p.store.ShadowIgnorePath(), []byte(strings.Join(kept, "\n")), 0644); err != nil {
		return false, err
	}
	return true, nil
}
