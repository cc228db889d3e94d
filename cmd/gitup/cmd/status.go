package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/crashappsec/gitup/pkg/compliance"
	"github.com/crashappsec/gitup/pkg/core/terminal"
)

var statusCmd = &cobra.Command{
	Use:     "status [path]",
	Aliases: []string{"ls"},
	Short:   "Show a project's gitup store and compliance state",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	p, err := openProject(root)
	if err != nil {
		return err
	}

	if _, err := os.Stat(p.store.Dir()); os.IsNotExist(err) {
		term.Warning("gitup has not been initialized in %s", root)
		term.Info("Run %s to get started", term.Color(terminal.Cyan, "gitup init"))
		os.Exit(1)
	}

	cfg, state, err := p.store.Load()
	if err != nil {
		return err
	}

	term.Header("gitup status")
	term.Info("Security level: %s", cfg.SecurityLevel)
	term.Info("Template: %s", cfg.TemplateType)
	if !state.InitializedAt.IsZero() {
		term.Info("Initialized: %s", state.InitializedAt.Format("2006-01-02 15:04"))
	}

	report, ok, err := compliance.Load(p.store)
	if err != nil {
		return err
	}
	if !ok {
		term.Info("No compliance report yet; run 'gitup compliance-check'")
		return nil
	}

	compliant := report.Verdict == compliance.VerdictCompliant
	openRisks := 0
	for _, n := range report.RiskCounts {
		openRisks += n
	}
	term.ComplianceSummary(compliant, complianceScore(report), string(report.Verdict), string(report.Verdict), openRisks)

	if !compliant {
		os.Exit(1)
	}
	return nil
}

// complianceScore condenses a report to the 0-100 scale the terminal's
// summary line expects, per spec.md §4.8's "compliant counts full credit,
// partial compliance half, risk detected zero" scoring note.
func complianceScore(report compliance.Report) int {
	switch report.Verdict {
	case compliance.VerdictCompliant:
		return 100
	case compliance.VerdictPartialCompliance:
		return 50
	default:
		return 0
	}
}
