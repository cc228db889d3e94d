package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/crashappsec/gitup/pkg/compliance"
)

var complianceCmd = &cobra.Command{
	Use:   "compliance-check [path]",
	Short: "Evaluate compliance and report the verdict",
	Long: `Run a fresh risk scan, combine it with ledger statistics and
on-disk presence checks, and print the resulting verdict. Exits non-zero
when the project is not compliant.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runComplianceCheck,
}

func init() {
	rootCmd.AddCommand(complianceCmd)
}

func runComplianceCheck(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	p, err := openProject(root)
	if err != nil {
		return err
	}

	report, err := p.compliance.Evaluate()
	if err != nil {
		return err
	}

	compliant := report.Verdict == compliance.VerdictCompliant
	openRisks := 0
	for _, n := range report.RiskCounts {
		openRisks += n
	}
	term.ComplianceSummary(compliant, complianceScore(report), string(report.Verdict), string(report.Verdict), openRisks)

	totalDecisions := 0
	for _, n := range report.LedgerStats.TotalsByDecision {
		totalDecisions += n
	}
	term.Info("Recorded decisions:  %d", totalDecisions)
	term.Info("Ignore file present: %v", report.FileCompliance.IgnoreFileExists)
	term.Info("Shadow ignore:       %v", report.FileCompliance.ShadowIgnoreExists)

	if !compliant {
		os.Exit(1)
	}
	return nil
}
