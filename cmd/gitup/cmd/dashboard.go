package cmd

import (
	"github.com/spf13/cobra"

	"github.com/crashappsec/gitup/pkg/compliance"
	"github.com/crashappsec/gitup/pkg/core/terminal"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard [path]",
	Short: "Render a combined compliance and risk summary",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDashboard,
}

func init() {
	securityCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
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
	assessment, err := p.risk.Scan()
	if err != nil {
		return err
	}

	term.Header("Security dashboard: " + root)
	compliant := report.Verdict == compliance.VerdictCompliant
	openRisks := 0
	for _, n := range report.RiskCounts {
		openRisks += n
	}
	term.ComplianceSummary(compliant, complianceScore(report), string(report.Verdict), string(report.Verdict), openRisks)

	term.SubHeader("Open risks")
	rows := make([]terminal.RiskRow, 0, len(assessment.Risks))
	for _, r := range assessment.Risks {
		rows = append(rows, terminal.RiskRow{
			Path:        r.FilePath,
			RiskType:    string(r.RiskType),
			Severity:    string(r.RiskLevel),
			Blocking:    r.RiskLevel.IsAtLeast("high"),
			Description: r.Description,
		})
	}
	for _, row := range rows {
		term.RiskLine(row)
	}

	term.SubHeader("Recorded decisions")
	decisions, err := p.ledger.All()
	if err != nil {
		return err
	}
	drows := make([]terminal.DecisionRow, 0, len(decisions))
	for _, d := range decisions {
		drows = append(drows, terminal.DecisionRow{
			Pattern:   d.Pattern,
			Action:    string(d.DecisionType),
			Reason:    d.Reason,
			Decided:   d.Timestamp,
			ExpiresAt: d.ExpiresAt,
		})
	}
	term.DecisionTable(drows)

	return nil
}
