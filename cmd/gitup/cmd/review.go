package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/crashappsec/gitup/pkg/core/errors"
	"github.com/crashappsec/gitup/pkg/core/terminal"
	"github.com/crashappsec/gitup/pkg/ledger"
	"github.com/crashappsec/gitup/pkg/review"
	"github.com/crashappsec/gitup/pkg/risk"
)

var reviewInteractive bool

var reviewCmd = &cobra.Command{
	Use:   "review [path]",
	Short: "Walk through detected security risks",
	Long: `Scan the project and, one risk at a time, ask what should happen
to it: ignore it, add it to the shadow or user ignore list, remove the
file, or defer to a later review.

Examples:
  gitup security review                  Interactive review
  gitup security review --no-interactive Persist the blocking set without prompting`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

func init() {
	securityCmd.AddCommand(reviewCmd)
	reviewCmd.Flags().BoolVar(&reviewInteractive, "interactive", true, "Prompt for each detected risk")
	reviewCmd.Flags().Bool("no-interactive", false, "Persist the blocking set without prompting (alias for --interactive=false)")
}

func runReview(cmd *cobra.Command, args []string) error {
	if noInteractive, _ := cmd.Flags().GetBool("no-interactive"); noInteractive {
		reviewInteractive = false
	}

	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	p, err := openProject(root)
	if err != nil {
		return err
	}

	var presenter review.Presenter
	if reviewInteractive {
		presenter = terminalPresenter{term: term}
	}

	result, err := p.review.Run(reviewInteractive, presenter)
	if err != nil {
		return err
	}

	switch result.Status {
	case review.StatusClean:
		term.Success("No security risks found")
	case review.StatusViolationsDetected, review.StatusCompleted:
		term.ScanSummary(result.TotalRisks, result.BlockingCount, severityCountMap(result.CountsBySeverity))
		for _, ad := range result.Applied {
			if !ad.Applied {
				continue
			}
			term.Info("  %s -> %s", ad.Path, ad.Decision)
		}
	case review.StatusCancelled:
		term.Warning("Review cancelled; %d decision(s) applied before cancellation", len(result.Applied))
	}

	if result.BlockingCount > 0 {
		os.Exit(1)
	}
	return nil
}

// terminalPresenter drives review.Presenter off the process's stdin/stdout,
// the only Presenter implementation gitup ships; anything else (a future
// editor integration, a TUI) would supply its own.
type terminalPresenter struct {
	term *terminal.Terminal
}

func (p terminalPresenter) Decide(r risk.SecurityRisk) (review.Choice, error) {
	p.term.RiskLine(terminal.RiskRow{
		Path:        r.FilePath,
		RiskType:    string(r.RiskType),
		Severity:    string(r.RiskLevel),
		Blocking:    r.RiskLevel.IsAtLeast("high"),
		Description: r.Description,
	})

	options := []string{
		"Safe, leave as-is",
		"Ignore permanently",
		"Ignore temporarily (7 days)",
		"Add to .gitignore",
		"Add to shadow ignore",
		"Remove the file",
		"Review later",
		"Cancel review",
	}
	choice := p.term.PromptChoice("What should happen to this file?", options, 6)

	reason := ""
	if choice == 0 || choice == 1 || choice == 2 {
		reason = p.term.Prompt("Reason (optional)")
	}

	switch choice {
	case 0:
		return review.Choice{Decision: ledger.DecisionSafe, Reason: reason}, nil
	case 1:
		return review.Choice{Decision: ledger.DecisionIgnorePermanently, Reason: reason}, nil
	case 2:
		return review.Choice{Decision: ledger.DecisionIgnoreTemporarily, Reason: reason}, nil
	case 3:
		return review.Choice{Decision: ledger.DecisionAddToUserIgnore}, nil
	case 4:
		return review.Choice{Decision: ledger.DecisionAddToShadowIgnore}, nil
	case 5:
		return review.Choice{Decision: ledger.DecisionRemoveFile}, nil
	case 6:
		return review.Choice{Decision: ledger.DecisionReviewLater}, nil
	default:
		return review.Choice{}, errors.ErrCancelled
	}
}

func (p terminalPresenter) ConfirmRemoval(r risk.SecurityRisk) bool {
	return p.term.Confirm("Really delete "+r.FilePath+"?", false)
}
