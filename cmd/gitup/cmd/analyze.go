package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crashappsec/gitup/pkg/detect"
)

var (
	analyzeDetailed bool
	analyzeJSON     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Run the state detector without writing anything to disk",
	Long: `Classify a project's lifecycle state, risk tier, and recommended
security level. analyze is read-only: it never creates a .gitup store.

Examples:
  gitup analyze             Summarize the current directory
  gitup analyze --detailed  Include per-file findings
  gitup analyze --json      Emit machine-readable output`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeDetailed, "detailed", false, "Include per-file findings")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	det := detect.New(root, ".gitignore", nil)
	analysis, err := det.Analyze()
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}

	term.Header("Project analysis")
	term.Info("State:               %s", analysis.State)
	term.Info("Risk tier:           %s", analysis.RiskTier)
	term.Info("Setup complexity:    %s", analysis.SetupComplexity)
	term.Info("Recommended level:   %s", analysis.RecommendedSecurityLevel)
	term.Info("Commits:             %d", analysis.CommitCount)
	term.Info("Files:               %d", analysis.FileCount)

	for _, w := range analysis.Warnings {
		term.Warning("%s", w)
	}

	if analyzeDetailed {
		if len(analysis.PotentialSecretFiles) > 0 {
			fmt.Println()
			term.SubHeader("Potential secret files")
			for _, f := range analysis.PotentialSecretFiles {
				fmt.Printf("  %s\n", f)
			}
		}
		if len(analysis.SensitiveFiles) > 0 {
			fmt.Println()
			term.SubHeader("Sensitive files")
			for _, f := range analysis.SensitiveFiles {
				fmt.Printf("  %s\n", f)
			}
		}
		if len(analysis.LargeFiles) > 0 {
			fmt.Println()
			term.SubHeader("Large files")
			for _, f := range analysis.LargeFiles {
				fmt.Printf("  %.1f MB  %s\n", f.MB, f.Path)
			}
		}
	}

	return nil
}
