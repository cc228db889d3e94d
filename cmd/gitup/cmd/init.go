package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/crashappsec/gitup/pkg/detect"
	"github.com/crashappsec/gitup/pkg/store"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Set up gitup in a project",
	Long: `Run the state detector against the target directory, create the
.gitup store with a recommended security level, and perform an initial
non-interactive scan.

Examples:
  gitup init                Initialize the current directory
  gitup init ../other-repo  Initialize a different project
  gitup init --force        Re-seed defaults even if already initialized`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Re-initialize even if the store already exists")
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	det := detect.New(root, ".gitignore", nil)
	analysis, err := det.Analyze()
	if err != nil {
		return err
	}

	s := store.New(root, toolVersion)
	result, err := s.Initialize(initForce, uuidGen)
	if err != nil {
		return err
	}

	if result.Status == store.StatusAlreadyInitialized && !initForce {
		term.Info("Already initialized (use --force to re-seed defaults)")
	} else {
		if _, err := s.UpdateConfig(func(c *store.ProjectConfig) {
			c.SecurityLevel = analysis.RecommendedSecurityLevel
			c.TemplateType = firstOrEmpty(analysis.RecommendedTemplates)
		}, uuidGen()); err != nil {
			return err
		}
		term.Success("Initialized gitup in %s", root)
	}

	term.Info("Detected state: %s, risk tier: %s, recommended level: %s",
		analysis.State, analysis.RiskTier, analysis.RecommendedSecurityLevel)
	for _, w := range analysis.Warnings {
		term.Warning("%s", w)
	}

	p, err := openProject(root)
	if err != nil {
		return err
	}
	result2, err := p.review.Run(false, nil)
	if err != nil {
		return err
	}
	term.ScanSummary(result2.TotalRisks, result2.BlockingCount, severityCountMap(result2.CountsBySeverity))

	if result2.BlockingCount > 0 {
		os.Exit(1)
	}
	return nil
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
