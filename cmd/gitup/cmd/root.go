// Package cmd implements the gitup CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/crashappsec/gitup/pkg/core/terminal"
	"github.com/spf13/cobra"
)

// toolVersion is stamped into every audit entry gitup writes. It has no
// build-time injection yet; bump it by hand alongside tagged releases.
const toolVersion = "0.1.0"

var (
	verbose  bool
	noColor  bool
	modeFlag string

	term *terminal.Terminal
)

var rootCmd = &cobra.Command{
	Use:   "gitup",
	Short: "Pre-commit security enforcement for working trees",
	Long: `gitup scans a project's working tree for files that should never be
committed, tracks the decisions a team makes about them, and blocks a
commit when an unresolved risk is still present.

Quick Start:
  gitup init                  Set up gitup in the current project
  gitup status                Show the project's current compliance state
  gitup security review       Walk through detected risks interactively
  gitup compliance-check      Evaluate compliance and exit non-zero if not compliant`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			os.Setenv("NO_COLOR", "1")
		}
		term = terminal.New()
		switch modeFlag {
		case "newbie":
			term.SetMode(terminal.ModeNewbie)
		case "hardcore":
			term.SetMode(terminal.ModeHardcore)
		case "standard":
			term.SetMode(terminal.ModeStandard)
		case "":
			// leave GITUP_MODE-derived default in place
		default:
			fmt.Fprintf(os.Stderr, "unknown --mode %q, ignoring\n", modeFlag)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "Verbosity mode: newbie, standard, hardcore (overrides GITUP_MODE)")
}
