package cmd

import "github.com/spf13/cobra"

// securityCmd groups the interactive, project-facing operations together,
// mirroring spec.md §6's "security <verb>" command family.
var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Interactive security review, configuration, and dashboard",
}

func init() {
	rootCmd.AddCommand(securityCmd)
}
