package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crashappsec/gitup/pkg/catalog"
	"github.com/crashappsec/gitup/pkg/store"
)

var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Review and adjust a project's security level and global exceptions",
	Long: `Show the project's current security level and global exception
patterns, then prompt to change either.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSecurityConfig,
}

func init() {
	securityCmd.AddCommand(configCmd)
}

func runSecurityConfig(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	p, err := openProject(root)
	if err != nil {
		return err
	}

	cfg, _, err := p.store.Load()
	if err != nil {
		return err
	}

	term.Header("gitup configuration")
	term.Info("Current security level: %s", cfg.SecurityLevel)

	levels := []string{string(catalog.LevelStrict), string(catalog.LevelModerate), string(catalog.LevelRelaxed)}
	current := 1
	for i, l := range levels {
		if l == string(cfg.SecurityLevel) {
			current = i
		}
	}
	choice := term.PromptChoice("Select a security level (Enter to keep current)", levels, current)
	newLevel := catalog.SecurityLevel(levels[choice])

	exceptions, err := p.store.LoadGlobalExceptions()
	if err != nil {
		return err
	}
	term.Info("Global exceptions: %d pattern(s)", len(exceptions.Patterns))
	if add := term.Prompt("Add a global exception pattern (blank to skip)"); add != "" {
		exceptions.Patterns = append(exceptions.Patterns, add)
		if err := p.store.SaveGlobalExceptions(exceptions); err != nil {
			return err
		}
	}

	if newLevel != cfg.SecurityLevel {
		if _, err := p.store.UpdateConfig(func(c *store.ProjectConfig) {
			c.SecurityLevel = newLevel
		}, uuidGen()); err != nil {
			return err
		}
		term.Success("Security level set to %s", newLevel)
	} else {
		fmt.Println()
	}

	return nil
}
