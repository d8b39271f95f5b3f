package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/keyscope/keyscope/internal/adapters/outbound/config"
	"github.com/keyscope/keyscope/internal/domain"
)

func newInitCmd() *cobra.Command {
	var (
		scope string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Generate a .keyscope.yaml configuration file",
		Long:  "Create a .keyscope.yaml with the default scan and policy settings.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			dest := filepath.Join(absPath, config.FileName)

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", config.FileName)
				}
			}

			s, err := domain.ParseScope(scope)
			if err != nil {
				return &domain.InputError{Op: "parsing", Path: "--scope", Err: err}
			}

			if err := os.WriteFile(dest, []byte(generateConfig(s)), 0o644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.FileName)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", string(domain.ScopeWorkspace), "Default scan scope (workspace, deps, all)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing .keyscope.yaml")

	return cmd
}

func generateConfig(scope domain.Scope) string {
	cfg := domain.DefaultConfig()

	result := fmt.Sprintf("# keyscope configuration\n\nscan:\n  scope: %s\n  include_tests: false\n  include_generated: false\n  # packages:\n  #   - shared_*\n  # widget_types:\n  #   - AppButton\n\n", scope)

	result += fmt.Sprintf("policy:\n  fail_on_lost: %t\n  fail_on_rename: %t\n  fail_on_extra: %t\n  # max_drift_percent: 10\n  protected_tags:\n",
		cfg.Policy.FailOnLost, cfg.Policy.FailOnRename, cfg.Policy.FailOnExtra)
	for _, tag := range cfg.Policy.ProtectedTags {
		result += fmt.Sprintf("    - %s\n", tag)
	}
	result += "  fail_on_package_missing: false\n  fail_on_collision: false\n\n"

	result += `# tag_rules:
#   - key: "*_button"
#     tags: [critical]
#   - key: "*"
#     path: "lib/screens/checkout/**"
#     tags: [checkout]

baseline_path: ` + cfg.EffectiveBaselinePath() + "\n"

	return result
}
