package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyscope/keyscope/internal/adapters/outbound/tui"
	"github.com/keyscope/keyscope/internal/application"
	"github.com/keyscope/keyscope/internal/domain"
)

func newValidateCmd() *cobra.Command {
	var (
		flags      compareFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Fail when key changes break the configured policy",
		Long:  "Compare the project against its baseline and apply the policy section of .keyscope.yaml. Exits 1 when any violation is found.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd, args)
			if err != nil {
				return err
			}
			req, err := flags.request(cmd, p)
			if err != nil {
				return err
			}

			result, err := application.NewValidateService(p.scans, p.snapshots).Validate(cmd.Context(), application.ValidateRequest{
				CompareRequest: req,
				Policy:         p.cfg.Policy,
			})
			if err != nil {
				return fmt.Errorf("validate failed: %w", err)
			}

			if jsonOutput {
				if err := renderJSON(cmd, result); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderValidation(result))
			}

			if !result.Passed() {
				return domain.ErrViolations
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the verdict as JSON")

	return cmd
}
