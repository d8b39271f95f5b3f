package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyscope/keyscope/internal/adapters/outbound/tui"
	"github.com/keyscope/keyscope/internal/application"
)

// compareFlags select the two snapshots of a diff or validate run.
type compareFlags struct {
	scanFlags
	baseline string
	current  string
}

func (f *compareFlags) register(cmd *cobra.Command) {
	f.scanFlags.register(cmd)
	cmd.Flags().StringVar(&f.baseline, "baseline", "", "Baseline snapshot (defaults to baseline_path from config)")
	cmd.Flags().StringVar(&f.current, "current", "", "Compare against this snapshot instead of scanning")
}

func (f *compareFlags) request(cmd *cobra.Command, p *project) (application.CompareRequest, error) {
	scan, err := f.scanFlags.request(cmd, p)
	if err != nil {
		return application.CompareRequest{}, err
	}
	req := application.CompareRequest{
		BaselinePath: p.resolve(f.baseline),
		Scan:         scan,
	}
	if f.current != "" {
		req.CurrentPath = p.resolve(f.current)
	}
	return req, nil
}

func newDiffCmd() *cobra.Command {
	var (
		flags      compareFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "diff [path]",
		Short: "Show keys added, removed or renamed since the baseline",
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

			result, err := application.NewDiffService(p.scans, p.snapshots).Diff(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("diff failed: %w", err)
			}

			if jsonOutput {
				return renderJSON(cmd, result)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderDiff(result))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the diff as JSON")

	return cmd
}
