package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyscope/keyscope/internal/adapters/outbound/snapshot"
	"github.com/keyscope/keyscope/internal/adapters/outbound/tui"
	"github.com/keyscope/keyscope/internal/application"
	"github.com/keyscope/keyscope/internal/domain"
)

func newScanCmd() *cobra.Command {
	var (
		flags        scanFlags
		jsonOutput   bool
		save         bool
		baselinePath string
	)

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a Flutter project for automation keys",
		Long:  "Find every widget key in the project (and optionally its dependency packages), measure key coverage and report blind spots.",
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

			// Carry tags and lifecycle status forward from the baseline.
			path := p.resolve(baselinePath)
			if p.snapshots.Exists(path) {
				baseline, err := p.snapshots.Load(path)
				if err != nil {
					p.logger.Warn("ignoring unreadable baseline", "path", path, "error", err)
				} else {
					req.Baseline = baseline
				}
			}

			if save {
				if err := application.CheckSavable(req); err != nil {
					return &domain.InputError{Op: "saving", Path: "--since", Err: err}
				}
			}

			result, err := p.scans.Scan(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			if save {
				if err := p.snapshots.Save(path, result); err != nil {
					return fmt.Errorf("saving snapshot: %w", err)
				}
				p.logger.Info("snapshot saved", "path", path)
			}

			if jsonOutput {
				data, err := snapshot.Encode(result)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderScan(result))
			if save {
				fmt.Fprintf(cmd.OutOrStdout(), "\nSaved snapshot to %s\n", path)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the snapshot as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "Write the snapshot to the baseline path")
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "Baseline path (defaults to baseline_path from config)")

	return cmd
}
