package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyscope/keyscope/internal/adapters/inbound/watch"
	"github.com/keyscope/keyscope/internal/adapters/outbound/tui"
)

func newWatchCmd() *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Rescan whenever Dart files change",
		Long:  "Run a scan, then rerun it each time .dart files below the project settle after an edit. Stops on Ctrl-C.",
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

			out := cmd.OutOrStdout()
			rescan := func(ctx context.Context) {
				result, err := p.scans.Scan(ctx, req)
				if err != nil {
					p.logger.Error("scan failed", "error", err)
					return
				}
				fmt.Fprint(out, tui.RenderScan(result))
			}

			w, err := watch.New(p.root, rescan, watch.WithLogger(p.logger))
			if err != nil {
				return err
			}
			rescan(cmd.Context())
			fmt.Fprintf(out, "\nWatching %s for changes...\n", p.root)
			return w.Run(cmd.Context())
		},
	}

	flags.register(cmd)

	return cmd
}
