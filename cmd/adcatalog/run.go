package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Capture the current ads and fold them into the catalog",
		Long: `Opens the home page in Chrome, captures every 300x250 banner, saves new ads
(superseding near-duplicates) and enriches ads that link to a fiction page.
Exits non-zero when no ad containers are found on the page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if env.cfg.Capture.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, env.cfg.Capture.Timeout)
				defer cancel()
			}

			p, err := env.app.Pipeline(ctx)
			if err != nil {
				return err
			}
			summary, err := p.Run(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"captured=%d accepted=%d superseded=%d enriched=%d skipped=%d degraded=%t\n",
				summary.Captured, summary.Accepted, summary.Superseded,
				summary.Enriched, summary.Skipped, summary.Degraded,
			)
			return err
		},
	}
}
