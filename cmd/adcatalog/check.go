package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errInconsistent = errors.New("catalog is inconsistent")

func newCheckCmd(env *environment) *cobra.Command {
	var deleteOrphans bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the index documents with the stored images",
		Long: `Reports images no index entry references (orphans) and index entries whose
image is missing (dangling). With --delete, orphan images are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := env.app.Catalog().Reconcile(cmd.Context(), deleteOrphans)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			env.logger.Info("catalog checked",
				zap.Int("ad_orphans", len(report.Ads.Orphans)),
				zap.Int("ad_dangling", len(report.Ads.Dangling)),
				zap.Int("cover_orphans", len(report.Covers.Orphans)),
				zap.Int("cover_dangling", len(report.Covers.Dangling)),
				zap.Bool("deleted", deleteOrphans),
			)
			dangling := len(report.Ads.Dangling) + len(report.Covers.Dangling)
			orphans := len(report.Ads.Orphans) + len(report.Covers.Orphans)
			if dangling > 0 || (orphans > 0 && !deleteOrphans) {
				return errInconsistent
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&deleteOrphans, "delete", false, "delete orphan images")
	return cmd
}
