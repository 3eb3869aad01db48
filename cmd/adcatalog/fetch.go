package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/catalog"
)

func newFetchCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <content-id>",
		Short: "Enrich and store a single fiction record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("content id must be a positive integer, got %q", args[0])
			}
			ctx := cmd.Context()

			enricher, err := env.app.Enricher(ctx)
			if err != nil {
				return err
			}
			rec, err := enricher.Fetch(ctx, id)
			if err != nil {
				return err
			}
			if err := env.app.Catalog().SaveMetadata(ctx, rec); err != nil {
				return fmt.Errorf("save content %d: %w", id, err)
			}
			if audit := env.app.Audit(); audit != nil {
				event := catalog.Event{
					Kind:     catalog.EventContentSaved,
					RecordID: rec.Key(),
					At:       time.Unix(rec.Timestamp, 0).UTC(),
				}
				if err := audit.Record(ctx, event); err != nil {
					env.logger.Warn("audit event failed", zap.Int64("content_id", id), zap.Error(err))
				}
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved %d %q\n", rec.ID, rec.Title)
			return err
		},
	}
}
