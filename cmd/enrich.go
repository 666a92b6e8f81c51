package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/icp-cli/internal/enrich"
)

var (
	enrichLimit int
	enrichRetry bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <batch-id>",
	Short: "Scrape and enrich a batch's discovered leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		batchID := args[0]

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		enricher := newEnricher(st)

		var counts *enrich.Counts
		if enrichRetry {
			counts, err = enricher.RetryFailed(ctx, batchID)
		} else {
			counts, err = enricher.EnrichBatch(ctx, batchID, enrichLimit)
		}
		if err != nil {
			return err
		}

		zap.L().Info("enrichment complete",
			zap.String("batch_id", batchID),
			zap.Int("enriched", counts.Enriched),
			zap.Int("from_cache", counts.FromCache),
			zap.Int("failed", counts.Failed),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max leads to enrich (0 = all)")
	enrichCmd.Flags().BoolVar(&enrichRetry, "retry-failed", false, "reset failed leads under the retry limit and enrich them")
	rootCmd.AddCommand(enrichCmd)
}
