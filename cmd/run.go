package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runLimit int

var runCmd = &cobra.Command{
	Use:   "run <batch-id>",
	Short: "Enrich then qualify a batch in one pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		batchID := args[0]

		if err := cfg.Validate("run"); err != nil {
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

		batch, err := st.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		icp, err := st.GetICP(ctx, batch.ClientID)
		if err != nil {
			return err
		}
		if icp == nil {
			return eris.Errorf("no ICP criteria defined for client %s", batch.ClientID)
		}

		// Enrichment must finish before qualification starts: qualification
		// only sees leads already in the enriched state.
		enrichCounts, err := newEnricher(st).EnrichBatch(ctx, batchID, runLimit)
		if err != nil {
			return err
		}
		zap.L().Info("enrichment complete",
			zap.String("batch_id", batchID),
			zap.Int("enriched", enrichCounts.Enriched),
			zap.Int("from_cache", enrichCounts.FromCache),
			zap.Int("failed", enrichCounts.Failed),
		)

		qualifier, err := newQualifier(ctx, st)
		if err != nil {
			return err
		}
		qualifyCounts, err := qualifier.QualifyBatch(ctx, batchID, *icp)
		if err != nil {
			return err
		}
		zap.L().Info("qualification complete",
			zap.String("batch_id", batchID),
			zap.Int("processed", qualifyCounts.Processed),
			zap.Int("qualified", qualifyCounts.Qualified),
			zap.Int("failed", qualifyCounts.Failed),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max leads to enrich (0 = all)")
	rootCmd.AddCommand(runCmd)
}
