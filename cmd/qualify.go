package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/icp-cli/internal/match"
)

var requalify bool

var qualifyCmd = &cobra.Command{
	Use:   "qualify <batch-id>",
	Short: "Score a batch's enriched leads against the client's ICP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		batchID := args[0]

		if err := cfg.Validate("qualify"); err != nil {
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

		qualifier, err := newQualifier(ctx, st)
		if err != nil {
			return err
		}

		var counts *match.Counts
		if requalify {
			counts, err = qualifier.RequalifyBatch(ctx, batchID, *icp)
		} else {
			counts, err = qualifier.QualifyBatch(ctx, batchID, *icp)
		}
		if err != nil {
			return err
		}

		zap.L().Info("qualification complete",
			zap.String("batch_id", batchID),
			zap.Int("processed", counts.Processed),
			zap.Int("qualified", counts.Qualified),
			zap.Int("failed", counts.Failed),
		)
		return nil
	},
}

func init() {
	qualifyCmd.Flags().BoolVar(&requalify, "requalify", false, "reset already-qualified leads and score them again")
	rootCmd.AddCommand(qualifyCmd)
}
