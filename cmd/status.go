package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/icp-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status <batch-id>",
	Short: "Show a batch's lead counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		batchID := args[0]

		if err := cfg.Validate("status"); err != nil {
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

		// Counters are advisory; recompute from lead rows before printing.
		if _, err := st.RecomputeBatchCounts(ctx, batchID); err != nil {
			return err
		}
		batch, err := st.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}

		cmd.Printf("batch:      %s\n", batch.ID)
		cmd.Printf("client:     %s\n", batch.ClientID)
		if batch.Name != "" {
			cmd.Printf("name:       %s\n", batch.Name)
		}
		cmd.Printf("status:     %s\n", batch.Status)
		cmd.Printf("total:      %d\n", batch.Counts.Total)
		cmd.Printf("enriched:   %d\n", batch.Counts.Enriched)
		cmd.Printf("qualified:  %d\n", batch.Counts.Qualified)
		cmd.Printf("exported:   %d\n", batch.Counts.Exported)
		cmd.Printf("failed:     %d\n", batch.Counts.Failed)
		if batch.Status == model.BatchStatusQualified || batch.Status == model.BatchStatusExported {
			if batch.CompletedAt != nil {
				cmd.Printf("completed:  %s\n", batch.CompletedAt.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
