package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/icp-cli/internal/export"
)

var (
	exportMinScore int
	exportOut      string
)

var exportCmd = &cobra.Command{
	Use:   "export <batch-id>",
	Short: "Export a batch's qualified leads as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		batchID := args[0]

		if err := cfg.Validate("export"); err != nil {
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

		minScore := exportMinScore
		if !cmd.Flags().Changed("min-score") {
			minScore = cfg.Export.MinScore
		}

		out := exportOut
		if out == "" {
			short := batchID
			if len(short) > 8 {
				short = short[:8]
			}
			out = filepath.Join(cfg.Export.Dir, fmt.Sprintf("qualified_leads_%s.csv", short))
		}

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create %s", out)
		}
		defer f.Close()

		n, err := export.NewExporter(st).WriteCSV(ctx, f, batchID, minScore)
		if err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", out)
		}

		zap.L().Info("export complete",
			zap.String("batch_id", batchID),
			zap.Int("rows", n),
			zap.String("file", out),
		)
		cmd.Println(out)
		return nil
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "minimum ICP score to include (0 = all qualified)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default qualified_leads_<batch>.csv in export.dir)")
	rootCmd.AddCommand(exportCmd)
}
