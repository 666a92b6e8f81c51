package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestClient    string
	ingestBatchName string
	ingestFile      string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Create a batch of leads from a LinkedIn URL list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		urls, err := readURLList(ingestFile)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return eris.Errorf("no URLs found in %s", ingestFile)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		batch, err := st.CreateBatch(ctx, ingestClient, ingestBatchName)
		if err != nil {
			return err
		}

		created, duplicates, err := newEnricher(st).CreateLeadsFromURLs(ctx, ingestClient, batch.ID, urls)
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete",
			zap.String("batch_id", batch.ID),
			zap.Int("created", created),
			zap.Int("duplicates", duplicates),
		)
		cmd.Println(batch.ID)
		return nil
	},
}

// readURLList reads one URL per line, skipping blanks and # comments.
func readURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return urls, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestClient, "client", "", "client ID (required)")
	ingestCmd.Flags().StringVar(&ingestBatchName, "batch-name", "", "human-readable batch name")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path to URL list, one per line (required)")
	_ = ingestCmd.MarkFlagRequired("client")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}
