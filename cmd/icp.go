package main

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/icp-cli/internal/model"
)

var (
	icpClient     string
	icpTitles     []string
	icpIndustries []string
	icpSizes      []string
	icpKeywords   []string
	icpExclude    []string
	icpNotes      string
)

var icpCmd = &cobra.Command{
	Use:   "icp",
	Short: "Manage client ICP criteria",
}

var icpSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a client's ICP criteria, replacing any existing set",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("icp"); err != nil {
			return err
		}

		icp := model.ClientICP{
			ClientID:         icpClient,
			TargetTitles:     icpTitles,
			TargetIndustries: icpIndustries,
			CompanySizes:     icpSizes,
			TargetKeywords:   icpKeywords,
			ExcludeTitles:    icpExclude,
			Notes:            icpNotes,
			UpdatedAt:        time.Now().UTC(),
		}
		if !icp.HasCriteria() {
			return eris.New("at least one of --titles, --industries, --sizes, --keywords is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if err := st.UpsertICP(ctx, icp); err != nil {
			return err
		}

		zap.L().Info("icp criteria saved", zap.String("client_id", icpClient))
		return nil
	},
}

var icpShowCmd = &cobra.Command{
	Use:   "show <client-id>",
	Short: "Show a client's ICP criteria",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("icp"); err != nil {
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

		icp, err := st.GetICP(ctx, args[0])
		if err != nil {
			return err
		}
		if icp == nil {
			return eris.Errorf("no ICP criteria defined for client %s", args[0])
		}

		cmd.Printf("client:     %s\n", icp.ClientID)
		cmd.Printf("titles:     %s\n", strings.Join(icp.TargetTitles, ", "))
		cmd.Printf("industries: %s\n", strings.Join(icp.TargetIndustries, ", "))
		cmd.Printf("sizes:      %s\n", strings.Join(icp.CompanySizes, ", "))
		cmd.Printf("keywords:   %s\n", strings.Join(icp.TargetKeywords, ", "))
		cmd.Printf("exclude:    %s\n", strings.Join(icp.ExcludeTitles, ", "))
		if icp.Notes != "" {
			cmd.Printf("notes:      %s\n", icp.Notes)
		}
		cmd.Printf("updated:    %s\n", icp.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	icpSetCmd.Flags().StringVar(&icpClient, "client", "", "client ID (required)")
	icpSetCmd.Flags().StringSliceVar(&icpTitles, "titles", nil, "target job titles")
	icpSetCmd.Flags().StringSliceVar(&icpIndustries, "industries", nil, "target industries")
	icpSetCmd.Flags().StringSliceVar(&icpSizes, "sizes", nil, "target company size segments")
	icpSetCmd.Flags().StringSliceVar(&icpKeywords, "keywords", nil, "target keywords")
	icpSetCmd.Flags().StringSliceVar(&icpExclude, "exclude-titles", nil, "titles to exclude")
	icpSetCmd.Flags().StringVar(&icpNotes, "notes", "", "free-text notes")
	_ = icpSetCmd.MarkFlagRequired("client")

	icpCmd.AddCommand(icpSetCmd, icpShowCmd)
	rootCmd.AddCommand(icpCmd)
}
