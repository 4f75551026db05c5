package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/groster/groster/internal/report"
)

var updateXLSX string

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch the guild roster and rebuild every table",
	Long: "Fetches the roster, character profiles, achievements, pets and mounts, identifies alts " +
		"and writes the roster, links, alts, achievements and dashboard tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if updateXLSX != "" {
			cfg.Report.XLSXPath = updateXLSX
		}
		if err := cfg.Validate("update"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		key := cfg.Guild.Key()
		client, err := initBlizzard(cfg.Blizzard, key.Region)
		if err != nil {
			return err
		}
		svc, err := initService(cfg, client, st)
		if err != nil {
			return err
		}

		res, err := svc.Update(ctx, key)
		if err != nil {
			return err
		}
		return report.WriteSummary(os.Stdout, res.Summary)
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateXLSX, "xlsx", "", "also write the dashboard to this xlsx file")
	rootCmd.AddCommand(updateCmd)
}
