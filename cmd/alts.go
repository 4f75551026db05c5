package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/groster/groster/internal/model"
	"github.com/groster/groster/internal/report"
)

var altsCmd = &cobra.Command{
	Use:   "alts",
	Short: "Recompute alt groups from cached payloads",
	Long: "Re-runs alt identification offline from the roster and achievement payloads cached by " +
		"the last update. Use --threshold to tune grouping and --save to store the result.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("threshold") {
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			cfg.Alts.Threshold = threshold
		}
		if err := cfg.Validate("alts"); err != nil {
			return err
		}
		save, _ := cmd.Flags().GetBool("save")
		list, _ := cmd.Flags().GetBool("list")

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc, err := initService(cfg, nil, st)
		if err != nil {
			return err
		}

		res, err := svc.Recompute(ctx, cfg.Guild.Key(), cfg.Alts, save)
		if err != nil {
			return err
		}
		if list {
			formatAltGroups(os.Stdout, res.Alts)
		}
		return report.WriteSummary(os.Stdout, res.Summary)
	},
}

func init() {
	altsCmd.Flags().Float64("threshold", 0, "similarity threshold in [0,1] (default from config)")
	altsCmd.Flags().Bool("save", false, "store the recomputed alts and rebuild the dashboard")
	altsCmd.Flags().Bool("list", false, "print every main with its alts")
	rootCmd.AddCommand(altsCmd)
}

// formatAltGroups writes each main that has alts, followed by its alts.
// Records are expected sorted by main.
func formatAltGroups(out io.Writer, records []model.AltRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MAIN\tALTS")
	_, _ = fmt.Fprintln(w, "----\t----")

	var (
		current string
		names   []string
	)
	flush := func() {
		if len(names) > 0 {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", current, strings.Join(names, ", "))
		}
	}
	for _, r := range records {
		if r.Main != current {
			flush()
			current, names = r.Main, nil
		}
		if r.Alt {
			names = append(names, r.Name)
		}
	}
	flush()
	_ = w.Flush()
}
