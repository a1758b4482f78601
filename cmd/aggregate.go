package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/planning-cli/internal/forecast"
	"github.com/sells-group/planning-cli/internal/model"
	"github.com/sells-group/planning-cli/internal/scenario"
)

var (
	aggregateFilters   []string
	aggregateScenarios bool
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Print yearly volume and revenue totals over the filtered history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := parseFilterFlags(aggregateFilters)
		if err != nil {
			return err
		}
		totals, err := st.YearlyTotals(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "yearly totals")
		}
		if len(totals) == 0 {
			fmt.Fprintln(os.Stderr, "No records match the requested filters.")
			return nil
		}

		p := message.NewPrinter(language.English)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

		if !aggregateScenarios {
			fmt.Fprintln(w, "YEAR\tVOLUME (KG)\tREVENUE")
			for _, pt := range totals {
				fmt.Fprintf(w, "%d\t%s\t%s\n", pt.Year, p.Sprintf("%.0f", pt.Volume), p.Sprintf("%.2f", pt.Revenue))
			}
			return w.Flush()
		}

		// Project the grand total forward, then overlay each scenario.
		s := &model.YearSeries{History: totals}
		forecast.Project(s, model.ForecastSettings{
			Variable:       model.Variable(cfg.Forecast.Variable),
			Method:         model.MethodCAGR,
			SmoothingYears: cfg.Forecast.SmoothingYears,
		})
		for _, sc := range scenario.Overlay(totals, s.Baseline) {
			fmt.Fprintf(w, "%s\t%s\n", sc.Definition.Label, sc.Definition.Description)
			fmt.Fprintln(w, "YEAR\tVOLUME (KG)\tREVENUE")
			for _, pt := range sc.Totals {
				fmt.Fprintf(w, "%d\t%s\t%s\n", pt.Year, p.Sprintf("%.0f", pt.Volume), p.Sprintf("%.2f", pt.Revenue))
			}
			fmt.Fprintln(w)
		}
		return w.Flush()
	},
}

func init() {
	aggregateCmd.Flags().StringArrayVar(&aggregateFilters, "filter", nil, "dimension filter, e.g. --filter director=North")
	aggregateCmd.Flags().BoolVar(&aggregateScenarios, "scenarios", false, "project totals and print scenario overlays")
	rootCmd.AddCommand(aggregateCmd)
}
