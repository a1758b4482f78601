package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/planning-cli/internal/forecast"
	"github.com/sells-group/planning-cli/internal/model"
	"github.com/sells-group/planning-cli/internal/pricing"
	"github.com/sells-group/planning-cli/internal/series"
	"github.com/sells-group/planning-cli/internal/store"
)

var (
	forecastDims    []string
	forecastMethod  string
	forecastVar     string
	forecastSmooth  int
	forecastFilters []string
	forecastPrices  bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Project baseline volumes and revenue for 2027-2030",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := parseFilterFlags(forecastFilters)
		if err != nil {
			return err
		}
		records, err := st.ListRecords(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list records")
		}

		dims, err := parseDims(forecastDims)
		if err != nil {
			return err
		}

		settings := model.ForecastSettings{
			Variable:       model.Variable(cfg.Forecast.Variable),
			Method:         model.Method(cfg.Forecast.Method),
			SmoothingYears: cfg.Forecast.SmoothingYears,
		}
		if forecastVar != "" {
			settings.Variable = model.Variable(forecastVar)
		}
		if forecastMethod != "" {
			settings.Method = model.Method(forecastMethod)
		}
		if forecastSmooth > 0 {
			settings.SmoothingYears = forecastSmooth
		}

		grouped, err := forecast.ProjectSeries(records, dims, settings)
		if err != nil {
			if eris.Is(err, series.ErrEmptyDataset) {
				fmt.Fprintln(os.Stderr, "No records match the requested filters.")
				return nil
			}
			return eris.Wrap(err, "project series")
		}

		if forecastPrices && settings.Variable == model.VariableVolume {
			byType, err := series.Aggregate(records, []model.Level{model.LevelProductType}, series.Options{})
			if err != nil {
				return eris.Wrap(err, "aggregate product types")
			}
			baselines := make(map[string]*model.YearSeries, len(byType))
			for _, s := range byType {
				baselines[s.Values[model.LevelProductType]] = s
			}
			prices, err := pricing.Resolve(baselines, model.PriceSettings{
				Mode:            model.PriceMode(cfg.Price.Mode),
				AnnualGrowthPct: cfg.Price.AnnualGrowthPct,
				BasePriceYear:   cfg.Price.BasePriceYear,
			}, nil)
			if err != nil {
				return eris.Wrap(err, "resolve prices")
			}
			pricing.ApplyToBaselines(grouped, prices)
		}

		printForecast(grouped)
		return nil
	},
}

func printForecast(grouped map[model.DimensionKey]*model.YearSeries) {
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tYEAR\tVOLUME (KG)\tREVENUE")
	for _, k := range keys {
		s := grouped[model.DimensionKey(k)]
		for _, pt := range s.Baseline {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				k, pt.Year,
				p.Sprintf("%.0f", pt.Volume),
				p.Sprintf("%.2f", pt.Revenue),
			)
		}
	}
	w.Flush() //nolint:errcheck
}

// parseDims converts --dim flags into hierarchy levels, defaulting to
// director/state/productType/family.
func parseDims(raw []string) ([]model.Level, error) {
	if len(raw) == 0 {
		return []model.Level{model.LevelDirector, model.LevelState, model.LevelProductType, model.LevelFamily}, nil
	}
	dims := make([]model.Level, 0, len(raw))
	for _, r := range raw {
		l, err := model.ParseLevel(strings.TrimSpace(r))
		if err != nil {
			return nil, err
		}
		dims = append(dims, l)
	}
	return dims, nil
}

// parseFilterFlags converts repeated "level=v1,v2" flags into a store filter.
func parseFilterFlags(raw []string) (store.Filter, error) {
	f := store.Filter{Values: make(map[model.Level][]string)}
	for _, item := range raw {
		name, list, ok := strings.Cut(item, "=")
		if !ok {
			return f, eris.Errorf("invalid filter %q, expected level=value[,value]", item)
		}
		level, err := model.ParseLevel(strings.TrimSpace(name))
		if err != nil {
			return f, err
		}
		for _, v := range strings.Split(list, ",") {
			if v = strings.TrimSpace(v); v != "" {
				f.Values[level] = append(f.Values[level], v)
			}
		}
	}
	return f, nil
}

func init() {
	forecastCmd.Flags().StringSliceVar(&forecastDims, "dim", nil, "grouping dimensions (default director,state,productType,family)")
	forecastCmd.Flags().StringVar(&forecastMethod, "method", "", "forecast method: cagr, trend, manual (default from config)")
	forecastCmd.Flags().StringVar(&forecastVar, "variable", "", "forecast variable: volume, revenue (default from config)")
	forecastCmd.Flags().IntVar(&forecastSmooth, "smoothing", 0, "CAGR smoothing years in [1,5] (default from config)")
	forecastCmd.Flags().StringArrayVar(&forecastFilters, "filter", nil, "dimension filter, e.g. --filter productType=Pasta")
	forecastCmd.Flags().BoolVar(&forecastPrices, "prices", false, "derive revenue from volume via the price resolver")
	rootCmd.AddCommand(forecastCmd)
}
