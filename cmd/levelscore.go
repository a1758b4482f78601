package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/levelscore"
	"github.com/sells-group/planning-cli/internal/model"
	"github.com/sells-group/planning-cli/internal/store"
)

var (
	levelsFlag      []string
	levelsLambda    float64
	levelsFilters   []string
	levelsShowEvery int
)

var levelscoreCmd = &cobra.Command{
	Use:   "levelscore",
	Short: "Score candidate forecasting granularities over stored history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := parseFilterFlags(levelsFilters)
		if err != nil {
			return err
		}

		levels, err := parseLevelSets(levelsFlag)
		if err != nil {
			return err
		}

		lambda := cfg.LevelScore.Lambda
		if cmd.Flags().Changed("lambda") {
			lambda = levelsLambda
		}

		reg := levelscore.NewRegistry(recordSource(st, filter), lambda)
		run, err := reg.Start(ctx, levels)
		if err != nil {
			return eris.Wrap(err, "start level-score run")
		}
		zap.L().Info("level-score run started",
			zap.String("run_id", run.ID),
			zap.Int("total_levels", run.TotalLevels),
			zap.Int("total_combinations", run.TotalCombinations),
		)

		for !run.Status.Terminal() {
			run, err = reg.ProcessNext(ctx, run.ID)
			if err != nil {
				return eris.Wrap(err, "process level")
			}
			if levelsShowEvery > 0 && run.ProcessedLevels%levelsShowEvery == 0 {
				fmt.Fprintf(os.Stderr, "processed %d/%d levels (%d/%d combinations)\n",
					run.ProcessedLevels, run.TotalLevels,
					run.ProcessedCombinations, run.TotalCombinations)
			}
		}
		if run.Status == model.RunStatusFailed {
			return eris.Errorf("level-score run failed: %s", run.Error)
		}

		results, err := reg.Results(run.ID)
		if err != nil {
			return eris.Wrap(err, "fetch results")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tLEVEL\tCOMBINATIONS\tCOV\tFINAL SCORE")
		for i, r := range results {
			fmt.Fprintf(w, "%d\t%s\t%d\t%.4f\t%.4f\n", i+1, r.LevelID, r.Combinations, r.CoV, r.FinalScore)
		}
		return w.Flush()
	},
}

// recordSource adapts a store to the level-score data source, refetching per
// chunk so a wiped dataset fails the run instead of scoring stale data.
func recordSource(st store.Store, filter store.Filter) levelscore.Source {
	return levelscore.SourceFunc(func(ctx context.Context) ([]model.HistoricalRecord, error) {
		return st.ListRecords(ctx, filter)
	})
}

// parseLevelSets converts repeated "director,state" flags into candidate
// level dimension sets, defaulting to the built-in ladder.
func parseLevelSets(raw []string) ([][]model.Level, error) {
	if len(raw) == 0 {
		return levelscore.DefaultLevels, nil
	}
	out := make([][]model.Level, 0, len(raw))
	for _, item := range raw {
		var set []model.Level
		for _, name := range strings.Split(item, ",") {
			l, err := model.ParseLevel(strings.TrimSpace(name))
			if err != nil {
				return nil, err
			}
			set = append(set, l)
		}
		if len(set) == 0 {
			return nil, eris.Errorf("empty level set %q", item)
		}
		out = append(out, set)
	}
	return out, nil
}

func init() {
	levelscoreCmd.Flags().StringArrayVar(&levelsFlag, "level", nil, "candidate level as comma-joined dimensions, repeatable (default built-in ladder)")
	levelscoreCmd.Flags().Float64Var(&levelsLambda, "lambda", levelscore.DefaultLambda, "complexity penalty weight")
	levelscoreCmd.Flags().StringArrayVar(&levelsFilters, "filter", nil, "dimension filter, e.g. --filter productType=Pasta")
	levelscoreCmd.Flags().IntVar(&levelsShowEvery, "progress-every", 1, "print progress every N processed levels (0 disables)")
	rootCmd.AddCommand(levelscoreCmd)
}
