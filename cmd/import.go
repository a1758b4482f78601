package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/ingest"
)

var (
	importFilePath string
	importSheet    string
	importReplace  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import historical sales records from an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, parseSummary, err := ingest.ReadWorkbook(importFilePath, ingest.Options{SheetName: importSheet})
		if err != nil {
			return eris.Wrap(err, "import workbook")
		}

		if importReplace {
			deleted, err := st.DeleteRecords(ctx)
			if err != nil {
				return eris.Wrap(err, "clear records")
			}
			zap.L().Info("existing records cleared", zap.Int64("deleted", deleted))
		}

		summary, err := st.UpsertRecords(ctx, records)
		if err != nil {
			return eris.Wrap(err, "store records")
		}

		rebuilt, err := st.RebuildCombinations(ctx)
		if err != nil {
			return eris.Wrap(err, "rebuild combinations")
		}

		zap.L().Info("import complete",
			zap.String("file", importFilePath),
			zap.Int("parsed", parseSummary.Parsed),
			zap.Int("skipped", parseSummary.Skipped),
			zap.Int("inserted", summary.Inserted),
			zap.Int("updated", summary.Updated),
			zap.Int("combinations", rebuilt),
		)
		for _, msg := range parseSummary.Errors {
			fmt.Fprintln(os.Stderr, "warning:", msg)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to XLSX workbook (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default: first sheet)")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "delete existing records before importing")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
