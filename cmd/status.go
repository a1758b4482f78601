package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/planning-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check store connectivity and report record counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		latency, err := st.Ping(ctx)
		if err != nil {
			return eris.Wrap(err, "ping store")
		}

		count, err := st.CountRecords(ctx, store.Filter{})
		if err != nil {
			return eris.Wrap(err, "count records")
		}

		fmt.Printf("store: %s\nping: %s\nrecords: %d\n", cfg.Store.Driver, latency, count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
