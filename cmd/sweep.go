package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark sessions left in flight by a crashed process as timed out",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.SweepStale(ctx, "interrupted by restart")
		if err != nil {
			return eris.Wrap(err, "sweep stale sessions")
		}

		zap.L().Info("sweep complete", zap.Int("closed", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
