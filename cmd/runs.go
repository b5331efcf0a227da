package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flownet/app"
	"github.com/kilianp07/flownet/core/problem"
	"github.com/kilianp07/flownet/core/runlog"
)

var (
	runsProblem string
	runsStatus  string
	runsSince   time.Duration
	runsLimit   int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Query the solve run log",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.StringVar(&runsProblem, "problem", "", "only runs of this problem")
	f.StringVar(&runsStatus, "status", "", "only runs with this status")
	f.DurationVar(&runsSince, "since", 0, "only runs newer than this, e.g. 24h")
	f.IntVar(&runsLimit, "limit", 20, "keep only the most recent runs (0 = all)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	q := runlog.Query{Problem: runsProblem, Status: problem.Status(runsStatus), Limit: runsLimit}
	if runsSince > 0 {
		q.Start = time.Now().Add(-runsSince)
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		recs, err := svc.Runs.Query(ctx, q)
		if err != nil {
			return err
		}
		return printRuns(cmd.OutOrStdout(), recs)
	})
}
