package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flownet/app"
	"github.com/kilianp07/flownet/infra/problemfile"
)

var solveCmd = &cobra.Command{
	Use:   "solve FILE",
	Short: "Solve a problem file (YAML, JSON or TOML)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSolve,
}

func init() {
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	p, err := problemfile.Load(args[0])
	if err != nil {
		return err
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		run, err := svc.Solve(ctx, p)
		if err != nil {
			return err
		}
		return printRun(cmd.OutOrStdout(), p.Name, run)
	})
}
