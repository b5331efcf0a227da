package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flownet/app"
	"github.com/kilianp07/flownet/core/scenario"
	"github.com/kilianp07/flownet/infra/problemfile"
)

var exportPath string

var scenarioCmd = &cobra.Command{
	Use:   "scenario [NAME]",
	Short: "Solve a built-in scenario, or list them without a name",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScenario,
}

func init() {
	scenarioCmd.Flags().StringVar(&exportPath, "export", "", "write the scenario's network to this problem file instead of solving it")
	rootCmd.AddCommand(scenarioCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		return printScenarios(cmd.OutOrStdout(), scenario.List())
	}
	if exportPath != "" {
		sc, err := scenario.Get(args[0])
		if err != nil {
			return err
		}
		if sc.Network == nil {
			return fmt.Errorf("scenario %s is not a flow network and cannot be exported", sc.Name)
		}
		if err := problemfile.Save(exportPath, sc.Network()); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", exportPath)
		return err
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		res, err := svc.SolveScenario(ctx, args[0])
		if err != nil {
			return err
		}
		if res.Network != nil {
			return printRun(cmd.OutOrStdout(), res.Scenario.Name, *res.Network)
		}
		return printModel(cmd.OutOrStdout(), res.Scenario.Name, *res.Model)
	})
}
