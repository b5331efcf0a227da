package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flownet/app"
	"github.com/kilianp07/flownet/core/scenario"
	"github.com/kilianp07/flownet/core/sweep"
)

var sweepGrid sweep.Grid

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Size the DES model over a grid of PV prices, capacity factors and feed-in tariffs",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

func init() {
	f := sweepCmd.Flags()
	f.Float64SliceVar(&sweepGrid.PVCapex, "capex", nil, "PV capital cost per kWp (default: configured grid)")
	f.Float64SliceVar(&sweepGrid.CapacityFactor, "cf", nil, "PV capacity factors")
	f.Float64SliceVar(&sweepGrid.FeedInTariff, "fit", nil, "feed-in tariffs")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		pts, err := svc.Sweep(ctx, scenario.DefaultDESParams(), sweepGrid)
		if err != nil {
			return err
		}
		return printSweep(cmd.OutOrStdout(), pts)
	})
}
