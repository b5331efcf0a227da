package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flownet/app"
	"github.com/kilianp07/flownet/config"
	"github.com/kilianp07/flownet/infra/logger"
)

var (
	cfgPath string
	output  string
)

var rootCmd = &cobra.Command{
	Use:           "flownet",
	Short:         "Build and solve capacitated network-flow models",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		if output != outputTable && output != outputJSON {
			return fmt.Errorf("unknown output %q (want %s or %s)", output, outputTable, outputJSON)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (defaults plus K_ environment overrides when empty)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withService loads the configuration, starts the service and its metrics
// endpoint, and runs fn until it returns or the process is interrupted.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	log := logger.New("main")
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()

	metricsCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := svc.ServeMetrics(metricsCtx); err != nil {
			log.Errorf("prom server: %v", err)
		}
	}()
	return fn(ctx, svc)
}
