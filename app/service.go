// Package app wires configuration into a ready-to-use solve service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/flownet/config"
	"github.com/kilianp07/flownet/core/engine"
	"github.com/kilianp07/flownet/core/factory"
	"github.com/kilianp07/flownet/core/interpret"
	"github.com/kilianp07/flownet/core/lpmodel"
	coremetrics "github.com/kilianp07/flownet/core/metrics"
	coremon "github.com/kilianp07/flownet/core/monitoring"
	coremqtt "github.com/kilianp07/flownet/core/mqtt"
	"github.com/kilianp07/flownet/core/problem"
	"github.com/kilianp07/flownet/core/runlog"
	"github.com/kilianp07/flownet/core/scenario"
	"github.com/kilianp07/flownet/core/solver"
	"github.com/kilianp07/flownet/core/sweep"
	_ "github.com/kilianp07/flownet/infra/gonumlp"
	"github.com/kilianp07/flownet/infra/logger"
	"github.com/kilianp07/flownet/infra/metrics"
	"github.com/kilianp07/flownet/infra/monitoring"
	"github.com/kilianp07/flownet/infra/mqtt"
)

// Service owns the engine and everything it reports to.
type Service struct {
	Engine *engine.Engine
	Runs   runlog.Store

	cfg     *config.Config
	sweeper *sweep.Runner
	sink    coremetrics.MetricsSink
	pub     coremqtt.Publisher
	log     logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Monitoring)
	if err != nil {
		return nil, fmt.Errorf("monitoring: %w", err)
	}
	coremon.Init(mon)

	s, err := solver.New(factory.ModuleConfig{Type: cfg.Solver.Type, Conf: cfg.Solver.Conf})
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	runs, err := runlog.Open(cfg.RunLog)
	if err != nil {
		closeSink(sink)
		return nil, fmt.Errorf("run log: %w", err)
	}

	eng := engine.New(engine.Config{TimeLimit: cfg.Solver.TimeLimit, Tolerance: cfg.Interpret.Tolerance}, s, sink, logger.New("engine"))
	eng.SetRunLog(runs)

	var pub coremqtt.Publisher = coremqtt.NopPublisher{}
	if cfg.Publish.Enabled {
		p, err := mqtt.NewPublisher(cfg.Publish.MQTT, logger.New("mqtt"))
		if err != nil {
			closeSink(sink)
			_ = runs.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		pub = p
	}
	eng.SetPublisher(pub)

	logg.Infof("solver %s ready (run log: %s)", cfg.Solver.Type, cfg.RunLog.Backend)
	return &Service{
		Engine:  eng,
		Runs:    runs,
		cfg:     cfg,
		sweeper: sweep.New(eng, cfg.Sweep.Workers, sink, logger.New("sweep")),
		sink:    sink,
		pub:     pub,
		log:     logg,
	}, nil
}

// Solve runs one description through the engine.
func (s *Service) Solve(ctx context.Context, p problem.Description) (engine.Run, error) {
	return s.Engine.Run(ctx, p)
}

// ScenarioResult is the outcome of a catalog scenario. Exactly one of
// Network and Model is set, matching the scenario's kind.
type ScenarioResult struct {
	Scenario scenario.Scenario
	Network  *engine.Run
	Model    *interpret.ModelSolution
}

// SolveScenario builds and solves the named catalog scenario.
func (s *Service) SolveScenario(ctx context.Context, name string) (ScenarioResult, error) {
	sc, err := scenario.Get(name)
	if err != nil {
		return ScenarioResult{}, err
	}
	res := ScenarioResult{Scenario: sc}
	switch {
	case sc.Network != nil:
		run, err := s.Engine.Run(ctx, sc.Network())
		if err != nil {
			return res, err
		}
		res.Network = &run
	case sc.Model != nil:
		var m *lpmodel.Model
		if m, err = sc.Model(); err != nil {
			return res, err
		}
		sol, err := s.Engine.SolveModel(ctx, m)
		if err != nil {
			return res, err
		}
		res.Model = &sol
	}
	return res, nil
}

// Sweep evaluates the DES sizing model over grid, or over the configured
// grid when grid is empty.
func (s *Service) Sweep(ctx context.Context, base scenario.DESParams, grid sweep.Grid) ([]sweep.Point, error) {
	if len(grid.PVCapex)+len(grid.CapacityFactor)+len(grid.FeedInTariff) == 0 {
		grid = s.cfg.Sweep.Grid
	}
	return s.sweeper.Run(ctx, base, grid)
}

// ServeMetrics serves /metrics until ctx is canceled. It returns at once
// when no Prometheus address is configured.
func (s *Service) ServeMetrics(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusAddr == "" {
		return nil
	}
	return metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr, nil)
}

// closeSink releases sinks that hold a client, such as InfluxDB.
func closeSink(sink coremetrics.MetricsSink) {
	if c, ok := sink.(interface{ Close() }); ok {
		c.Close()
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.pub.Close()
	closeSink(s.sink)
	coremon.Flush(2 * time.Second)
	if err := s.Runs.Close(); err != nil {
		return fmt.Errorf("close run log: %w", err)
	}
	return nil
}
